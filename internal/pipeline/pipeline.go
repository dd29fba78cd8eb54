package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/ipa-rebrand/internal/archive"
	"github.com/keithlinneman/ipa-rebrand/internal/cryptoutil"
	"github.com/keithlinneman/ipa-rebrand/internal/log"
	"github.com/keithlinneman/ipa-rebrand/internal/rebrand"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

const tracerName = "github.com/keithlinneman/ipa-rebrand/internal/pipeline"

// Stage names used for spans and metrics.
const (
	StageValidate = "validate"
	StageFetch    = "fetch"
	StageVerify   = "verify"
	StageExpand   = "expand"
	StageRewrite  = "rewrite"
	StageCollect  = "collect"
	StageCleanup  = "cleanup"
)

type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) error
}

type Rewriter interface {
	Rewrite(ctx context.Context, root string, id rebrand.Identity, p rebrand.TemplateProfile) error
}

// Metrics receives stage timings and the outcome of each run.
type Metrics interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveRun(mode string, err error)
}

type Options struct {
	Logger    log.Logger
	Fetcher   Fetcher
	Expander  archive.Expander
	Collector archive.Collector
	// Rewriter defaults to rebrand.NewRewriter with Logger.
	Rewriter Rewriter

	// Hash enables template verification when set.
	Hash HashSource

	// TemplateDir holds the cached template archive, WorkDir the scratch
	// workspace and OutputDir the result. All default to ".".
	TemplateDir string
	WorkDir     string
	OutputDir   string

	Metrics Metrics
	Tracer  trace.Tracer
}

type Result struct {
	Output         string
	Template       string
	Workspace      string
	Fetched        bool
	TemplateSHA256 string
	Duration       time.Duration
}

type Orchestrator struct {
	logger    log.Logger
	fetcher   Fetcher
	expander  archive.Expander
	collector archive.Collector
	rewriter  Rewriter
	hash      HashSource

	templateDir string
	workDir     string
	outputDir   string

	metrics Metrics
	tracer  trace.Tracer
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Fetcher == nil {
		return nil, xerrors.New("Fetcher is required")
	}
	if opts.Expander == nil || opts.Collector == nil {
		return nil, xerrors.New("Expander and Collector are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Rewriter == nil {
		opts.Rewriter = rebrand.NewRewriter(rebrand.RewriterOptions{Logger: opts.Logger})
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Orchestrator{
		logger:      opts.Logger,
		fetcher:     opts.Fetcher,
		expander:    opts.Expander,
		collector:   opts.Collector,
		rewriter:    opts.Rewriter,
		hash:        opts.Hash,
		templateDir: orDot(opts.TemplateDir),
		workDir:     orDot(opts.WorkDir),
		outputDir:   orDot(opts.OutputDir),
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
	}, nil
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}

// Run executes every stage in order and stops at the first failure.
func (o *Orchestrator) Run(ctx context.Context, id rebrand.Identity, p rebrand.TemplateProfile) (res *Result, err error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "rebrand.run", trace.WithAttributes(
		attribute.String("rebrand.mode", p.Mode.String()),
		attribute.String("rebrand.name", id.DisplayName),
		attribute.String("rebrand.bundle_id", id.BundleID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if o.metrics != nil {
			o.metrics.ObserveRun(p.Mode.String(), err)
		}
	}()

	L := o.logger.With("name", id.DisplayName, "bundle_id", id.BundleID, "mode", p.Mode.String())
	ctx = log.WithContext(ctx, L)

	if err := o.stage(ctx, StageValidate, func(context.Context) error { return id.Validate(p) }); err != nil {
		return nil, err
	}

	res = &Result{Template: filepath.Join(o.templateDir, p.ArchiveName)}

	present, err := fileExists(res.Template)
	if err != nil {
		return nil, err
	}
	if present {
		L.Info(ctx, "using cached template", "template", res.Template)
	} else {
		err := o.stage(ctx, StageFetch, func(ctx context.Context) error {
			return o.fetcher.Fetch(ctx, p.ArchiveURL, res.Template)
		})
		if err != nil {
			return nil, xerrors.Wrap(err, "fetch template")
		}
		res.Fetched = true
	}

	if o.hash != nil {
		err := o.stage(ctx, StageVerify, func(ctx context.Context) error {
			sum, err := o.verify(ctx, res.Template)
			res.TemplateSHA256 = sum
			return err
		})
		var ce *ChecksumError
		if xerrors.As(err, &ce) && res.Fetched {
			// a bad download must not be reused as the cached template
			if rerr := os.Remove(res.Template); rerr != nil {
				L.Warn(ctx, "could not remove mismatched template", "template", res.Template, "err", rerr)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	ws, err := workspaceName(id.DisplayName)
	if err != nil {
		return nil, err
	}
	res.Workspace = filepath.Join(o.workDir, ws)
	L = L.With("workspace", res.Workspace)

	if err := o.stage(ctx, StageExpand, func(ctx context.Context) error {
		return o.expander.Expand(ctx, res.Template, res.Workspace)
	}); err != nil {
		return nil, xerrors.Wrap(err, "expand template")
	}

	if err := o.stage(ctx, StageRewrite, func(ctx context.Context) error {
		return o.rewriter.Rewrite(ctx, res.Workspace, id, p)
	}); err != nil {
		return nil, xerrors.Wrap(err, "rewrite bundle")
	}

	res.Output = filepath.Join(o.outputDir, id.OutputName())
	if err := o.stage(ctx, StageCollect, func(ctx context.Context) error {
		if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
			return err
		}
		return o.collector.Collect(ctx, res.Workspace, res.Output)
	}); err != nil {
		return nil, xerrors.Wrap(err, "collect output")
	}

	if err := o.stage(ctx, StageCleanup, func(context.Context) error {
		return os.RemoveAll(res.Workspace)
	}); err != nil {
		return nil, xerrors.Wrap(err, "remove workspace")
	}

	res.Duration = time.Since(start)
	L.Info(ctx, "rebrand complete", "output", res.Output, "fetched", res.Fetched, "duration", res.Duration)
	return res, nil
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "rebrand."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if o.metrics != nil {
		o.metrics.ObserveStage(name, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.FromContext(ctx).Debug(ctx, "stage failed", "stage", name, "err", err)
	}
	return err
}

func (o *Orchestrator) verify(ctx context.Context, path string) (string, error) {
	want, err := o.hash.ExpectedSHA256(ctx)
	if err != nil {
		return "", xerrors.Wrap(err, "expected template hash")
	}
	want = cryptoutil.NormalizeHex(want)
	if !cryptoutil.ValidSHA256Hex(want) {
		return "", xerrors.Newf("expected template hash %q is not a sha256 hex digest", want)
	}
	got, err := cryptoutil.FileSHA256(path)
	if err != nil {
		return "", xerrors.Wrap(err, "hash template")
	}
	if !cryptoutil.HashEqual(got, want) {
		return got, &ChecksumError{Path: path, Expected: want, Actual: got}
	}
	log.FromContext(ctx).Info(ctx, "template verified", "sha256", got)
	return got, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case xerrors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, xerrors.Wrapf(err, "stat %s", path)
	}
}

// workspaceName is the lowercased display name plus 16 random hex digits.
func workspaceName(displayName string) (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", xerrors.Wrap(err, "random workspace suffix")
	}
	return strings.ToLower(displayName) + "-" + hex.EncodeToString(b[:]), nil
}
