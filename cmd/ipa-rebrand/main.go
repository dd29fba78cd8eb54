package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/ipa-rebrand/internal/archive"
	"github.com/keithlinneman/ipa-rebrand/internal/cfg"
	"github.com/keithlinneman/ipa-rebrand/internal/fetch"
	"github.com/keithlinneman/ipa-rebrand/internal/log"
	"github.com/keithlinneman/ipa-rebrand/internal/metrics"
	"github.com/keithlinneman/ipa-rebrand/internal/otelx"
	"github.com/keithlinneman/ipa-rebrand/internal/pipeline"
	"github.com/keithlinneman/ipa-rebrand/internal/prof"
	"github.com/keithlinneman/ipa-rebrand/internal/rebrand"
	v "github.com/keithlinneman/ipa-rebrand/internal/version"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process globals. Failures are reported as a
// single "error: ..." line on stderr and exit code 1.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fail := func(err error) int {
		fmt.Fprintf(stderr, "error: %s\n", err)
		return 1
	}

	vi := v.Get()

	// Parse config from flags, .env and environment
	fs := flag.NewFlagSet(v.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var conf cfg.App
	cfg.Register(fs, &conf)
	if err := fs.Parse(args); err != nil {
		if xerrors.Is(err, flag.ErrHelp) {
			return 0
		}
		return fail(err)
	}

	if conf.ShowVersion {
		fmt.Fprintln(stdout, vi.String())
		return 0
	}

	if err := cfg.LoadDotEnv(conf.EnvFile); err != nil {
		return fail(err)
	}
	cfg.FillFromEnv(fs, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		return fail(fmt.Errorf("config: %w", err))
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return fail(err)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		return fail(err)
	}
	L, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		Writer:            stderr,
	})
	if err != nil {
		return fail(fmt.Errorf("logger init: %w", err))
	}
	defer L.Sync()
	ctx = log.WithContext(ctx, L)

	mode := rebrand.ModeStandard
	if conf.AlternateTemplate {
		mode = rebrand.ModeAlternate
	}

	L.Info(ctx, "starting",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"mode", mode.String(),
		"media_rewrite", conf.MediaRewrite,
		"output_dir", conf.OutputDir,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
	)

	// Setup metrics, profiling and tracing
	m := metrics.New()
	m.SetBuildInfoFromVersion(vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"version": vi.Version,
			"commit":  vi.Commit,
			"mode":    mode.String(),
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	defer stopProf()

	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	} else {
		defer func() {
			if err := shutdownOTEL.WithTimeout(5 * time.Second); err != nil {
				L.Warn(context.Background(), "otel shutdown failed", "err", err)
			}
		}()
	}

	if conf.MetricsPushURL != "" {
		defer func() {
			pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.Push(pushCtx, conf.MetricsPushURL); err != nil {
				L.Warn(pushCtx, "metrics push failed", "err", err)
			}
		}()
	}

	// Template profile
	profile := rebrand.ProfileFor(mode)
	if conf.ProfileFile != "" {
		if profile, err = rebrand.LoadProfileOverrides(conf.ProfileFile, profile); err != nil {
			return fail(err)
		}
	}
	if conf.TemplateURL != "" {
		profile.ArchiveURL = conf.TemplateURL
	}

	// AWS clients only when an s3 template or ssm hash is in play
	var s3Client fetch.ObjectGetter
	var hash pipeline.HashSource
	if conf.TemplateSHA256 != "" {
		hash = pipeline.StaticHash(conf.TemplateSHA256)
	}
	if strings.HasPrefix(profile.ArchiveURL, "s3://") || conf.TemplateSSMParam != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return fail(fmt.Errorf("load AWS config: %w", err))
		}
		s3Client = s3.NewFromConfig(awsCfg)
		if conf.TemplateSSMParam != "" {
			hash = pipeline.SSMHashSource{Client: ssm.NewFromConfig(awsCfg), Name: conf.TemplateSSMParam}
		}
	}

	var reporter fetch.Reporter = fetch.NewPercentPrinter(stdout)
	if conf.ProgressBar {
		reporter = fetch.NewBarReporter(stdout)
	}

	zipper := archive.NewZip(archive.Options{Logger: L})
	orch, err := pipeline.New(pipeline.Options{
		Logger: L,
		Fetcher: fetch.New(fetch.Options{
			Logger:    L,
			Timeout:   conf.FetchTimeout,
			S3:        s3Client,
			Reporter:  reporter,
			RateLimit: conf.MaxDownloadRate,
			Metrics:   m,
		}),
		Expander:  zipper,
		Collector: zipper,
		Hash:      hash,
		OutputDir: conf.OutputDir,
		Metrics:   m,
	})
	if err != nil {
		return fail(err)
	}

	id := rebrand.NewIdentity(conf.Name, conf.Bundle, conf.URL, mode, rebrand.Flags{MediaEndpointRewrite: conf.MediaRewrite})
	res, err := orch.Run(ctx, id, profile)
	if err != nil {
		L.Error(ctx, xerrors.EnsureTrace(err), "rebrand failed")
		return fail(err)
	}

	fmt.Fprintf(stdout, "Done! %s created successfully.\n", res.Output)
	return 0
}
