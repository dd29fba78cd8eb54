package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/ipa-rebrand/internal/log"
	"github.com/keithlinneman/ipa-rebrand/internal/pathutil"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

// DefaultTimeout is the idle period after which a download is abandoned.
const DefaultTimeout = 10 * time.Second

const chunkSize = 32 * 1024

var errIdle = errors.New("idle timeout")

// Observer is notified once per download with the bytes received, whether
// or not the download succeeded.
type Observer interface {
	ObserveFetch(scheme string, bytes int64, err error)
}

type Options struct {
	Logger log.Logger

	// Timeout is the idle period, re-armed on every chunk. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// HTTPClient defaults to a client with an otelhttp transport and no
	// overall deadline.
	HTTPClient *http.Client

	// S3 serves s3:// URLs. Without it those URLs fail.
	S3 ObjectGetter

	// Reporter defaults to a PercentPrinter on stdout.
	Reporter Reporter

	// RateLimit caps throughput in bytes per second. Zero disables it.
	RateLimit int64

	Metrics Observer
}

type Fetcher struct {
	logger   log.Logger
	timeout  time.Duration
	client   *http.Client
	s3       ObjectGetter
	reporter Reporter
	limiter  *rate.Limiter
	metrics  Observer
}

func New(opts Options) *Fetcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if opts.Reporter == nil {
		opts.Reporter = NewPercentPrinter(os.Stdout)
	}

	f := &Fetcher{
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		client:   opts.HTTPClient,
		s3:       opts.S3,
		reporter: opts.Reporter,
		metrics:  opts.Metrics,
	}
	if opts.RateLimit > 0 {
		// burst of one chunk at most so a single wait stays short
		burst := int(min(opts.RateLimit, chunkSize))
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

// DefaultDest is the last path segment of rawURL.
func DefaultDest(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", xerrors.Wrapf(err, "parse URL %q", rawURL)
	}
	name := path.Base(u.Path)
	if !pathutil.IsPlainName(name) {
		return "", xerrors.Newf("cannot derive a file name from %s", rawURL)
	}
	return name, nil
}

// Fetch downloads rawURL into dest, which defaults to DefaultDest(rawURL).
// dest is created before the request is sent and is left in place on
// failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) (err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return xerrors.Wrapf(err, "parse URL %q", rawURL)
	}
	if u.Scheme != "https" && u.Scheme != "s3" {
		return &UnsupportedSchemeError{URL: rawURL, Scheme: u.Scheme}
	}
	if dest == "" {
		if dest, err = DefaultDest(rawURL); err != nil {
			return err
		}
	}
	name := filepath.Base(dest)

	L := f.logger.With("url", rawURL, "dest", dest)
	L.Info(ctx, "fetching template")

	out, err := os.Create(dest)
	if err != nil {
		return xerrors.Wrapf(err, "create %s", dest)
	}

	var received int64
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = &TransportError{URL: rawURL, Op: "close", Err: cerr}
		}
		if f.metrics != nil {
			f.metrics.ObserveFetch(u.Scheme, received, err)
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	idle := time.AfterFunc(f.timeout, func() { cancel(errIdle) })
	defer idle.Stop()

	body, total, err := f.open(ctx, u, rawURL)
	if err != nil {
		return f.classify(ctx, rawURL, "request", err)
	}
	defer body.Close()

	f.reporter.Progress(name, 0, total)
	defer func() { f.reporter.Done(name, received) }()

	buf := make([]byte, chunkSize)
	if f.limiter != nil {
		buf = buf[:f.limiter.Burst()]
	}
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				// the cap's own wait is not inactivity
				idle.Stop()
				if werr := f.limiter.WaitN(ctx, n); werr != nil {
					return f.classify(ctx, rawURL, "rate limit", werr)
				}
			}
			idle.Reset(f.timeout)
			if _, werr := out.Write(buf[:n]); werr != nil {
				return &TransportError{URL: rawURL, Op: "write", Err: werr}
			}
			received += int64(n)
			f.reporter.Progress(name, received, total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return f.classify(ctx, rawURL, "read", rerr)
		}
	}

	L.Info(ctx, "fetched template", "bytes", received, "size", humanize.Bytes(uint64(received)))
	return nil
}

func (f *Fetcher) open(ctx context.Context, u *url.URL, rawURL string) (io.ReadCloser, int64, error) {
	if u.Scheme == "s3" {
		return f.openS3(ctx, u, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

// classify turns a request or stream failure into one of the typed errors.
func (f *Fetcher) classify(ctx context.Context, rawURL, op string, err error) error {
	var se *StatusError
	if xerrors.As(err, &se) {
		return se
	}
	if xerrors.Is(context.Cause(ctx), errIdle) {
		return &TimeoutError{URL: rawURL, Idle: f.timeout}
	}
	return &TransportError{URL: rawURL, Op: op, Err: err}
}
