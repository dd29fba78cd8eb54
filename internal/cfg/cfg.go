// Package cfg binds the ipa-rebrand command line to an App struct. Values
// come from flags, then IPA_REBRAND_* variables, then an optional .env
// file, then defaults.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/keithlinneman/ipa-rebrand/internal/cryptoutil"
	"github.com/keithlinneman/ipa-rebrand/internal/fetch"
	"github.com/keithlinneman/ipa-rebrand/internal/log"
)

// EnvPrefix is prepended to upper-cased flag names by FillFromEnv.
const EnvPrefix = "IPA_REBRAND_"

type App struct {
	// identity
	Name   string
	Bundle string
	URL    string

	AlternateTemplate bool
	MediaRewrite      bool

	EnvFile          string
	TemplateURL      string
	TemplateSHA256   string
	TemplateSSMParam string
	ProfileFile      string
	OutputDir        string
	FetchTimeout     time.Duration
	MaxDownloadRate  int64
	ProgressBar      bool

	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	EnableTracing   bool
	OTLPEndpoint    string
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string
	MetricsPushURL  string

	ShowVersion bool
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.Name, "name", "", "display name of the rebranded app (whitespace is removed)")
	fs.StringVar(&c.Bundle, "bundle", "", "bundle identifier (23 chars, 21 with -icreate)")
	fs.StringVar(&c.URL, "url", "", "server endpoint URL (33 chars)")
	fs.BoolVar(&c.AlternateTemplate, "icreate", false, "use the iCreate Pro template")
	fs.BoolVar(&c.MediaRewrite, "megasa1nt", false, "route song downloads through the new endpoint")

	fs.StringVar(&c.EnvFile, "env-file", ".env", "dotenv file to load (missing file is ignored)")
	fs.StringVar(&c.TemplateURL, "template-url", "", "override the template archive URL (https:// or s3://)")
	fs.StringVar(&c.TemplateSHA256, "template-sha256", "", "expected sha256 of the template archive")
	fs.StringVar(&c.TemplateSSMParam, "template-ssm-param", "", "ssm parameter holding the expected template sha256")
	fs.StringVar(&c.ProfileFile, "profile-file", "", "yaml file overriding template profile constants")
	fs.StringVar(&c.OutputDir, "output-dir", ".", "directory for the rebranded .ipa")
	fs.DurationVar(&c.FetchTimeout, "fetch-timeout", fetch.DefaultTimeout, "abort the download after this long without data")
	fs.Int64Var(&c.MaxDownloadRate, "max-download-rate", 0, "download bandwidth cap in bytes/second (0 = unlimited)")
	fs.BoolVar(&c.ProgressBar, "progress-bar", false, "draw a progress bar instead of a percentage line")

	fs.BoolVar(&c.LogJSON, "log-json", false, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 1.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.MetricsPushURL, "metrics-push-url", "", "prometheus pushgateway URL to push run metrics to")

	fs.BoolVar(&c.ShowVersion, "V", false, "print version and exit")
}

// bareEnvFlags are also read from unprefixed variables of the same name.
var bareEnvFlags = map[string]bool{"name": true, "bundle": true, "url": true}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR; the
// identity flags also fall back to the bare name, bundle and url variables.
// Precedence: cli flag > prefixed env > bare env > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet && bareEnvFlags[f.Name] {
			key = f.Name
			envVal, envSet = os.LookupEnv(key)
		}
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks that config values are within expected ranges and formats.
// Identity values are checked by the rebrand package against the selected
// template. Returns an error describing all invalid fields, or nil.
func Validate(c App) error {
	var errs []error

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Template source
	if c.TemplateURL != "" {
		if u, err := url.Parse(c.TemplateURL); err != nil || (u.Scheme != "https" && u.Scheme != "s3") || u.Host == "" {
			errs = append(errs, fmt.Errorf("TEMPLATE_URL must be an https:// or s3:// URL (got %q)", c.TemplateURL))
		}
	}
	if c.TemplateSHA256 != "" {
		if !cryptoutil.ValidSHA256Hex(cryptoutil.NormalizeHex(c.TemplateSHA256)) {
			errs = append(errs, fmt.Errorf("TEMPLATE_SHA256 must be 64 hex characters (got %q)", c.TemplateSHA256))
		}
		if c.TemplateSSMParam != "" {
			errs = append(errs, fmt.Errorf("TEMPLATE_SHA256 and TEMPLATE_SSM_PARAM are mutually exclusive"))
		}
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("OUTPUT_DIR must not be empty"))
	}

	// Download
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid FETCH_TIMEOUT %s (must be > 0)", c.FetchTimeout))
	}
	if c.MaxDownloadRate < 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_DOWNLOAD_RATE %d (must be >= 0)", c.MaxDownloadRate))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Pushgateway
	if c.MetricsPushURL != "" {
		if u, err := url.Parse(c.MetricsPushURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("METRICS_PUSH_URL must be a URL (got %q)", c.MetricsPushURL))
		}
	}

	// Error link limits
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
