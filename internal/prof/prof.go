// Package prof optionally profiles a run with pyroscope. Profiles are
// uploaded when the returned stop func runs, so it must be called before
// the process exits.
package prof

import (
	"context"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/ipa-rebrand/internal/log"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	AuthToken     string
	TenantID      string
	Tags          map[string]string
}

// profileTypes covers the cost of a run: CPU for patching and zip work,
// allocations for whole-file reads.
var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)

	if !opts.Enabled {
		L.Debug(ctx, "pyroscope disabled")
		return func() {}, nil
	}

	if opts.ServerAddress == "" {
		return func() {}, xerrors.Newf("invalid pyroscope server address (%q)", opts.ServerAddress)
	}

	cfg := pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		AuthToken:       opts.AuthToken,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes:    profileTypes,
	}

	profiler, err := pyroscope.Start(cfg)
	if err != nil {
		return func() {}, xerrors.Wrapf(err, "start pyroscope (%s)", opts.ServerAddress)
	}

	L.Info(ctx, "pyroscope started", "server_address", opts.ServerAddress, "app_name", opts.AppName)

	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		// Stop uploads the final profile
		if err := profiler.Stop(); err != nil {
			L.Warn(context.Background(), "pyroscope stop failed", "err", err)
			return
		}
		L.Debug(context.Background(), "pyroscope stopped")
	}, nil
}
