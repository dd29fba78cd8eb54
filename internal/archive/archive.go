// Package archive expands and collects the zip based .ipa container.
package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"

	"github.com/keithlinneman/ipa-rebrand/internal/log"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

// Expander unpacks an archive into a directory.
type Expander interface {
	Expand(ctx context.Context, archivePath, destDir string) error
}

// Collector packs every top-level entry of a directory into an archive.
type Collector interface {
	Collect(ctx context.Context, srcDir, outputPath string) error
}

type Options struct {
	Logger log.Logger
}

// Zip implements Expander and Collector for .ipa files.
type Zip struct {
	logger log.Logger
}

var (
	_ Expander  = (*Zip)(nil)
	_ Collector = (*Zip)(nil)
)

func NewZip(opts Options) *Zip {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Zip{logger: opts.Logger}
}

func (z *Zip) Expand(ctx context.Context, archivePath, destDir string) error {
	if err := ctx.Err(); err != nil {
		return xerrors.WithStack(err)
	}
	zr := archiver.NewZip()
	zr.MkdirAll = true
	if err := zr.Unarchive(archivePath, destDir); err != nil {
		return xerrors.Wrapf(err, "expand %s", archivePath)
	}
	z.logger.Debug(ctx, "expanded archive", "archive", archivePath, "dest", destDir)
	return nil
}

// Collect writes srcDir's contents to outputPath. archiver only writes
// files ending in .zip, so the archive is built next to outputPath and
// renamed into place.
func (z *Zip) Collect(ctx context.Context, srcDir, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return xerrors.WithStack(err)
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return xerrors.Wrapf(err, "read %s", srcDir)
	}
	if len(entries) == 0 {
		return xerrors.Newf("nothing to collect in %s", srcDir)
	}
	sources := make([]string, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, filepath.Join(srcDir, e.Name()))
	}

	tmp := outputPath
	if !strings.HasSuffix(outputPath, ".zip") {
		tmp = outputPath + ".partial.zip"
	}

	zw := archiver.NewZip()
	zw.MkdirAll = true
	zw.OverwriteExisting = true
	if err := zw.Archive(sources, tmp); err != nil {
		_ = os.Remove(tmp)
		return xerrors.Wrapf(err, "collect %s", srcDir)
	}
	if tmp != outputPath {
		if err := os.Rename(tmp, outputPath); err != nil {
			_ = os.Remove(tmp)
			return xerrors.Wrapf(err, "rename %s", tmp)
		}
	}
	z.logger.Debug(ctx, "collected archive", "src", srcDir, "output", outputPath, "entries", len(sources))
	return nil
}
