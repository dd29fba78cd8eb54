package rebrand

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/keithlinneman/ipa-rebrand/internal/cryptoutil"
	"github.com/keithlinneman/ipa-rebrand/internal/log"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

const (
	payloadDir = "Payload"
	infoPlist  = "Info.plist"
)

type RewriterOptions struct {
	Logger log.Logger
}

// Rewriter applies an Identity to an extracted template tree.
type Rewriter struct {
	logger log.Logger
}

func NewRewriter(opts RewriterOptions) *Rewriter {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Rewriter{logger: opts.Logger}
}

// AppDir is the bundle directory inside root once it has been renamed.
func AppDir(root string, id Identity) string {
	return filepath.Join(root, payloadDir, id.DisplayName+".app")
}

// Rewrite renames the bundle and executable, then patches Info.plist, the
// executable and, in alternate mode, the auxiliary binary. Steps run in
// order and stop at the first failure; nothing is rolled back.
func (r *Rewriter) Rewrite(ctx context.Context, root string, id Identity, p TemplateProfile) error {
	L := r.logger.With("workspace", root, "mode", p.Mode.String())

	appDir, err := r.renameBundle(root, id, p)
	if err != nil {
		return err
	}
	L.Debug(ctx, "renamed bundle", "app_dir", appDir)

	if err := ctx.Err(); err != nil {
		return xerrors.WithStack(err)
	}
	if err := r.patchFile(ctx, L, filepath.Join(appDir, infoPlist), MetadataPlan(id, p)); err != nil {
		return xerrors.Wrap(err, "patch metadata")
	}

	if err := ctx.Err(); err != nil {
		return xerrors.WithStack(err)
	}
	if err := r.patchFile(ctx, L, filepath.Join(appDir, id.DisplayName), ExecutablePlan(id, p)); err != nil {
		return xerrors.Wrap(err, "patch executable")
	}

	if p.Mode == ModeAlternate {
		aux := filepath.Join(appDir, p.AuxiliaryBinary)
		if _, err := os.Stat(aux); err != nil {
			return &AuxiliaryBinaryMissingError{Path: aux, Err: err}
		}
		if err := r.patchFile(ctx, L, aux, AuxiliaryPlan(id, p)); err != nil {
			return xerrors.Wrap(err, "patch auxiliary binary")
		}
	}

	info, err := InspectBundle(appDir)
	if err != nil {
		// informational only, the plist is never validated
		L.Warn(ctx, "could not decode patched Info.plist", "err", err)
		return nil
	}
	L.Info(ctx, "rewrote bundle",
		"identifier", info.Identifier,
		"executable", info.Executable,
		"display_name", info.DisplayName,
	)
	return nil
}

func (r *Rewriter) renameBundle(root string, id Identity, p TemplateProfile) (string, error) {
	src := filepath.Join(root, payloadDir, p.AppName+".app")
	dst := AppDir(root, id)
	if err := requireExists(src, true); err != nil {
		return "", &StructuralRenameError{Path: src, Err: err}
	}
	if err := os.Rename(src, dst); err != nil {
		return "", &StructuralRenameError{Path: src, Err: err}
	}

	exeSrc := filepath.Join(dst, p.AppName)
	exeDst := filepath.Join(dst, id.DisplayName)
	if err := requireExists(exeSrc, false); err != nil {
		return "", &StructuralRenameError{Path: exeSrc, Err: err}
	}
	if err := os.Rename(exeSrc, exeDst); err != nil {
		return "", &StructuralRenameError{Path: exeSrc, Err: err}
	}
	return dst, nil
}

var (
	errWantDir  = errors.New("expected a directory")
	errWantFile = errors.New("expected a regular file")
)

func requireExists(p string, dir bool) error {
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}
	switch {
	case dir && !fi.IsDir():
		return errWantDir
	case !dir && !fi.Mode().IsRegular():
		return errWantFile
	}
	return nil
}

// patchFile reads the whole file, applies plan and writes it back with the
// original permissions. Files are bounded app binaries so holding one in
// memory is fine.
func (r *Rewriter) patchFile(ctx context.Context, L log.Logger, path string, plan Plan) error {
	fi, err := os.Stat(path)
	if err != nil {
		return xerrors.Wrapf(err, "stat %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Wrapf(err, "read %s", path)
	}

	out, counts := plan.Apply(data)

	if err := writeFileMode(path, out, fi.Mode().Perm()); err != nil {
		return err
	}

	kv := []any{"file", filepath.Base(path), "bytes_before", len(data), "bytes_after", len(out), "sha256", cryptoutil.SHA256Hex(out)}
	for _, c := range plan.Totals(counts) {
		kv = append(kv, "replaced_"+c.Name, c.Count)
	}
	L.Info(ctx, "patched file", kv...)
	return nil
}

func writeFileMode(path string, data []byte, perm fs.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return xerrors.Wrapf(err, "write %s", path)
	}
	// WriteFile only applies perm on create
	if err := os.Chmod(path, perm); err != nil {
		return xerrors.Wrapf(err, "chmod %s", path)
	}
	return nil
}
