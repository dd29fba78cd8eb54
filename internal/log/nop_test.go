package log

import (
	"context"
	"errors"
	"testing"
)

// Nop

func TestNop_DiscardsEverything(t *testing.T) {
	l := Nop()
	ctx := context.Background()

	l.Debug(ctx, "renamed bundle", "app_dir", "Payload/MyApp.app")
	l.Info(ctx, "patched file", "replaced_bundle_id", 3)
	l.Warn(ctx, "could not decode patched Info.plist")
	l.Error(ctx, errors.New("boom"), "rebrand failed")

	if err := l.Sync(); err != nil {
		t.Fatalf("Sync = %v", err)
	}
}

func TestNop_WithStaysNop(t *testing.T) {
	child := Nop().With("workspace", "/tmp/x")
	if _, ok := child.(nopLogger); !ok {
		t.Fatalf("With returned %T, want nopLogger", child)
	}
}
