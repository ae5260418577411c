package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), 4, 2)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func TestShardCodec_SplitJoin(t *testing.T) {
	k, m := 4, 2
	codec, err := NewShardCodec(k, m)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}

	original := []byte("Hello, this is a test of Reed-Solomon shard coding!")
	shards, err := codec.Split(original)
	if err != nil {
		t.Fatalf("Failed to split: %v", err)
	}
	if len(shards) != k+m {
		t.Fatalf("Expected %d shards, got %d", k+m, len(shards))
	}

	t.Run("all shards intact", func(t *testing.T) {
		got, err := codec.Join(shards, len(original))
		if err != nil {
			t.Fatalf("Failed to join: %v", err)
		}
		if !bytes.Equal(got, original) {
			t.Errorf("reconstructed data does not match original")
		}
	})

	t.Run("maximum tolerated loss", func(t *testing.T) {
		lossy := make([][]byte, k+m)
		copy(lossy, shards)
		lossy[0] = nil
		lossy[k] = nil

		got, err := codec.Join(lossy, len(original))
		if err != nil {
			t.Fatalf("Failed to join with %d missing shards: %v", m, err)
		}
		if !bytes.Equal(got, original) {
			t.Errorf("reconstructed data does not match original")
		}
	})

	t.Run("too many missing shards", func(t *testing.T) {
		lossy := make([][]byte, k+m)
		copy(lossy, shards)
		for i := 0; i <= m; i++ {
			lossy[i] = nil
		}
		if _, err := codec.Join(lossy, len(original)); err == nil {
			t.Errorf("expected join to fail with %d missing shards", m+1)
		}
	})
}

func TestFileStore_SaveReadDelete(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()
	content := []byte("pkgname=demo\npkgver=1.0\n")

	if err := fs.Save(ctx, "demo/sources/PKGBUILD", content); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ok, err := fs.Exists(ctx, "demo/sources/PKGBUILD")
	if err != nil || !ok {
		t.Fatalf("Exists = (%v, %v), want (true, nil)", ok, err)
	}

	got, err := fs.Read(ctx, "demo/sources/PKGBUILD")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read = %q, want %q", got, content)
	}

	if err := fs.Delete(ctx, "demo/sources/PKGBUILD"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := fs.Read(ctx, "demo/sources/PKGBUILD"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read after delete: err = %v, want ErrNotFound", err)
	}

	// Deleting again must be a no-op.
	if err := fs.Delete(ctx, "demo/sources/PKGBUILD"); err != nil {
		t.Errorf("Delete of absent path failed: %v", err)
	}
}

func TestFileStore_SaveReplacesContent(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if err := fs.Save(ctx, "demo/demo.tar.gz", []byte("first")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := fs.Save(ctx, "demo/demo.tar.gz", []byte("second upload")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := fs.Read(ctx, "demo/demo.tar.gz")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "second upload" {
		t.Errorf("Read = %q, want the replacement content", got)
	}
}

func TestFileStore_SurvivesShardLoss(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFileStore(root, 4, 2)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	content := make([]byte, 64*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := fs.Save(ctx, "demo/install/demo.install", content); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Destroy one shard and corrupt another; parity covers both.
	dir := filepath.Join(root, "demo", "install", "demo.install")
	if err := os.Remove(filepath.Join(dir, "shard-0.bin")); err != nil {
		t.Fatalf("remove shard: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shard-3.bin"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt shard: %v", err)
	}

	got, err := fs.Read(ctx, "demo/install/demo.install")
	if err != nil {
		t.Fatalf("Read after shard loss failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("reconstructed content does not match original")
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"", ".", ".."} {
		if err := fs.Save(ctx, name, []byte("x")); err == nil {
			t.Errorf("Save(%q) succeeded, want error", name)
		}
	}

	// Traversal segments are neutralized, never escape the root.
	if err := fs.Save(ctx, "a/../../escape", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ok, err := fs.Exists(ctx, "escape")
	if err != nil || !ok {
		t.Errorf("neutralized path not stored under root: (%v, %v)", ok, err)
	}
}
