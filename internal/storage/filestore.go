// Package storage persists package blobs (tarballs, PKGBUILDs, source
// and install files) on the local filesystem. Every stored file is
// split into Reed-Solomon shards with a sidecar metadata record, so a
// damaged or missing shard does not lose the file.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a logical path has no stored file.
var ErrNotFound = errors.New("stored file not found")

// FileStore is a shard-backed blob store keyed by logical slash paths
// such as "mypackage/sources/PKGBUILD".
type FileStore struct {
	root  string
	codec *ShardCodec
	mu    sync.RWMutex
}

// fileMeta is the sidecar record written next to the shards.
type fileMeta struct {
	LogicalPath    string    `json:"logical_path"`
	OriginalSize   int       `json:"original_size"`
	DataShards     int       `json:"data_shards"`
	ParityShards   int       `json:"parity_shards"`
	Checksum       string    `json:"checksum"`
	StoredAt       time.Time `json:"stored_at"`
	ShardChecksums []string  `json:"shard_checksums"`
}

// NewFileStore opens (creating if needed) a store rooted at root.
func NewFileStore(root string, dataShards, parityShards int) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	codec, err := NewShardCodec(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: root, codec: codec}, nil
}

// dirFor maps a logical path to its on-disk shard directory and guards
// against path traversal out of the store root.
func (fs *FileStore) dirFor(name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid logical path %q", name)
	}
	return filepath.Join(fs.root, filepath.FromSlash(clean)), nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes data under the logical path, replacing any prior content.
func (fs *FileStore) Save(ctx context.Context, name string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := fs.dirFor(name)
	if err != nil {
		return err
	}
	shards, err := fs.codec.Split(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	meta := fileMeta{
		LogicalPath:    name,
		OriginalSize:   len(data),
		DataShards:     fs.codec.dataShards,
		ParityShards:   fs.codec.parityShards,
		Checksum:       sha256Hex(data),
		StoredAt:       time.Now(),
		ShardChecksums: make([]string, len(shards)),
	}
	for i, shard := range shards {
		meta.ShardChecksums[i] = sha256Hex(shard)
		shardPath := filepath.Join(dir, fmt.Sprintf("shard-%d.bin", i))
		if err := os.WriteFile(shardPath, shard, 0o644); err != nil {
			os.RemoveAll(dir)
			return fmt.Errorf("failed to write shard %d: %w", i, err)
		}
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to marshal file metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaJSON, 0o644); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to write file metadata: %w", err)
	}
	return nil
}

// Read reconstructs the content stored under the logical path. Shards
// that are missing or fail their checksum are dropped and reconstructed
// from parity.
func (fs *FileStore) Read(ctx context.Context, name string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := fs.dirFor(name)
	if err != nil {
		return nil, err
	}
	metaJSON, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}
	var meta fileMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse file metadata: %w", err)
	}

	total := meta.DataShards + meta.ParityShards
	shards := make([][]byte, total)
	for i := 0; i < total; i++ {
		shard, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("shard-%d.bin", i)))
		if err != nil {
			continue
		}
		if i < len(meta.ShardChecksums) && sha256Hex(shard) != meta.ShardChecksums[i] {
			continue
		}
		shards[i] = shard
	}

	data, err := fs.codec.Join(shards, meta.OriginalSize)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct %s: %w", name, err)
	}
	if sha256Hex(data) != meta.Checksum {
		return nil, fmt.Errorf("checksum mismatch for %s", name)
	}
	return data, nil
}

// Delete removes the file stored under the logical path. Deleting an
// absent path is not an error.
func (fs *FileStore) Delete(ctx context.Context, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := fs.dirFor(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove stored file: %w", err)
	}
	return nil
}

// Exists reports whether a file is stored under the logical path.
func (fs *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := fs.dirFor(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(filepath.Join(dir, "meta.json")); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat stored file: %w", err)
	}
	return true, nil
}
