package storage

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// ShardCodec splits file content into Reed-Solomon shards so a package
// file survives the loss of up to parityShards shard files on disk.
type ShardCodec struct {
	dataShards   int
	parityShards int
	enc          reedsolomon.Encoder
}

// NewShardCodec builds a codec with the given data/parity layout.
func NewShardCodec(dataShards, parityShards int) (*ShardCodec, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("failed to create reed-solomon encoder: %w", err)
	}
	return &ShardCodec{
		dataShards:   dataShards,
		parityShards: parityShards,
		enc:          enc,
	}, nil
}

// TotalShards returns the number of shard files written per stored file.
func (c *ShardCodec) TotalShards() int {
	return c.dataShards + c.parityShards
}

// Split encodes data into dataShards+parityShards equally sized shards.
// The last data shard is zero-padded; Join trims the padding back off
// using the recorded original size.
func (c *ShardCodec) Split(data []byte) ([][]byte, error) {
	shardSize := (len(data) + c.dataShards - 1) / c.dataShards
	if shardSize == 0 {
		shardSize = 1
	}

	shards := make([][]byte, c.TotalShards())
	for i := 0; i < c.dataShards; i++ {
		shard := make([]byte, shardSize)
		start := i * shardSize
		if start < len(data) {
			copy(shard, data[start:])
		}
		shards[i] = shard
	}
	for i := c.dataShards; i < c.TotalShards(); i++ {
		shards[i] = make([]byte, shardSize)
	}

	if err := c.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("failed to encode shards: %w", err)
	}
	return shards, nil
}

// Join reconstructs the original content from shards. Missing shards
// must be nil entries; up to parityShards of them can be absent.
func (c *ShardCodec) Join(shards [][]byte, originalSize int) ([]byte, error) {
	if len(shards) != c.TotalShards() {
		return nil, fmt.Errorf("expected %d shards, got %d", c.TotalShards(), len(shards))
	}

	if err := c.enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("failed to reconstruct shards: %w", err)
	}
	ok, err := c.enc.Verify(shards)
	if err != nil {
		return nil, fmt.Errorf("failed to verify shards: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("shard verification failed after reconstruction")
	}

	var buf bytes.Buffer
	for i := 0; i < c.dataShards; i++ {
		buf.Write(shards[i])
	}
	data := buf.Bytes()
	if len(data) > originalSize {
		data = data[:originalSize]
	}
	return data, nil
}
