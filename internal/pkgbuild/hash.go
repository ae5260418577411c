package pkgbuild

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
)

func newHasher(alg string) hash.Hash {
	switch alg {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	case "sha256":
		return sha256.New()
	case "sha384":
		return sha512.New384()
	case "sha512":
		return sha512.New()
	}
	return nil
}

// SumAll digests data under every supported algorithm in one pass and
// returns hex-encoded sums keyed by algorithm name.
func SumAll(data []byte) map[string]string {
	hashers := make(map[string]hash.Hash, len(Algorithms))
	writers := make([]io.Writer, 0, len(Algorithms))
	for _, alg := range Algorithms {
		h := newHasher(alg)
		hashers[alg] = h
		writers = append(writers, h)
	}

	// hash.Hash writers never fail.
	_, _ = io.MultiWriter(writers...).Write(data)

	sums := make(map[string]string, len(Algorithms))
	for alg, h := range hashers {
		sums[alg] = hex.EncodeToString(h.Sum(nil))
	}
	return sums
}
