// Package gitblob computes git blob object IDs: the SHA-1 of the header
// "blob <size>\x00" followed by the content. The forge reports this ID for
// every file it stores, so comparing it with a locally computed one proves
// the server received exactly the bytes that were sent.
//
// The size must be known up front because it is part of the hashed header.
package gitblob

import (
	"crypto/sha1" //nolint:gosec // git object IDs are defined as SHA-1
	"encoding/hex"
	"hash"
	"strconv"
)

const (
	// Size is the length, in bytes, of a blob ID.
	Size = sha1.Size

	// BlockSize is the preferred input block size for the hash, in bytes.
	BlockSize = sha1.BlockSize
)

// digest streams content into SHA-1 after the blob header.
type digest struct {
	inner hash.Hash
	size  int64
}

// New returns a hash.Hash computing the blob ID of content that is exactly
// size bytes long. Writing a different number of bytes yields an ID that
// will not match any object git would produce for that content.
func New(size int64) hash.Hash {
	d := &digest{size: size}
	d.Reset()

	return d
}

// Write absorbs more content into the running hash.
// It always returns len(p), nil.
func (d *digest) Write(p []byte) (int, error) {
	return d.inner.Write(p)
}

// Sum appends the current blob ID to b and returns the resulting slice.
// It does not change the underlying hash state.
func (d *digest) Sum(b []byte) []byte {
	return d.inner.Sum(b)
}

// Reset resets the hash to its initial state, header included.
func (d *digest) Reset() {
	d.inner = sha1.New() //nolint:gosec // see package import

	header := make([]byte, 0, len("blob ")+20+1)
	header = append(header, "blob "...)
	header = strconv.AppendInt(header, d.size, 10)
	header = append(header, 0)

	d.inner.Write(header)
}

// Size returns the number of bytes Sum will return.
func (d *digest) Size() int {
	return Size
}

// BlockSize returns the hash's underlying block size.
func (d *digest) BlockSize() int {
	return BlockSize
}

// Sum returns the hex-encoded blob ID of content.
func Sum(content []byte) string {
	h := New(int64(len(content)))
	h.Write(content)

	return hex.EncodeToString(h.Sum(nil))
}
