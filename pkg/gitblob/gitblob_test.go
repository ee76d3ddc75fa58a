package gitblob

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // reference computation
	"encoding/hex"
	"fmt"
	"hash"
	"testing"
)

// Reference IDs verified with `git hash-object --stdin`.
func TestKnownVectors(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		expect string
	}{
		{
			name:   "empty blob",
			input:  []byte(""),
			expect: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		},
		{
			name:   "hello",
			input:  []byte("hello"),
			expect: "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0",
		},
		{
			name:   "hello newline",
			input:  []byte("hello\n"),
			expect: "ce013625030ba8dba906f756967f9e9ca394464a",
		},
		{
			name:   "hello world",
			input:  []byte("hello world"),
			expect: "95d09f2b10159347eece71399a7e2e907ea3df4f",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sum(tc.input); got != tc.expect {
				t.Fatalf("Sum(%q) = %s, want %s", tc.input, got, tc.expect)
			}
		})
	}
}

// TestMatchesHeaderedSHA1 cross-checks the streaming digest against a
// plain SHA-1 over header plus content.
func TestMatchesHeaderedSHA1(t *testing.T) {
	content := bytes.Repeat([]byte{0x00, 0xFF, 'a'}, 4096)

	ref := sha1.New() //nolint:gosec // reference computation
	fmt.Fprintf(ref, "blob %d\x00", len(content))
	ref.Write(content)

	want := hex.EncodeToString(ref.Sum(nil))
	if got := Sum(content); got != want {
		t.Fatalf("Sum = %s, want %s", got, want)
	}
}

func TestIncrementalWrites(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")

	h := New(int64(len(content)))
	for i := range content {
		h.Write(content[i : i+1])
	}

	if got := hex.EncodeToString(h.Sum(nil)); got != Sum(content) {
		t.Fatalf("byte-at-a-time = %s, want %s", got, Sum(content))
	}
}

func TestReset(t *testing.T) {
	h := New(5)
	h.Write([]byte("junk!"))
	h.Reset()
	h.Write([]byte("hello"))

	if got := hex.EncodeToString(h.Sum(nil)); got != "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0" {
		t.Fatalf("after Reset = %s", got)
	}
}

func TestSumIsNonDestructive(t *testing.T) {
	h := New(11)
	h.Write([]byte("hello"))
	_ = h.Sum(nil)
	h.Write([]byte(" world"))

	if got := hex.EncodeToString(h.Sum(nil)); got != "95d09f2b10159347eece71399a7e2e907ea3df4f" {
		t.Fatalf("Sum after partial Sum = %s", got)
	}
}

func TestInterface(t *testing.T) {
	var h hash.Hash = New(0)

	if h.Size() != Size {
		t.Errorf("Size() = %d, want %d", h.Size(), Size)
	}

	if h.BlockSize() != BlockSize {
		t.Errorf("BlockSize() = %d, want %d", h.BlockSize(), BlockSize)
	}
}
