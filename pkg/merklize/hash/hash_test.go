package hash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumenetwork/corestate/pkg/merklize/hash"
)

func TestByNameResolvesKnownHashers(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"", "blake3"},
		{"blake3", "blake3"},
		{"keccak256", "keccak256"},
		{"sha256", "sha256"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, ok := hash.ByName(tc.name)
			assert.True(t, ok)
			assert.Equal(t, tc.want, h.Name())
		})
	}
}

func TestByNameRejectsUnknown(t *testing.T) {
	_, ok := hash.ByName("md5")
	assert.False(t, ok)
}

func TestHashersAreDeterministicAndDistinct(t *testing.T) {
	input := []byte("application state engine")
	hashers := []hash.Hasher{hash.Blake3Hasher{}, hash.Keccak256Hasher{}, hash.SHA256Hasher{}}

	var digests [][32]byte
	for _, h := range hashers {
		a := h.Hash(input)
		b := h.Hash(input)
		assert.Equal(t, a, b, "%s must be deterministic", h.Name())
		digests = append(digests, a)
	}
	assert.NotEqual(t, digests[0], digests[1])
	assert.NotEqual(t, digests[1], digests[2])
	assert.NotEqual(t, digests[0], digests[2])
}

func TestICS23OpTagging(t *testing.T) {
	_, ok := hash.Blake3Hasher{}.ICS23Op()
	assert.False(t, ok, "blake3 has no standard ICS23 hash-op tag")

	op, ok := hash.Keccak256Hasher{}.ICS23Op()
	assert.True(t, ok)
	assert.NotZero(t, op)

	op, ok = hash.SHA256Hasher{}.ICS23Op()
	assert.True(t, ok)
	assert.NotZero(t, op)
}
