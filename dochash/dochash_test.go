package dochash

import (
	"testing"

	"github.com/dekarrin/taffy"
	"github.com/stretchr/testify/assert"
)

func Test_Hasher_Hash(t *testing.T) {
	testCases := []struct {
		name     string
		alg      Algorithm
		format   Format
		document string
		expect   string
	}{
		{
			name:     "sha256 hex of empty document",
			alg:      AlgorithmSHA256,
			format:   FormatHex,
			document: "",
			expect:   "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "sha256 hex",
			alg:      AlgorithmSHA256,
			format:   FormatHex,
			document: "abc",
			expect:   "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name:     "sha256 base64",
			alg:      AlgorithmSHA256,
			format:   FormatBase64,
			document: "",
			expect:   "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=",
		},
		{
			name:     "sha1 hex",
			alg:      AlgorithmSHA1,
			format:   FormatHex,
			document: "abc",
			expect:   "a9993e364706816aba3e25717850c26c9cd0d89d",
		},
		{
			name:     "md5 hex",
			alg:      AlgorithmMD5,
			format:   FormatHex,
			document: "abc",
			expect:   "900150983cd24fb0d6963f7d28e17f72",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			hr, err := New(tc.alg, tc.format)
			if !assert.NoError(err) {
				return
			}

			actual := hr.HashString(tc.document)

			assert.Equal(tc.expect, actual.Hash)
			assert.Equal(tc.alg, actual.Algorithm)
			assert.Equal(tc.format, actual.Format)
		})
	}
}

func Test_Hasher_Hash_blake2b(t *testing.T) {
	assert := assert.New(t)

	hr, err := New(AlgorithmBlake2b, FormatHex)
	if !assert.NoError(err) {
		return
	}

	h1 := hr.HashString("query { hero { name } }")
	h2 := hr.HashString("query { hero { name } }")
	other := hr.HashString("query { hero { id } }")

	// blake2b-256 produces 32 bytes, so 64 hex digits
	assert.Len(h1.Hash, 64)
	assert.Equal(h1, h2, "same document must produce the same hash")
	assert.NotEqual(h1.Hash, other.Hash, "different documents must produce different hashes")
	assert.Equal(AlgorithmBlake2b, h1.Algorithm)
}

func Test_New_rejectsUnknown(t *testing.T) {
	testCases := []struct {
		name   string
		alg    Algorithm
		format Format
	}{
		{name: "unknown algorithm", alg: Algorithm("crc32"), format: FormatHex},
		{name: "empty algorithm", alg: Algorithm(""), format: FormatHex},
		{name: "unknown format", alg: AlgorithmSHA256, format: Format("base32")},
		{name: "empty format", alg: AlgorithmSHA256, format: Format("")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := New(tc.alg, tc.format)
			assert.ErrorIs(err, taffy.ErrBadArgument)
		})
	}
}

func Test_ParseAlgorithm(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expect    Algorithm
		expectErr bool
	}{
		{name: "sha256", input: "sha256", expect: AlgorithmSHA256},
		{name: "mixed case", input: "SHA1", expect: AlgorithmSHA1},
		{name: "md5", input: "md5", expect: AlgorithmMD5},
		{name: "blake2b", input: "blake2b", expect: AlgorithmBlake2b},
		{name: "unknown", input: "whirlpool", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := ParseAlgorithm(tc.input)
			if tc.expectErr {
				assert.ErrorIs(err, taffy.ErrBadArgument)
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_ParseFormat(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expect    Format
		expectErr bool
	}{
		{name: "hex", input: "hex", expect: FormatHex},
		{name: "mixed case", input: "Base64", expect: FormatBase64},
		{name: "unknown", input: "base32", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := ParseFormat(tc.input)
			if tc.expectErr {
				assert.ErrorIs(err, taffy.ErrBadArgument)
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_Hash_roundTripBinary(t *testing.T) {
	assert := assert.New(t)

	original := Default().HashString("query { hero }")

	data, err := original.MarshalBinary()
	if !assert.NoError(err) {
		return
	}

	var decoded Hash
	err = decoded.UnmarshalBinary(data)
	if !assert.NoError(err) {
		return
	}

	assert.Equal(original, decoded)
}
