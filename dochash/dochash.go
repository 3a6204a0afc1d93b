// Package dochash computes content hashes of GraphQL documents. A document's
// primary hash is its identity in the query registry; external hashes are
// additional hashes of the same document computed by clients with their own
// algorithm and format choices.
package dochash

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/dekarrin/rezi/v2"
	"github.com/dekarrin/taffy"
	"golang.org/x/crypto/blake2b"
)

// Algorithm is the hash algorithm used to produce a Hash.
type Algorithm string

func (alg Algorithm) String() string {
	return string(alg)
}

const (
	AlgorithmNone    Algorithm = "none"
	AlgorithmSHA256  Algorithm = "sha256"
	AlgorithmSHA1    Algorithm = "sha1"
	AlgorithmMD5     Algorithm = "md5"
	AlgorithmBlake2b Algorithm = "blake2b"
)

// ParseAlgorithm parses a string into an Algorithm. An unrecognized string
// returns an error matching taffy.ErrBadArgument.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case AlgorithmSHA256.String():
		return AlgorithmSHA256, nil
	case AlgorithmSHA1.String():
		return AlgorithmSHA1, nil
	case AlgorithmMD5.String():
		return AlgorithmMD5, nil
	case AlgorithmBlake2b.String():
		return AlgorithmBlake2b, nil
	default:
		return AlgorithmNone, taffy.NewErrorf([]error{taffy.ErrBadArgument}, "algorithm not one of 'sha256', 'sha1', 'md5', or 'blake2b': %q", s)
	}
}

// Format is the text encoding of a Hash's value.
type Format string

func (f Format) String() string {
	return string(f)
}

const (
	FormatNone   Format = "none"
	FormatHex    Format = "hex"
	FormatBase64 Format = "base64"
)

// ParseFormat parses a string into a Format. An unrecognized string returns
// an error matching taffy.ErrBadArgument.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case FormatHex.String():
		return FormatHex, nil
	case FormatBase64.String():
		return FormatBase64, nil
	default:
		return FormatNone, taffy.NewErrorf([]error{taffy.ErrBadArgument}, "format not one of 'hex' or 'base64': %q", s)
	}
}

// Hash is the content hash of a document, together with the algorithm and
// text format its value was produced with. Two Hash values are the same hash
// exactly when they are equal.
type Hash struct {
	Hash      string    `json:"hash"`
	Algorithm Algorithm `json:"algorithm"`
	Format    Format    `json:"format"`
}

// IsZero returns whether h is the zero-valued Hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return h.Algorithm.String() + ":" + h.Format.String() + ":" + h.Hash
}

func (h Hash) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(h.Hash)...)
	enc = append(enc, rezi.MustEnc(string(h.Algorithm))...)
	enc = append(enc, rezi.MustEnc(string(h.Format))...)

	return enc, nil
}

func (h *Hash) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Hash
	var s string

	// value
	err = rr.Dec(&decoded.Hash)
	if err != nil {
		return rezi.Wrapf(0, "hash: %s", err)
	}

	// algorithm
	err = rr.Dec(&s)
	if err != nil {
		return rezi.Wrapf(0, "algorithm: %s", err)
	}
	decoded.Algorithm = Algorithm(s)

	// format
	err = rr.Dec(&s)
	if err != nil {
		return rezi.Wrapf(0, "format: %s", err)
	}
	decoded.Format = Format(s)

	*h = decoded

	return nil
}

// Hasher produces Hash values for documents using a fixed algorithm and
// format. The zero value behaves like Default; create one with New to select
// a different algorithm or format.
type Hasher struct {
	alg    Algorithm
	format Format
}

// New creates a Hasher for the given algorithm and format. An error matching
// taffy.ErrBadArgument is returned if either is not a supported value.
func New(alg Algorithm, format Format) (Hasher, error) {
	switch alg {
	case AlgorithmSHA256, AlgorithmSHA1, AlgorithmMD5, AlgorithmBlake2b:
	default:
		return Hasher{}, taffy.NewErrorf([]error{taffy.ErrBadArgument}, "unsupported algorithm: %q", alg)
	}

	switch format {
	case FormatHex, FormatBase64:
	default:
		return Hasher{}, taffy.NewErrorf([]error{taffy.ErrBadArgument}, "unsupported format: %q", format)
	}

	return Hasher{alg: alg, format: format}, nil
}

// Default returns the Hasher the registry uses when no other is configured,
// SHA-256 with hex output.
func Default() Hasher {
	return Hasher{alg: AlgorithmSHA256, format: FormatHex}
}

// Algorithm returns the algorithm the Hasher was created with.
func (hr Hasher) Algorithm() Algorithm {
	return hr.alg
}

// Format returns the format the Hasher was created with.
func (hr Hasher) Format() Format {
	return hr.format
}

// Hash computes the content hash of the given document bytes.
func (hr Hasher) Hash(document []byte) Hash {
	var sum []byte

	switch hr.alg {
	case AlgorithmSHA1:
		b := sha1.Sum(document)
		sum = b[:]
	case AlgorithmMD5:
		b := md5.Sum(document)
		sum = b[:]
	case AlgorithmBlake2b:
		b := blake2b.Sum256(document)
		sum = b[:]
	default:
		// zero-value Hashers hash as the default algorithm
		b := sha256.Sum256(document)
		sum = b[:]
	}

	format := hr.format
	if format == "" {
		format = FormatHex
	}
	alg := hr.alg
	if alg == "" {
		alg = AlgorithmSHA256
	}

	var value string
	if format == FormatBase64 {
		value = base64.StdEncoding.EncodeToString(sum)
	} else {
		value = hex.EncodeToString(sum)
	}

	return Hash{Hash: value, Algorithm: alg, Format: format}
}

// HashString computes the content hash of the given document string.
func (hr Hasher) HashString(document string) Hash {
	return hr.Hash([]byte(document))
}
