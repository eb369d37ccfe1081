// Package ops implements the unary message transforms ("commitment
// operations") that chain together to form an OpenTimestamps proof step.
package ops

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// MaxOutputLength bounds every Op's output, so a proof can never grow
// without limit and every binding argument's varbytes length prefix is at
// most two bytes on the wire.
const MaxOutputLength = 4096

// maxHexlifyInput is the largest input Hexlify accepts; its output doubles
// in length, so the input bound keeps the output within MaxOutputLength.
const maxHexlifyInput = 2048

// HashOp identifies a hash algorithm usable as an Op.
type HashOp byte

// Wire tags for HashOp, shared with the Step tag space (see Tag).
const (
	Sha1      HashOp = 0x02
	Sha256    HashOp = 0x08
	Ripemd160 HashOp = 0x03
)

// ErrOverflow is returned by Eval when the result would exceed
// MaxOutputLength bytes.
var ErrOverflow = errors.New("ops: output would exceed max length")

// ErrUnknownHashOp is returned for a HashOp tag this library doesn't know.
var ErrUnknownHashOp = errors.New("ops: unknown hash op")

// Sum hashes m with h, returning the raw digest.
func (h HashOp) Sum(m []byte) ([]byte, error) {
	switch h {
	case Sha1:
		sum := sha1.Sum(m)
		return sum[:], nil
	case Sha256:
		sum := sha256.Sum256(m)
		return sum[:], nil
	case Ripemd160:
		d := ripemd160.New()
		d.Write(m) //nolint:errcheck // hash.Hash.Write never errors
		return d.Sum(nil), nil
	default:
		return nil, ErrUnknownHashOp
	}
}

// Len returns the digest length in bytes produced by h.
func (h HashOp) Len() int {
	switch h {
	case Sha1, Ripemd160:
		return 20
	case Sha256:
		return 32
	default:
		return 0
	}
}

func (h HashOp) String() string {
	switch h {
	case Sha1:
		return "sha1"
	case Sha256:
		return "sha256"
	case Ripemd160:
		return "ripemd160"
	default:
		return fmt.Sprintf("hashop(0x%02x)", byte(h))
	}
}

// Op is a unary transform f(m) -> m'.
type Op interface {
	// Eval applies the transform to m, returning the new message or
	// ErrOverflow if the result would exceed MaxOutputLength.
	Eval(m []byte) ([]byte, error)

	// Tag is this Op's leading wire byte.
	Tag() byte
}

// Hash wraps a HashOp as an Op.
type Hash struct{ H HashOp }

// Eval implements Op.
func (o Hash) Eval(m []byte) ([]byte, error) { return o.H.Sum(m) }

// Tag implements Op.
func (o Hash) Tag() byte { return byte(o.H) }

func (o Hash) String() string { return o.H.String() }

// Append returns m ∥ B.
type Append struct{ B []byte }

// Wire tag for Append.
const TagAppend = 0xf0

func (o Append) Eval(m []byte) ([]byte, error) {
	if len(m)+len(o.B) > MaxOutputLength {
		return nil, ErrOverflow
	}
	out := make([]byte, 0, len(m)+len(o.B))
	out = append(out, m...)
	out = append(out, o.B...)
	return out, nil
}

func (o Append) Tag() byte { return TagAppend }

func (o Append) String() string { return fmt.Sprintf("append %x", o.B) }

// Prepend returns B ∥ m.
type Prepend struct{ B []byte }

// Wire tag for Prepend.
const TagPrepend = 0xf1

func (o Prepend) Eval(m []byte) ([]byte, error) {
	if len(m)+len(o.B) > MaxOutputLength {
		return nil, ErrOverflow
	}
	out := make([]byte, 0, len(m)+len(o.B))
	out = append(out, o.B...)
	out = append(out, m...)
	return out, nil
}

func (o Prepend) Tag() byte { return TagPrepend }

func (o Prepend) String() string { return fmt.Sprintf("prepend %x", o.B) }

// Hexlify lowercases-hex-encodes m.
type Hexlify struct{}

// Wire tag for Hexlify.
const TagHexlify = 0xf3

func (o Hexlify) Eval(m []byte) ([]byte, error) {
	if len(m) > maxHexlifyInput {
		return nil, ErrOverflow
	}
	return []byte(hex.EncodeToString(m)), nil
}

func (o Hexlify) Tag() byte { return TagHexlify }

func (o Hexlify) String() string { return "hexlify" }
