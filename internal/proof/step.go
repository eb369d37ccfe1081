// Package proof implements the linearized proof DAG: a pre-order encoding
// of a tree whose internal nodes are Op/Fork and whose leaves are
// Attestation.
package proof

import (
	"errors"
	"io"

	"otsgo/internal/attestation"
	"otsgo/internal/codec"
	"otsgo/internal/ops"
)

// ErrUnknownOp is returned when a Step's leading byte matches none of the
// known Op/Fork/Attestation tags.
var ErrUnknownOp = errors.New("proof: unknown step tag")

// Wire tags that don't belong to ops.Op (which already defines the HashOp
// and Append/Prepend/Hexlify tags).
const (
	tagAttestation = 0x00
	tagFork        = 0xff
)

// Kind discriminates a Step's payload.
type Kind int

const (
	// KindAttestation marks a leaf.
	KindAttestation Kind = iota
	// KindOp marks a single-child internal node.
	KindOp
	// KindFork marks a two-child internal node.
	KindFork
)

// Step is one node of the linearized proof tree.
type Step struct {
	Kind        Kind
	Op          ops.Op
	Attestation attestation.Attestation
}

// NewOpStep wraps o as a Step.
func NewOpStep(o ops.Op) Step { return Step{Kind: KindOp, Op: o} }

// NewAttestationStep wraps a as a Step.
func NewAttestationStep(a attestation.Attestation) Step {
	return Step{Kind: KindAttestation, Attestation: a}
}

// ForkStep is the sentinel Fork step.
var ForkStep = Step{Kind: KindFork}

// Write encodes s's wire representation.
func (s Step) Write(w io.Writer) error {
	switch s.Kind {
	case KindAttestation:
		if _, err := w.Write([]byte{tagAttestation}); err != nil {
			return err
		}
		return attestation.Write(w, s.Attestation)
	case KindFork:
		_, err := w.Write([]byte{tagFork})
		return err
	case KindOp:
		if _, err := w.Write([]byte{s.Op.Tag()}); err != nil {
			return err
		}
		switch o := s.Op.(type) {
		case ops.Append:
			return codec.WriteVarbytes(w, o.B)
		case ops.Prepend:
			return codec.WriteVarbytes(w, o.B)
		default:
			return nil // HashOp, Hexlify: the tag byte is the whole encoding
		}
	default:
		return ErrUnknownOp
	}
}

// ReadStep decodes a single Step from r.
func ReadStep(r io.Reader) (Step, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return Step{}, err
	}
	tag := tagBuf[0]

	switch tag {
	case tagAttestation:
		a, err := attestation.Read(r)
		if err != nil {
			return Step{}, err
		}
		return NewAttestationStep(a), nil
	case tagFork:
		return ForkStep, nil
	case byte(ops.Sha1), byte(ops.Sha256), byte(ops.Ripemd160):
		return NewOpStep(ops.Hash{H: ops.HashOp(tag)}), nil
	case ops.TagHexlify:
		return NewOpStep(ops.Hexlify{}), nil
	case ops.TagAppend:
		b, err := codec.ReadVarbytes(r, ops.MaxOutputLength)
		if err != nil {
			return Step{}, err
		}
		return NewOpStep(ops.Append{B: b}), nil
	case ops.TagPrepend:
		b, err := codec.ReadVarbytes(r, ops.MaxOutputLength)
		if err != nil {
			return Step{}, err
		}
		return NewOpStep(ops.Prepend{B: b}), nil
	default:
		return Step{}, ErrUnknownOp
	}
}
