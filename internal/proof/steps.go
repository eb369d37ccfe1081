package proof

import (
	"bytes"
	"errors"
	"io"
)

// ErrTruncatedSteps indicates the stream ended while a branch was still
// open (tips > 0).
var ErrTruncatedSteps = errors.New("proof: truncated steps")

// Steps is the pre-order linearization of a proof tree: Op nodes have one
// child, Fork nodes have two, and Attestation nodes are leaves. A sequence
// is well-formed iff a linear scan with tips starting at 1 -- incremented
// on Fork, decremented on Attestation -- stays positive until the last
// step, where it reaches exactly zero.
type Steps []Step

// Serialize writes every step's wire encoding in order. There is no
// explicit terminator; readers rely on the tips invariant for framing.
func (s Steps) Serialize(w io.Writer) error {
	for _, step := range s {
		if err := step.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns s's wire encoding.
func (s Steps) Bytes() []byte {
	var buf bytes.Buffer
	_ = s.Serialize(&buf)
	return buf.Bytes()
}

// Deserialize reads steps from r until the tips counter returns to zero.
// It returns ErrTruncatedSteps if r is exhausted first.
func Deserialize(r io.Reader) (Steps, error) {
	var out Steps
	tips := 1

	for {
		step, err := ReadStep(r)
		if err != nil {
			if err == io.EOF {
				return nil, ErrTruncatedSteps
			}
			return nil, err
		}

		out = append(out, step)

		switch step.Kind {
		case KindFork:
			tips++
		case KindAttestation:
			tips--
		}

		if tips == 0 {
			return out, nil
		}
	}
}
