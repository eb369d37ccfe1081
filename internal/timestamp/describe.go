package timestamp

import (
	"fmt"

	"otsgo/internal/attestation"
	"otsgo/internal/evaluator"
	"otsgo/internal/ops"
	"otsgo/internal/proof"
)

// AttestationInfo describes one attestation leaf reached while walking a
// Timestamp: the attestation itself, the message it attests, and the
// human-readable op chain (root to leaf) that produced that message.
type AttestationInfo struct {
	Attestation attestation.Attestation
	Msg         []byte
	Ops         []string
}

// Describe walks t without needing a target message, reporting every
// attestation and the full operation chain that led to it. It is the
// read-only counterpart to Evaluate: where Evaluate answers "does this
// proof commit to msg", Describe answers "what does this proof say".
func Describe(t Timestamp) ([]AttestationInfo, error) {
	type branch struct {
		msg   []byte
		trail []string
	}

	cur := &branch{msg: t.Msg.AsBytes()}
	var stack []branch
	var out []AttestationInfo

	for _, step := range t.Steps {
		if cur == nil {
			return nil, evaluator.ErrTrailingSteps
		}

		switch step.Kind {
		case proof.KindOp:
			next, err := step.Op.Eval(cur.msg)
			if err != nil {
				return nil, err
			}
			trail := make([]string, len(cur.trail), len(cur.trail)+1)
			copy(trail, cur.trail)
			cur = &branch{msg: next, trail: append(trail, opString(step.Op))}

		case proof.KindFork:
			stack = append(stack, *cur)

		case proof.KindAttestation:
			out = append(out, AttestationInfo{
				Attestation: step.Attestation,
				Msg:         cur.msg,
				Ops:         cur.trail,
			})
			if n := len(stack); n > 0 {
				cur = &stack[n-1]
				stack = stack[:n-1]
			} else {
				cur = nil
			}

		default:
			return nil, proof.ErrUnknownOp
		}
	}

	if cur != nil {
		return nil, evaluator.ErrInsufficientSteps
	}
	return out, nil
}

func opString(o ops.Op) string {
	if s, ok := o.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("op(0x%02x)", o.Tag())
}
