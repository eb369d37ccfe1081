package timestamp

import (
	"crypto/rand"
	"fmt"

	"otsgo/internal/attestation"
	"otsgo/internal/ops"
	"otsgo/internal/proof"
)

// Builder incrementally constructs a Timestamp. It is not safe for
// concurrent use; each Builder produces exactly one finished Timestamp.
type Builder struct {
	msg    Message
	result []byte // cumulative message after all steps so far; nil means msg unmodified
	steps  proof.Steps
}

// New starts a Builder over msg.
func New(msg Message) *Builder {
	return &Builder{msg: msg}
}

// Result returns the message value after every step pushed so far.
func (b *Builder) Result() []byte {
	if b.result != nil {
		return b.result
	}
	return b.msg.AsBytes()
}

// TryPush appends o to the proof, returning ops.ErrOverflow if evaluating
// it against the current result would exceed ops.MaxOutputLength.
func (b *Builder) TryPush(o ops.Op) (*Builder, error) {
	next, err := o.Eval(b.Result())
	if err != nil {
		return nil, err
	}
	b.steps = append(b.steps, proof.NewOpStep(o))
	b.result = next
	return b, nil
}

// Hash appends a HashOp. Hashing never overflows.
func (b *Builder) Hash(h ops.HashOp) *Builder {
	if _, err := b.TryPush(ops.Hash{H: h}); err != nil {
		panic(fmt.Sprintf("timestamp: hash op cannot overflow: %v", err))
	}
	return b
}

// Append pushes an Append op with caller-controlled binding bytes. It
// panics on overflow: binding arguments are the caller's responsibility,
// not the untrusted message's.
func (b *Builder) Append(bindArg []byte) *Builder {
	if _, err := b.TryPush(ops.Append{B: bindArg}); err != nil {
		panic(fmt.Sprintf("timestamp: append overflow: %v", err))
	}
	return b
}

// Prepend pushes a Prepend op; see Append for the panic contract.
func (b *Builder) Prepend(bindArg []byte) *Builder {
	if _, err := b.TryPush(ops.Prepend{B: bindArg}); err != nil {
		panic(fmt.Sprintf("timestamp: prepend overflow: %v", err))
	}
	return b
}

// HashWithNonce appends a random 128-bit nonce then hashes with SHA-256,
// so that independently-submitted timestamps for related messages don't
// leak equality to a calendar server. If the current result plus the
// nonce would overflow ops.MaxOutputLength, the result is hashed down to
// 32 bytes first.
func (b *Builder) HashWithNonce() (*Builder, error) {
	const nonceLen = 16

	if len(b.Result())+nonceLen > ops.MaxOutputLength {
		b.Hash(ops.Sha256)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("timestamp: read nonce: %w", err)
	}

	if _, err := b.TryPush(ops.Append{B: nonce}); err != nil {
		return nil, err
	}
	b.Hash(ops.Sha256)
	return b, nil
}

// FinishWithAttestation terminates the proof with a, returning the
// completed Timestamp.
func (b *Builder) FinishWithAttestation(a attestation.Attestation) Timestamp {
	steps := make(proof.Steps, len(b.steps), len(b.steps)+1)
	copy(steps, b.steps)
	steps = append(steps, proof.NewAttestationStep(a))
	return Timestamp{Msg: b.msg, Steps: steps}
}

// FinishWithTimestamps joins k >= 1 sub-timestamps that all share
// b.Result() as their message. The resulting Steps is b's prefix followed
// by k-1 Forks interleaved with each sub-proof's own steps (no trailing
// Fork). It panics if any sub.Msg does not equal b.Result(): that is a
// programming error, not a runtime condition callers should handle.
func (b *Builder) FinishWithTimestamps(subs []Timestamp) Timestamp {
	if len(subs) == 0 {
		panic("timestamp: finish_with_timestamps requires at least one sub-timestamp")
	}

	result := b.Result()
	for _, sub := range subs {
		if string(sub.Msg.AsBytes()) != string(result) {
			panic("timestamp: sub-timestamp message does not match builder result")
		}
	}

	out := make(proof.Steps, 0, len(b.steps)+len(subs)-1+sumSteps(subs))
	out = append(out, b.steps...)
	for i, sub := range subs {
		// A Fork pushes the current message without changing it, so it
		// must precede the branch that consumes that pushed value on its
		// closing Attestation. Every sub but the last gets a leading
		// Fork; the last runs against the still-current value and its
		// own closing Attestation finds the stack empty, ending the
		// proof cleanly.
		if i < len(subs)-1 {
			out = append(out, proof.ForkStep)
		}
		out = append(out, sub.Steps...)
	}

	return Timestamp{Msg: b.msg, Steps: out}
}

func sumSteps(subs []Timestamp) int {
	n := 0
	for _, s := range subs {
		n += len(s.Steps)
	}
	return n
}
