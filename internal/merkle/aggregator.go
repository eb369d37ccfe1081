// Package merkle implements the OpenTimestamps batch aggregator: given N
// builders each seeded with a message, it produces a single tip digest
// that every builder's proof can be extended to share, so one calendar
// submission covers all N messages.
//
// The tree is unbalanced but deterministic -- the left half always gets
// floor(N/2) leaves -- which matters for wire reproducibility of batched
// timestamps.
package merkle

import (
	"crypto/sha256"
	"errors"

	"otsgo/internal/ops"
	"otsgo/internal/timestamp"
)

// ErrEmpty is returned by Build when given zero items.
var ErrEmpty = errors.New("merkle: build requires at least one item")

// ErrTipMismatch indicates the invariant check after a pairwise combine
// failed: not every builder in the combined slice ended with the same
// result. This signals a bug in this package, not caller misuse.
var ErrTipMismatch = errors.New("merkle: builders disagree on tip after combine")

// Build combines items into a single tip shared by every item's running
// result, mutating each *timestamp.Builder in place by pushing the ops
// that link it to the tip.
func Build(items []*timestamp.Builder) ([]byte, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	if len(items) == 1 {
		b := items[0]
		if len(b.Result()) != sha256.Size {
			b.Hash(ops.Sha256)
		}
		return b.Result(), nil
	}

	split := len(items) / 2
	left, right := items[:split], items[split:]

	tipLeft, err := Build(left)
	if err != nil {
		return nil, err
	}
	tipRight, err := Build(right)
	if err != nil {
		return nil, err
	}

	for _, b := range left {
		b.Append(tipRight)
		b.Hash(ops.Sha256)
	}
	for _, b := range right {
		b.Prepend(tipLeft)
		b.Hash(ops.Sha256)
	}

	tip := items[0].Result()
	for _, b := range items[1:] {
		if string(b.Result()) != string(tip) {
			return nil, ErrTipMismatch
		}
	}
	return tip, nil
}

// WithNonces wraps every message with a fresh random append+SHA-256 (see
// timestamp.Builder.HashWithNonce) before handing the resulting builders
// to Build, so the leaves of a public batch don't reveal equal inputs.
func WithNonces(msgs []timestamp.Message) ([]*timestamp.Builder, error) {
	builders := make([]*timestamp.Builder, len(msgs))
	for i, m := range msgs {
		b := timestamp.New(m)
		if _, err := b.HashWithNonce(); err != nil {
			return nil, err
		}
		builders[i] = b
	}
	return builders, nil
}

// Finish attaches tipTS -- a Timestamp whose message equals the tree's
// tip -- to every input builder, yielding one complete Timestamp per
// input, all sharing tipTS's attestations.
func Finish(items []*timestamp.Builder, tipTS timestamp.Timestamp) []timestamp.Timestamp {
	out := make([]timestamp.Timestamp, len(items))
	for i, b := range items {
		out[i] = b.FinishWithTimestamps([]timestamp.Timestamp{tipTS})
	}
	return out
}
