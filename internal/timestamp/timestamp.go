// Package timestamp implements the OpenTimestamps proof itself: an
// immutable Timestamp pairing a message with its Steps, a Builder for
// constructing one incrementally, and the FileDigest message type used by
// the detached-file envelope.
package timestamp

import (
	"bytes"

	"otsgo/internal/evaluator"
	"otsgo/internal/ops"
	"otsgo/internal/proof"
)

// Message is anything a Timestamp can be built over: raw bytes, a 32-byte
// digest, or a FileDigest. The evaluator only ever needs the byte view.
type Message interface {
	AsBytes() []byte
}

// Bytes is the []byte Message implementation.
type Bytes []byte

// AsBytes implements Message.
func (b Bytes) AsBytes() []byte { return []byte(b) }

// Digest32 is the [32]byte Message implementation used by the Merkle
// aggregator and calendar RPC, which only ever deal in fixed-width
// digests.
type Digest32 [32]byte

// AsBytes implements Message.
func (d Digest32) AsBytes() []byte { return d[:] }

// FileDigest is one of the three supported hash outputs, tagged by
// algorithm, as used by the detached-file envelope.
type FileDigest struct {
	Algo   ops.HashOp
	Digest []byte
}

// AsBytes implements Message.
func (f FileDigest) AsBytes() []byte { return f.Digest }

// Timestamp is an immutable proof: a message and the Steps that, evaluated
// from msg.AsBytes(), produce a well-defined value at every attestation.
type Timestamp struct {
	Msg   Message
	Steps proof.Steps
}

// Evaluate replays t.Steps from t.Msg and returns every event, failing if
// the steps are not well-formed against t.Msg (see evaluator.Run).
func (t Timestamp) Evaluate() ([]evaluator.Event, error) {
	return evaluator.Run(t.Msg.AsBytes(), t.Steps)
}

// Equal reports whether t and other serialize identically for the same
// message bytes.
func (t Timestamp) Equal(other Timestamp) bool {
	return bytes.Equal(t.Msg.AsBytes(), other.Msg.AsBytes()) &&
		bytes.Equal(t.Steps.Bytes(), other.Steps.Bytes())
}
