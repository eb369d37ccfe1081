// Package attestation implements the terminal leaves of an OpenTimestamps
// proof: a binding of a message to a trusted time claim.
package attestation

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"otsgo/internal/codec"
)

// MaxPayloadLength caps an attestation's varbytes payload as read off the
// wire, before the variant-specific parser runs.
const MaxPayloadLength = 8192

// MaxURILength is the longest Pending calendar URI this library accepts.
const MaxURILength = 1000

// Tag identifies an attestation's 8-byte wire prefix.
type Tag [8]byte

// Well-known attestation tags.
var (
	TagBitcoin = Tag{0x05, 0x88, 0x96, 0x0d, 0x73, 0xd7, 0x19, 0x01}
	TagPending = Tag{0x83, 0xdf, 0xe3, 0x0d, 0x2e, 0xf9, 0x0c, 0x8e}
)

// ErrTrailingBytes indicates a variant's payload parser did not consume the
// whole varbytes payload.
var ErrTrailingBytes = errors.New("attestation: trailing bytes in payload")

// InvalidURICode enumerates why a URI was rejected.
type InvalidURICode int

const (
	// URITooLong means the URI exceeded MaxURILength bytes.
	URITooLong InvalidURICode = iota
	// URIInvalidChar means a byte outside the accepted alphabet was found.
	URIInvalidChar
)

// InvalidURIError reports why UriString construction failed.
type InvalidURIError struct {
	Code InvalidURICode
	Byte byte // set when Code == URIInvalidChar
}

func (e *InvalidURIError) Error() string {
	switch e.Code {
	case URITooLong:
		return fmt.Sprintf("attestation: uri exceeds %d bytes", MaxURILength)
	case URIInvalidChar:
		return fmt.Sprintf("attestation: uri contains invalid byte 0x%02x", e.Byte)
	default:
		return "attestation: invalid uri"
	}
}

// isURIByte reports whether b is drawn from A-Z a-z 0-9 - . _ / :
func isURIByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '/' || b == ':':
		return true
	default:
		return false
	}
}

// NewURI validates s as a calendar/pending URI.
func NewURI(s string) (string, error) {
	if len(s) > MaxURILength {
		return "", &InvalidURIError{Code: URITooLong}
	}
	for i := 0; i < len(s); i++ {
		if !isURIByte(s[i]) {
			return "", &InvalidURIError{Code: URIInvalidChar, Byte: s[i]}
		}
	}
	return s, nil
}

// Attestation is the tagged union of terminal proof steps.
type Attestation interface {
	// Tag is this attestation's 8-byte wire prefix.
	Tag() Tag
	// WritePayload writes the variant-specific payload body.
	WritePayload(w io.Writer) error
	// Equal reports deep equality, used by tests and Merkle joins.
	Equal(other Attestation) bool
}

// Bitcoin attests that the message was committed to a Bitcoin block.
// Verifying the claim (walking headers to block_height) is out of scope;
// callers receive BlockHeight and check it externally.
type Bitcoin struct {
	BlockHeight uint32
}

func (a Bitcoin) Tag() Tag { return TagBitcoin }

func (a Bitcoin) WritePayload(w io.Writer) error {
	return codec.WriteVarint(w, uint64(a.BlockHeight))
}

func (a Bitcoin) Equal(other Attestation) bool {
	o, ok := other.(Bitcoin)
	return ok && o.BlockHeight == a.BlockHeight
}

// Pending attests that a calendar server at URI will eventually upgrade
// this branch to a Bitcoin attestation.
type Pending struct {
	URI string
}

func (a Pending) Tag() Tag { return TagPending }

func (a Pending) WritePayload(w io.Writer) error {
	return codec.WriteVarbytes(w, []byte(a.URI))
}

func (a Pending) Equal(other Attestation) bool {
	o, ok := other.(Pending)
	return ok && o.URI == a.URI
}

// Unknown preserves an attestation this library doesn't recognize so it can
// still be relayed or re-serialized without loss.
type Unknown struct {
	RawTag  Tag
	Payload []byte
}

func (a Unknown) Tag() Tag { return a.RawTag }

func (a Unknown) WritePayload(w io.Writer) error {
	_, err := w.Write(a.Payload)
	return err
}

func (a Unknown) Equal(other Attestation) bool {
	o, ok := other.(Unknown)
	return ok && o.RawTag == a.RawTag && bytes.Equal(o.Payload, a.Payload)
}

// Write encodes a to w as: 8-byte tag ∥ varbytes(payload).
func Write(w io.Writer, a Attestation) error {
	tag := a.Tag()
	if _, err := w.Write(tag[:]); err != nil {
		return err
	}

	var payload bytes.Buffer
	if err := a.WritePayload(&payload); err != nil {
		return err
	}
	return codec.WriteVarbytes(w, payload.Bytes())
}

// Read decodes an Attestation from r: 8-byte tag, then a varbytes payload
// capped at MaxPayloadLength. Known tags are parsed and must fully consume
// the payload; unknown tags are preserved verbatim.
func Read(r io.Reader) (Attestation, error) {
	var tag Tag
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}

	payload, err := codec.ReadVarbytes(r, MaxPayloadLength)
	if err != nil {
		return nil, err
	}

	pr := bytes.NewReader(payload)
	var a Attestation

	switch tag {
	case TagBitcoin:
		height, err := codec.ReadVarintBits(pr, 32)
		if err != nil {
			return nil, err
		}
		a = Bitcoin{BlockHeight: uint32(height)}
	case TagPending:
		raw, err := codec.ReadVarbytes(pr, MaxURILength)
		if err != nil {
			return nil, err
		}
		uri, err := NewURI(string(raw))
		if err != nil {
			return nil, err
		}
		a = Pending{URI: uri}
	default:
		return Unknown{RawTag: tag, Payload: payload}, nil
	}

	if pr.Len() != 0 {
		return nil, ErrTrailingBytes
	}
	return a, nil
}
