package codec

import "errors"

// Sentinel errors returned by the varint/varbytes codec.
var (
	// ErrVarintOverflow indicates a varint's continuation bytes exceeded
	// the declared bit width before a terminator was found.
	ErrVarintOverflow = errors.New("codec: varint overflow")

	// ErrNonCanonical indicates a varint's terminating byte was zero
	// while continuation bytes preceded it, i.e. a longer-than-necessary
	// encoding of a value that has a shorter canonical form.
	ErrNonCanonical = errors.New("codec: non-canonical varint")

	// ErrLengthLimitExceeded indicates a varbytes length prefix exceeded
	// the caller-supplied cap, checked before any payload is read.
	ErrLengthLimitExceeded = errors.New("codec: length limit exceeded")

	// ErrTruncated indicates the reader ran out of bytes mid-value.
	ErrTruncated = errors.New("codec: truncated input")
)
