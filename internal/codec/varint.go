// Package codec implements the self-delimiting varint and length-prefixed
// varbytes encodings that every OpenTimestamps wire structure is built on.
package codec

import (
	"io"
)

// MaxVarintBits is the bit width used by general-purpose varints (lengths,
// Fork/Attestation counts). Fields with a narrower domain, such as a Bitcoin
// block height, pass their own width to ReadVarintBits.
const MaxVarintBits = 64

// WriteVarint encodes n as a base-128 little-endian varint, 7 value bits per
// byte with the high bit set on every byte but the last. The encoding is
// always the shortest possible for n.
func WriteVarint(w io.Writer, n uint64) error {
	var buf [10]byte
	i := 0
	for n >= 0x80 {
		buf[i] = byte(n) | 0x80
		n >>= 7
		i++
	}
	buf[i] = byte(n)
	_, err := w.Write(buf[:i+1])
	return err
}

// ReadVarint reads a canonical varint with the default 64-bit width.
func ReadVarint(r io.Reader) (uint64, error) {
	return ReadVarintBits(r, MaxVarintBits)
}

// ReadVarintBits reads a varint, rejecting any encoding whose continuation
// bytes would carry the value past bits significant bits, and rejecting a
// non-canonical terminator: a final byte of zero preceded by at least one
// continuation byte (this forbids encodings like [0x80, 0x00] for zero).
//
// Any overlong encoding ends in such a zero terminator, so this check
// rejects every non-shortest encoding, not only the [0x80, 0x00] form.
//
// Bytes are read one at a time, so r is never advanced past the varint.
func ReadVarintBits(r io.Reader, bits uint) (uint64, error) {
	var readByte func() (byte, error)
	if br, ok := r.(io.ByteReader); ok {
		readByte = br.ReadByte
	} else {
		readByte = func() (byte, error) {
			var one [1]byte
			if _, err := io.ReadFull(r, one[:]); err != nil {
				return 0, err
			}
			return one[0], nil
		}
	}

	var result uint64
	var shift uint
	for {
		if shift >= bits {
			return 0, ErrVarintOverflow
		}

		b, err := readByte()
		if err != nil {
			if err == io.EOF {
				return 0, ErrTruncated
			}
			return 0, err
		}

		result |= uint64(b&0x7f) << shift

		if b&0x80 == 0 {
			if shift > 0 && b == 0 {
				return 0, ErrNonCanonical
			}
			return result, nil
		}

		shift += 7
	}
}

// WriteVarbytes writes varint(len(b)) followed by b.
func WriteVarbytes(w io.Writer, b []byte) error {
	if err := WriteVarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarbytes reads a varint length L, rejects it if L exceeds max before
// allocating or reading anything, then reads exactly L bytes.
func ReadVarbytes(r io.Reader, max int) ([]byte, error) {
	length, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}
	if length > uint64(max) {
		return nil, ErrLengthLimitExceeded
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return buf, nil
}
