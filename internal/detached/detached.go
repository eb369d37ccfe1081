// Package detached implements the .ots detached-timestamp-file envelope:
// a magic header, version, digest algorithm, raw digest, and the proof's
// Steps.
package detached

import (
	"bytes"
	"errors"
	"io"

	"otsgo/internal/ops"
	"otsgo/internal/proof"
	"otsgo/internal/timestamp"
)

// HeaderMagic is the fixed 31-byte prefix of every detached timestamp
// file.
var HeaderMagic = []byte("\x00OpenTimestamps\x00\x00Proof\x00\xbf\x89\xe2\xe8\x84\xe8\x92\x94")

// MajorVersion is the only version this library writes or accepts.
const MajorVersion = 1

// MediaType is the detached-file's registered media type.
const MediaType = "application/vnd.opentimestamps.ots"

var (
	// ErrBadMagic indicates the file does not start with HeaderMagic.
	ErrBadMagic = errors.New("detached: bad magic")
	// ErrBadVersion indicates an unsupported major version byte.
	ErrBadVersion = errors.New("detached: bad version")
	// ErrUnknownAlgo indicates an algorithm byte this library can't map
	// to a digest length.
	ErrUnknownAlgo = errors.New("detached: unknown digest algorithm")
)

// algoByte is the digest-algorithm tag used by the envelope. The bytes are
// the same as ops.HashOp's own wire tags, so SHA1 and RIPEMD160 use
// distinct bytes here (0x02 and 0x03), fixing the reference
// implementation's write-side bug where both were emitted as 0x02 (see
// DESIGN.md, REDESIGN FLAG #1).
func algoByte(h ops.HashOp) (byte, error) {
	switch h {
	case ops.Sha1:
		return 0x02, nil
	case ops.Ripemd160:
		return 0x03, nil
	case ops.Sha256:
		return 0x08, nil
	default:
		return 0, ErrUnknownAlgo
	}
}

func algoFromByte(b byte) (ops.HashOp, error) {
	switch b {
	case 0x02:
		return ops.Sha1, nil
	case 0x03:
		return ops.Ripemd160, nil
	case 0x08:
		return ops.Sha256, nil
	default:
		return 0, ErrUnknownAlgo
	}
}

// File wraps a Timestamp<FileDigest> with the detached-file envelope.
type File struct {
	Timestamp timestamp.Timestamp
}

// New builds a File from a digest and its hash algorithm.
func New(algo ops.HashOp, digest []byte, steps proof.Steps) (File, error) {
	if len(digest) != algo.Len() {
		return File{}, ErrUnknownAlgo
	}
	fd := timestamp.FileDigest{Algo: algo, Digest: digest}
	return File{Timestamp: timestamp.Timestamp{Msg: fd, Steps: steps}}, nil
}

// Serialize writes the full envelope: magic, version, algo byte, digest,
// steps.
func (f File) Serialize(w io.Writer) error {
	fd, ok := f.Timestamp.Msg.(timestamp.FileDigest)
	if !ok {
		return errors.New("detached: timestamp message is not a FileDigest")
	}

	ab, err := algoByte(fd.Algo)
	if err != nil {
		return err
	}

	if _, err := w.Write(HeaderMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{MajorVersion, ab}); err != nil {
		return err
	}
	if _, err := w.Write(fd.Digest); err != nil {
		return err
	}
	return f.Timestamp.Steps.Serialize(w)
}

// Bytes returns f's wire encoding.
func (f File) Bytes() []byte {
	var buf bytes.Buffer
	_ = f.Serialize(&buf)
	return buf.Bytes()
}

// Deserialize reads a File, rejecting foreign magic, an unsupported
// version, or an unknown algo byte.
func Deserialize(r io.Reader) (File, error) {
	magic := make([]byte, len(HeaderMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return File{}, ErrBadMagic
	}
	if !bytes.Equal(magic, HeaderMagic) {
		return File{}, ErrBadMagic
	}

	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return File{}, err
	}
	if head[0] != MajorVersion {
		return File{}, ErrBadVersion
	}

	algo, err := algoFromByte(head[1])
	if err != nil {
		return File{}, err
	}

	digest := make([]byte, algo.Len())
	if _, err := io.ReadFull(r, digest); err != nil {
		return File{}, err
	}

	steps, err := proof.Deserialize(r)
	if err != nil {
		return File{}, err
	}

	return New(algo, digest, steps)
}
