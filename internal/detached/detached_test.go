package detached

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"otsgo/internal/attestation"
	"otsgo/internal/ops"
	"otsgo/internal/timestamp"
)

func TestDetachedFileRoundTrip(t *testing.T) {
	digest := sha256.Sum256([]byte("document contents"))
	b := timestamp.New(timestamp.FileDigest{Algo: ops.Sha256, Digest: digest[:]})
	b.Hash(ops.Sha256)
	ts := b.FinishWithAttestation(attestation.Bitcoin{BlockHeight: 100})

	f, err := New(ops.Sha256, digest[:], ts.Steps)
	require.NoError(t, err)

	wire := f.Bytes()
	require.True(t, bytes.HasPrefix(wire, HeaderMagic))

	got, err := Deserialize(bytes.NewReader(wire))
	require.NoError(t, err)
	require.Equal(t, f.Timestamp.Steps, got.Timestamp.Steps)
	require.Equal(t, digest[:], got.Timestamp.Msg.AsBytes())
}

func TestRipemd160AlgoByteFixed(t *testing.T) {
	// REDESIGN FLAG #1: sha1 and ripemd160 must round-trip through
	// distinct algo bytes (0x02 vs 0x03), unlike the reference
	// implementation which wrote 0x02 for both.
	digest := make([]byte, ops.Ripemd160.Len())
	f, err := New(ops.Ripemd160, digest, nil)
	require.NoError(t, err)

	wire := f.Bytes()
	algoPos := len(HeaderMagic) + 1
	require.Equal(t, byte(0x03), wire[algoPos])

	sha1Digest := make([]byte, ops.Sha1.Len())
	f1, err := New(ops.Sha1, sha1Digest, nil)
	require.NoError(t, err)
	require.Equal(t, byte(0x02), f1.Bytes()[algoPos])
}

func TestBadMagicRejected(t *testing.T) {
	_, err := Deserialize(bytes.NewReader(bytes.Repeat([]byte{0xaa}, 40)))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestBadVersionRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(HeaderMagic)
	buf.WriteByte(99)
	buf.WriteByte(0x08)
	_, err := Deserialize(&buf)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestUnknownAlgoRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(HeaderMagic)
	buf.WriteByte(MajorVersion)
	buf.WriteByte(0x99)
	_, err := Deserialize(&buf)
	require.ErrorIs(t, err, ErrUnknownAlgo)
}
