package timestamp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"otsgo/internal/attestation"
	"otsgo/internal/ops"
	"otsgo/internal/proof"
)

func TestBuilderFinishWithAttestation(t *testing.T) {
	b := New(Bytes("hello"))
	b.Append([]byte(" world!"))
	b.Hash(ops.Sha256)
	b.Hash(ops.Sha256)
	b.Hash(ops.Sha256)
	ts := b.FinishWithAttestation(attestation.Bitcoin{BlockHeight: 42})

	want := []byte{
		0xf0, 0x07, ' ', 'w', 'o', 'r', 'l', 'd', '!',
		0x08, 0x08, 0x08,
		0x00, 0x05, 0x88, 0x96, 0x0d, 0x73, 0xd7, 0x19, 0x01, 0x01, 0x2a,
	}
	require.Equal(t, want, ts.Steps.Bytes())

	events, err := ts.Evaluate()
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, b.Result(), last.Msg)
}

func TestProofRoundTrip(t *testing.T) {
	b := New(Bytes("some document"))
	b.Hash(ops.Sha256)
	ts := b.FinishWithAttestation(attestation.Pending{URI: "https://a.pool.opentimestamps.org"})

	got, err := proof.Deserialize(bytes.NewReader(ts.Steps.Bytes()))
	require.NoError(t, err)
	require.Equal(t, ts.Steps, got)
}

func TestFinishWithTimestampsForkFanOut(t *testing.T) {
	b := New(Bytes("shared"))
	b.Hash(ops.Sha256)
	tip := b.Result()

	sub1 := New(Digest32(toDigest(tip))).FinishWithAttestation(attestation.Bitcoin{BlockHeight: 1})
	sub2 := New(Digest32(toDigest(tip))).FinishWithAttestation(attestation.Pending{URI: "https://cal.example/a"})
	sub3 := New(Digest32(toDigest(tip))).FinishWithAttestation(attestation.Pending{URI: "https://cal.example/b"})

	joined := b.FinishWithTimestamps([]Timestamp{sub1, sub2, sub3})

	events, err := joined.Evaluate()
	require.NoError(t, err)

	forks, attestations := 0, 0
	for _, ev := range events {
		switch ev.Step.Kind {
		case proof.KindFork:
			forks++
			require.Equal(t, tip, ev.Msg)
		case proof.KindAttestation:
			attestations++
			require.Equal(t, tip, ev.Msg)
		}
	}
	require.Equal(t, 2, forks)
	require.Equal(t, 3, attestations)
}

func TestFinishWithTimestampsPanicsOnMismatch(t *testing.T) {
	b := New(Bytes("shared"))
	b.Hash(ops.Sha256)
	mismatched := New(Bytes("not the tip")).FinishWithAttestation(attestation.Bitcoin{BlockHeight: 1})

	require.Panics(t, func() {
		b.FinishWithTimestamps([]Timestamp{mismatched})
	})
}

func TestDescribe(t *testing.T) {
	b := New(Bytes("hello"))
	b.Append([]byte(" world!"))
	b.Hash(ops.Sha256)
	ts := b.FinishWithAttestation(attestation.Bitcoin{BlockHeight: 42})

	infos, err := Describe(ts)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.True(t, infos[0].Attestation.Equal(attestation.Bitcoin{BlockHeight: 42}))
	require.Equal(t, []string{"append 20776f726c6421", "sha256"}, infos[0].Ops)
}

func toDigest(b []byte) [32]byte {
	var d [32]byte
	copy(d[:], b)
	return d
}
