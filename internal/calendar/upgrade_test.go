package calendar

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"otsgo/internal/attestation"
	"otsgo/internal/ops"
	"otsgo/internal/proof"
	"otsgo/internal/timestamp"
)

type stubGetter struct {
	responses map[string][]byte
	notFound  map[string]bool
}

func (g *stubGetter) Get(ctx context.Context, url string) ([]byte, error) {
	if g.notFound[url] {
		return nil, ErrNotYetAttested
	}
	return g.responses[url], nil
}

func TestUpgradeSplicesConfirmedAttestation(t *testing.T) {
	digest := sha256.Sum256([]byte("upgrade me"))
	b := timestamp.New(timestamp.Digest32(digest))
	ts := b.FinishWithAttestation(attestation.Pending{URI: "https://cal.example"})

	confirmedSteps := proof.Steps{proof.NewAttestationStep(attestation.Bitcoin{BlockHeight: 700000})}
	url := "https://cal.example/timestamp/" + hexOf(digest[:])

	getter := &stubGetter{responses: map[string][]byte{url: confirmedSteps.Bytes()}}

	upgraded, did, err := Upgrade(context.Background(), getter, ts)
	require.NoError(t, err)
	require.True(t, did)

	events, err := upgraded.Evaluate()
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, proof.KindAttestation, last.Step.Kind)
	require.True(t, last.Step.Attestation.Equal(attestation.Bitcoin{BlockHeight: 700000}))
}

func TestUpgradeLeavesStillPendingUnchangedOn404(t *testing.T) {
	digest := sha256.Sum256([]byte("still waiting"))
	b := timestamp.New(timestamp.Digest32(digest))
	ts := b.FinishWithAttestation(attestation.Pending{URI: "https://cal.example"})

	url := "https://cal.example/timestamp/" + hexOf(digest[:])
	getter := &stubGetter{notFound: map[string]bool{url: true}}

	upgraded, did, err := Upgrade(context.Background(), getter, ts)
	require.NoError(t, err)
	require.False(t, did)
	require.Equal(t, ts.Steps, upgraded.Steps)
}

func TestUpgradeNoOpWithoutPendingLeaves(t *testing.T) {
	b := timestamp.New(timestamp.Bytes("hello"))
	b.Hash(ops.Sha256)
	ts := b.FinishWithAttestation(attestation.Bitcoin{BlockHeight: 1})

	upgraded, did, err := Upgrade(context.Background(), &stubGetter{}, ts)
	require.NoError(t, err)
	require.False(t, did)
	require.Equal(t, ts, upgraded)
}

func TestUpgradeHandlesMultiplePendingBranches(t *testing.T) {
	digest := sha256.Sum256([]byte("fan out"))
	b := timestamp.New(timestamp.Digest32(digest))
	tip := b.Result()

	sub1 := timestamp.New(timestamp.Digest32(toDigest32(tip))).FinishWithAttestation(attestation.Pending{URI: "https://a"})
	sub2 := timestamp.New(timestamp.Digest32(toDigest32(tip))).FinishWithAttestation(attestation.Pending{URI: "https://b"})
	joined := b.FinishWithTimestamps([]timestamp.Timestamp{sub1, sub2})

	confirmedA := proof.Steps{proof.NewAttestationStep(attestation.Bitcoin{BlockHeight: 1})}
	urlA := "https://a/timestamp/" + hexOf(tip)
	urlB := "https://b/timestamp/" + hexOf(tip)

	getter := &stubGetter{
		responses: map[string][]byte{urlA: confirmedA.Bytes()},
		notFound:  map[string]bool{urlB: true},
	}

	upgraded, did, err := Upgrade(context.Background(), getter, joined)
	require.NoError(t, err)
	require.True(t, did)

	events, err := upgraded.Evaluate()
	require.NoError(t, err)

	var sawBitcoin, sawPending bool
	for _, ev := range events {
		if ev.Step.Kind != proof.KindAttestation {
			continue
		}
		switch ev.Step.Attestation.(type) {
		case attestation.Bitcoin:
			sawBitcoin = true
		case attestation.Pending:
			sawPending = true
		}
	}
	require.True(t, sawBitcoin)
	require.True(t, sawPending)
}

func hexOf(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

func toDigest32(b []byte) [32]byte {
	var d [32]byte
	copy(d[:], b)
	return d
}
