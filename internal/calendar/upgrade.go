package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"otsgo/internal/attestation"
	"otsgo/internal/evaluator"
	"otsgo/internal/proof"
	"otsgo/internal/timestamp"
)

// Getter is the HTTP collaborator Upgrade needs: GET url and return the
// response bytes, or an error.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPGetter implements Getter over a real *http.Client.
type HTTPGetter struct {
	Client *http.Client
}

// NewHTTPGetter returns a Getter using http.DefaultClient if client is nil.
func NewHTTPGetter(client *http.Client) HTTPGetter {
	if client == nil {
		client = http.DefaultClient
	}
	return HTTPGetter{Client: client}
}

func (g HTTPGetter) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("calendar: build upgrade request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.opentimestamps.v1")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &PostDigestError{Kind: ErrTransportKind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotYetAttested
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &PostDigestError{Kind: ErrBadStatus, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxStampLength+1))
	if err != nil {
		return nil, &PostDigestError{Kind: ErrTransportKind, Err: err}
	}
	if len(data) > MaxStampLength {
		return nil, &PostDigestError{Kind: ErrLengthLimitExceeded}
	}
	return data, nil
}

// ErrNotYetAttested is returned when a calendar has no upgrade available
// yet for a pending digest (HTTP 404 from /timestamp/{digest}).
var ErrNotYetAttested = fmt.Errorf("calendar: timestamp not yet available")

// pendingLeaf is one Pending attestation found while walking a Timestamp,
// together with the message value the proof commits to at that leaf and
// the step index so an upgrade can be spliced back in.
type pendingLeaf struct {
	index int
	msg   []byte
	uri   string
}

// findPendingLeaves mirrors timestamp.Describe's walk but also records the
// linear Steps index of each Pending attestation, which Describe's public
// API has no reason to expose.
func findPendingLeaves(ts timestamp.Timestamp) ([]pendingLeaf, error) {
	type branch struct{ msg []byte }

	cur := &branch{msg: ts.Msg.AsBytes()}
	var stack []branch
	var leaves []pendingLeaf

	for i, step := range ts.Steps {
		if cur == nil {
			return nil, evaluator.ErrTrailingSteps
		}

		switch step.Kind {
		case proof.KindOp:
			next, err := step.Op.Eval(cur.msg)
			if err != nil {
				return nil, err
			}
			cur = &branch{msg: next}

		case proof.KindFork:
			stack = append(stack, *cur)

		case proof.KindAttestation:
			if p, ok := step.Attestation.(attestation.Pending); ok {
				leaves = append(leaves, pendingLeaf{index: i, msg: cur.msg, uri: p.URI})
			}
			if n := len(stack); n > 0 {
				cur = &stack[n-1]
				stack = stack[:n-1]
			} else {
				cur = nil
			}

		default:
			return nil, proof.ErrUnknownOp
		}
	}

	return leaves, nil
}

// Upgrade queries every Pending attestation's calendar for a confirmed
// proof and splices any that have arrived into ts in place of the Pending
// leaf, returning the new Timestamp and whether at least one leaf was
// upgraded. Leaves still pending are left untouched. Calendar query
// failures for a single leaf do not fail the whole call; that leaf simply
// stays pending.
func Upgrade(ctx context.Context, getter Getter, ts timestamp.Timestamp) (timestamp.Timestamp, bool, error) {
	leaves, err := findPendingLeaves(ts)
	if err != nil {
		return ts, false, err
	}
	if len(leaves) == 0 {
		return ts, false, nil
	}

	steps := make(proof.Steps, len(ts.Steps))
	copy(steps, ts.Steps)

	upgraded := false
	// Splice from the back so earlier indices stay valid as later ones
	// are replaced with a different-length run of steps.
	for i := len(leaves) - 1; i >= 0; i-- {
		leaf := leaves[i]

		fetched, err := queryUpgrade(ctx, getter, leaf.uri, leaf.msg)
		if err != nil {
			continue
		}

		replacement := make(proof.Steps, 0, len(steps)-1+len(fetched))
		replacement = append(replacement, steps[:leaf.index]...)
		replacement = append(replacement, fetched...)
		replacement = append(replacement, steps[leaf.index+1:]...)
		steps = replacement
		upgraded = true
	}

	return timestamp.Timestamp{Msg: ts.Msg, Steps: steps}, upgraded, nil
}

func queryUpgrade(ctx context.Context, getter Getter, aggregatorURI string, digest []byte) (proof.Steps, error) {
	url := fmt.Sprintf("%s/timestamp/%x", aggregatorURI, digest)

	body, err := getter.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	return proof.Deserialize(bytes.NewReader(body))
}
