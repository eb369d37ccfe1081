// Package calendar implements the multi-aggregator stamping protocol:
// concurrently POST a digest to several calendar servers and join the
// partial proofs that come back into one Timestamp, once a quorum of
// aggregators has responded.
package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"otsgo/internal/proof"
	"otsgo/internal/timestamp"
)

// MaxStampLength bounds a calendar response body, enforced against the
// bytes actually read regardless of whether the server sends
// Content-Length (the reference implementation only checked the header,
// silently skipping the cap when it was absent; see DESIGN.md).
const MaxStampLength = 10_000

// UserAgent is sent on every calendar request.
const UserAgent = "otsgo/1"

// Poster is the HTTP collaborator this package needs: POST body to url
// and return the response bytes, or an error. The default implementation
// wraps *http.Client; tests supply a stub.
type Poster interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
}

// HTTPPoster implements Poster over a real *http.Client.
type HTTPPoster struct {
	Client *http.Client
}

// NewHTTPPoster returns a Poster using http.DefaultClient if client is nil.
func NewHTTPPoster(client *http.Client) HTTPPoster {
	if client == nil {
		client = http.DefaultClient
	}
	return HTTPPoster{Client: client}
}

func (p HTTPPoster) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/vnd.opentimestamps.v1")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &PostDigestError{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &PostDigestError{Kind: ErrBadStatus, StatusCode: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, MaxStampLength+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, &PostDigestError{Kind: ErrTransport, Err: err}
	}
	if len(data) > MaxStampLength {
		return nil, &PostDigestError{Kind: ErrLengthLimitExceeded}
	}
	return data, nil
}

// ErrorKind enumerates PostDigestError causes.
type ErrorKind int

const (
	ErrBadStatus ErrorKind = iota
	ErrLengthLimitExceeded
	ErrTransportKind
	ErrDeserializeKind
	ErrTimeoutKind
)

// ErrTransport, ErrDeserialize and ErrTimeout alias their *Kind constants
// for readable construction call sites (calendar.ErrTransport instead of
// calendar.ErrTransportKind).
const (
	ErrTransport   = ErrTransportKind
	ErrDeserialize = ErrDeserializeKind
	ErrTimeout     = ErrTimeoutKind
)

// PostDigestError is one aggregator's failure, collected rather than
// raised so a quorum of other successes can still complete the stamp.
type PostDigestError struct {
	Aggregator string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *PostDigestError) Error() string {
	switch e.Kind {
	case ErrBadStatus:
		return fmt.Sprintf("calendar %s: bad status %d", e.Aggregator, e.StatusCode)
	case ErrLengthLimitExceeded:
		return fmt.Sprintf("calendar %s: response exceeded %d bytes", e.Aggregator, MaxStampLength)
	case ErrTimeoutKind:
		return fmt.Sprintf("calendar %s: timeout", e.Aggregator)
	case ErrDeserializeKind:
		return fmt.Sprintf("calendar %s: deserialize: %v", e.Aggregator, e.Err)
	default:
		return fmt.Sprintf("calendar %s: transport: %v", e.Aggregator, e.Err)
	}
}

func (e *PostDigestError) Unwrap() error { return e.Err }

// Options configures a stamping round.
type Options struct {
	Aggregators     []string
	MinAttestations int
	Timeout         time.Duration
}

// ErrInsufficientResponses is returned when fewer than MinAttestations
// aggregators succeeded within the round's timeout.
type ErrInsufficientResponses struct {
	Failures []*PostDigestError
}

func (e *ErrInsufficientResponses) Error() string {
	return fmt.Sprintf("calendar: insufficient responses (%d failures)", len(e.Failures))
}

// Stamp submits digest to every configured aggregator concurrently, each
// under its own per-task timeout, and joins the successful partial proofs
// into one Timestamp once at least opts.MinAttestations have returned.
//
// The order of successes in the joined proof follows task completion
// order, not aggregator list order: the wire output is therefore
// non-deterministic across runs unless the caller post-processes it (see
// DESIGN.md / REDESIGN FLAG #5).
func Stamp(ctx context.Context, poster Poster, digest [32]byte, opts Options) (timestamp.Timestamp, error) {
	if opts.MinAttestations <= 0 {
		return timestamp.Timestamp{}, errors.New("calendar: min_attestations must be > 0")
	}

	type result struct {
		ts  timestamp.Timestamp
		err *PostDigestError
	}

	results := make(chan result, len(opts.Aggregators))

	g, gctx := errgroup.WithContext(context.Background())
	for _, agg := range opts.Aggregators {
		agg := agg
		g.Go(func() error {
			ts, pdErr := stampOne(gctx, poster, agg, digest, opts.Timeout)
			results <- result{ts: ts, err: pdErr}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	var successes []timestamp.Timestamp
	var failures []*PostDigestError
	for r := range results {
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		successes = append(successes, r.ts)
	}

	if len(successes) < opts.MinAttestations {
		return timestamp.Timestamp{}, &ErrInsufficientResponses{Failures: failures}
	}

	b := timestamp.New(timestamp.Digest32(digest))
	return b.FinishWithTimestamps(successes), nil
}

func stampOne(ctx context.Context, poster Poster, aggregator string, digest [32]byte, timeout time.Duration) (timestamp.Timestamp, *PostDigestError) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := poster.Post(taskCtx, aggregator+"/digest", digest[:])
	if err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return timestamp.Timestamp{}, &PostDigestError{Aggregator: aggregator, Kind: ErrTimeoutKind}
		}
		var pdErr *PostDigestError
		if errors.As(err, &pdErr) {
			pdErr.Aggregator = aggregator
			return timestamp.Timestamp{}, pdErr
		}
		return timestamp.Timestamp{}, &PostDigestError{Aggregator: aggregator, Kind: ErrTransportKind, Err: err}
	}

	steps, err := proof.Deserialize(bytes.NewReader(body))
	if err != nil {
		return timestamp.Timestamp{}, &PostDigestError{Aggregator: aggregator, Kind: ErrDeserializeKind, Err: err}
	}

	return timestamp.Timestamp{Msg: timestamp.Digest32(digest), Steps: steps}, nil
}
