// Package summary produces the condensed handoff summary spoken to the
// receiving agent. Two producers exist: a local heuristic one and a remote
// HTTP one; both satisfy Producer.
package summary

import (
	"context"

	"github.com/warmline/warmline/types"
)

// DefaultSummary is the fixed fallback used when no transcript is supplied
// or the transcript is too short to summarize.
const DefaultSummary = "Brief call summary: Customer inquiry handled successfully."

// Producer condenses a call transcript into a short spoken summary.
// Implementations must be safe for concurrent use.
type Producer interface {
	// Summarize returns a condensed summary of transcript, or a typed failure
	// (UPSTREAM_UNAVAILABLE, INVALID_REQUEST).
	Summarize(ctx context.Context, transcript string) (string, error)
}

// ForRequest resolves the summary text for a transfer request: an override is
// used verbatim, a transcript is condensed by the producer, and neither falls
// back to DefaultSummary without calling the producer at all.
func ForRequest(ctx context.Context, p Producer, req types.TransferRequest) (string, error) {
	if req.SummaryOverride != "" {
		return req.SummaryOverride, nil
	}
	if req.Transcript == "" {
		return DefaultSummary, nil
	}
	return p.Summarize(ctx, req.Transcript)
}
