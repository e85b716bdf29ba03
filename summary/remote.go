package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// RemoteProducer calls an external summarization service over HTTP.
// Request:  POST {URL} {"transcript": "..."}
// Response: 200 {"summary": "..."}
type RemoteProducer struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewRemoteProducer creates a producer backed by a remote summarizer.
func NewRemoteProducer(url string, timeout time.Duration, logger *zap.Logger) *RemoteProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RemoteProducer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "summary_remote")),
	}
}

type summarizeRequest struct {
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize asks the remote service to condense the transcript.
func (p *RemoteProducer) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", types.NewError(types.ErrInvalidRequest, "transcript cannot be empty")
	}

	body, err := json.Marshal(summarizeRequest{Transcript: transcript})
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "failed to encode summarize request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "failed to build summarize request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamUnavailable, "summarizer unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return "", types.NewError(types.ErrInvalidRequest, "summarizer rejected transcript")
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.NewError(types.ErrUpstreamUnavailable,
			fmt.Sprintf("summarizer returned status %d", resp.StatusCode)).WithRetryable(true)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", types.NewError(types.ErrUpstreamUnavailable, "failed to read summarizer response").WithCause(err)
	}

	var out summarizeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", types.NewError(types.ErrUpstreamUnavailable, "malformed summarizer response").WithCause(err)
	}
	if out.Summary == "" {
		return "", types.NewError(types.ErrUpstreamUnavailable, "summarizer returned empty summary")
	}

	p.logger.Debug("summary generated",
		zap.Int("transcript_len", len(transcript)),
		zap.Duration("duration", time.Since(start)),
	)
	return out.Summary, nil
}
