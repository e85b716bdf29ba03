package types

import "time"

// TransferState is the orchestrator state machine position for one transfer.
type TransferState string

const (
	StateIdle                   TransferState = "idle"
	StateInitiating             TransferState = "initiating"
	StateAwaitingHandoffConnect TransferState = "awaiting_handoff_connect"
	StateSummaryPending         TransferState = "summary_pending"
	StateSpeaking               TransferState = "speaking"
	StateReadyToComplete        TransferState = "ready_to_complete"
	StateRelocatingCaller       TransferState = "relocating_caller"
	StateFinalizing             TransferState = "finalizing"
	StateCompleted              TransferState = "completed"
	StateCancelled              TransferState = "cancelled"
	StateFailed                 TransferState = "failed"
)

// Terminal reports whether the state is terminal.
func (s TransferState) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// TransferRequest starts a warm transfer of the call in SourceRoom from
// AgentA to AgentB. At most one of Transcript / SummaryOverride drives the
// spoken summary: a transcript requests a generated summary, an override is
// used verbatim, and when both are absent a fixed default is spoken.
type TransferRequest struct {
	SourceRoom      string `json:"source_room"`
	AgentAIdentity  string `json:"agent_a"`
	AgentBIdentity  string `json:"agent_b"`
	Transcript      string `json:"transcript,omitempty"`
	SummaryOverride string `json:"summary,omitempty"`
}

// Validate rejects malformed requests before any side effect.
func (r TransferRequest) Validate() error {
	if r.SourceRoom == "" {
		return NewError(ErrInvalidRequest, "source_room is required")
	}
	if r.AgentAIdentity == "" {
		return NewError(ErrInvalidRequest, "agent_a identity is required")
	}
	if r.AgentBIdentity == "" {
		return NewError(ErrInvalidRequest, "agent_b identity is required")
	}
	if r.Transcript != "" && r.SummaryOverride != "" {
		return NewError(ErrInvalidRequest, "transcript and summary are mutually exclusive")
	}
	return nil
}

// TransferCredentials holds the credentials minted so far for one transfer,
// one per (identity, room) pair.
type TransferCredentials struct {
	AgentA Credential `json:"agent_a"`
	AgentB Credential `json:"agent_b"`
	Caller Credential `json:"caller,omitempty"`
}

// TransferSnapshot is a point-in-time copy of one transfer's record, exposed
// through the status endpoint. Warning carries non-fatal degradations (speech delivery
// failed, relocation stalled); Reason is the final cause on Failed/Cancelled.
type TransferSnapshot struct {
	ID              string              `json:"id"`
	SourceRoom      string              `json:"source_room"`
	DestinationRoom string              `json:"destination_room"`
	AgentAIdentity  string              `json:"agent_a"`
	AgentBIdentity  string              `json:"agent_b"`
	SummaryText     string              `json:"summary_text,omitempty"`
	State           TransferState       `json:"state"`
	Warning         string              `json:"warning,omitempty"`
	Reason          string              `json:"reason,omitempty"`
	Credentials     TransferCredentials `json:"credentials"`
	CreatedAt       time.Time           `json:"created_at"`
}
