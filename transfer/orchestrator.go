// Package transfer drives the warm-transfer handoff protocol: build a side
// room for the two agents, speak the handoff summary to the receiving agent,
// then move the caller across without ever leaving anyone isolated.
//
// Each in-flight transfer is one record driven by a single goroutine; every
// state transition happens on that goroutine in reaction to a discrete event
// (operator command, collaborator result, timer). Operator actions that are
// invalid for the current state are rejected, never buffered.
package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warmline/warmline/broker"
	"github.com/warmline/warmline/session"
	"github.com/warmline/warmline/speech"
	"github.com/warmline/warmline/summary"
	"github.com/warmline/warmline/types"
)

// Session is the slice of a session handle the orchestrator drives. It is
// satisfied by *session.Handle.
type Session interface {
	Connect(ctx context.Context, cred types.Credential) error
	Disconnect()
	EnableLocalAudio(ctx context.Context) error
	State() types.ConnectionState
	Subscribe() <-chan session.Event
	WriteAudio(ctx context.Context, data []byte) error
}

// Relocator moves the caller into the destination room and returns the
// credential the caller's client acknowledged. Satisfied by
// *relocate.Coordinator.
type Relocator interface {
	Relocate(ctx context.Context, identity, room string) (types.Credential, error)
}

// Archiver persists terminal transfers. Satisfied by *history.Store.
type Archiver interface {
	Archive(ctx context.Context, snap types.TransferSnapshot) error
}

// Metrics receives transfer lifecycle observations.
type Metrics interface {
	TransferStarted()
	TransferFinished(state types.TransferState, elapsed time.Duration)
	RelocationFailed(code types.ErrorCode)
	SpeechDegraded()
}

type noopMetrics struct{}

func (noopMetrics) TransferStarted()                                    {}
func (noopMetrics) TransferFinished(types.TransferState, time.Duration) {}
func (noopMetrics) RelocationFailed(types.ErrorCode)                    {}
func (noopMetrics) SpeechDegraded()                                     {}

// Options configures an Orchestrator. Broker, Summaries, NewSession,
// NewSpeaker, and Relocator are required; the rest have sensible defaults.
type Options struct {
	Broker    broker.Broker
	Summaries summary.Producer
	Relocator Relocator

	// NewSession creates the handoff-room session handle for one transfer.
	NewSession func() Session
	// NewSpeaker builds the speech delivery that publishes into sink.
	NewSpeaker func(sink speech.Sink) speech.Speaker

	// EnsureRoom pre-creates the destination room. Optional.
	EnsureRoom func(ctx context.Context, name string) error
	// Archive receives terminal snapshots, best effort. Optional.
	Archive Archiver
	// Metrics receives lifecycle observations. Optional.
	Metrics Metrics

	// SpeakDelay bridges provider join latency before the summary is spoken.
	SpeakDelay time.Duration
	// SettleDelay holds the handoff room open briefly before final teardown.
	SettleDelay time.Duration

	Logger *zap.Logger
	Now    func() time.Time
}

// Orchestrator owns every in-flight transfer record and exposes the upward
// operations. Terminal records are retained so status stays answerable.
type Orchestrator struct {
	opts    Options
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.RWMutex
	records    map[string]*record
	lastRoomTS int64
}

// New creates an orchestrator. Missing required collaborators are an error.
func New(opts Options) (*Orchestrator, error) {
	if opts.Broker == nil || opts.Summaries == nil || opts.Relocator == nil {
		return nil, types.NewError(types.ErrInternalError, "orchestrator needs a broker, summary producer, and relocator")
	}
	if opts.NewSession == nil || opts.NewSpeaker == nil {
		return nil, types.NewError(types.ErrInternalError, "orchestrator needs session and speaker factories")
	}
	if opts.SpeakDelay == 0 {
		opts.SpeakDelay = 2 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Orchestrator{
		opts:    opts,
		metrics: metrics,
		logger:  opts.Logger.With(zap.String("component", "transfer")),
		now:     opts.Now,
		records: make(map[string]*record),
	}, nil
}

type cmdKind int

const (
	cmdRelocate cmdKind = iota
	cmdLegacy
	cmdCancel
)

type command struct {
	kind           cmdKind
	callerIdentity string
	reply          chan error
}

// record is the orchestrator's mutable state for one transfer. The snapshot
// is guarded by mu; everything else belongs to the run goroutine.
type record struct {
	id     string
	source Session
	cmds   chan command
	done   chan struct{}
	cancel context.CancelFunc

	mu   sync.RWMutex
	snap types.TransferSnapshot

	handoff   Session
	speaker   speech.Speaker
	startedAt time.Time
}

func (r *record) snapshot() types.TransferSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *record) update(fn func(*types.TransferSnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.snap)
}

// Start begins a new transfer of the call in req.SourceRoom. source is the
// borrowed handle on the original call; the orchestrator never disconnects
// it except through a successful relocation or an explicit legacy complete.
// Returns the new transfer id.
func (o *Orchestrator) Start(ctx context.Context, req types.TransferRequest, source Session) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if source == nil {
		return "", types.NewError(types.ErrInvalidRequest, "a source room session is required")
	}
	if source.State() != types.ConnConnected {
		return "", types.NewError(types.ErrNotConnected, "source room session is not connected")
	}

	id := uuid.NewString()
	dest := o.destinationRoom(req.SourceRoom)
	runCtx, cancel := context.WithCancel(context.Background())

	rec := &record{
		id:        id,
		source:    source,
		cmds:      make(chan command),
		done:      make(chan struct{}),
		cancel:    cancel,
		startedAt: o.now(),
		snap: types.TransferSnapshot{
			ID:              id,
			SourceRoom:      req.SourceRoom,
			DestinationRoom: dest,
			AgentAIdentity:  req.AgentAIdentity,
			AgentBIdentity:  req.AgentBIdentity,
			State:           types.StateInitiating,
			CreatedAt:       o.now(),
		},
	}

	o.mu.Lock()
	o.records[id] = rec
	o.mu.Unlock()

	o.metrics.TransferStarted()
	o.logger.Info("transfer started",
		zap.String("transfer_id", id),
		zap.String("source_room", req.SourceRoom),
		zap.String("destination_room", dest),
		zap.String("agent_b", req.AgentBIdentity))

	go o.run(runCtx, rec, req)
	return id, nil
}

// Status returns a point-in-time snapshot of the transfer.
func (o *Orchestrator) Status(id string) (types.TransferSnapshot, error) {
	o.mu.RLock()
	rec, ok := o.records[id]
	o.mu.RUnlock()
	if !ok {
		return types.TransferSnapshot{}, types.NewError(types.ErrTransferNotFound, "no transfer with that id")
	}
	return rec.snapshot(), nil
}

// List returns snapshots of all known transfers, including terminal ones.
func (o *Orchestrator) List() []types.TransferSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]types.TransferSnapshot, 0, len(o.records))
	for _, rec := range o.records {
		out = append(out, rec.snapshot())
	}
	return out
}

// RelocateCaller asks the transfer to move callerIdentity into the
// destination room. Accepted only in ReadyToComplete; the outcome is
// delivered through Status, not the return value.
func (o *Orchestrator) RelocateCaller(ctx context.Context, id, callerIdentity string) error {
	if callerIdentity == "" {
		return types.NewError(types.ErrInvalidRequest, "caller identity is required")
	}
	return o.post(ctx, id, command{kind: cmdRelocate, callerIdentity: callerIdentity})
}

// CompleteLegacy finishes the transfer without relocating the caller: the
// source handle is disconnected immediately and the transfer finalizes.
func (o *Orchestrator) CompleteLegacy(ctx context.Context, id string) error {
	return o.post(ctx, id, command{kind: cmdLegacy})
}

// Cancel aborts the transfer. The source session is never touched; the
// handoff room is torn down. Cancelling a terminal or finalizing transfer
// is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	return o.post(ctx, id, command{kind: cmdCancel})
}

// Shutdown cancels every non-terminal transfer and waits for their loops.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.RLock()
	recs := make([]*record, 0, len(o.records))
	for _, rec := range o.records {
		recs = append(recs, rec)
	}
	o.mu.RUnlock()

	for _, rec := range recs {
		if rec.snapshot().State.Terminal() {
			continue
		}
		if err := o.post(ctx, rec.id, command{kind: cmdCancel}); err != nil {
			return err
		}
	}
	for _, rec := range recs {
		select {
		case <-rec.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// post delivers a command to the record's loop and waits for its reply.
// Commands against a terminal transfer are a deliberate no-op.
func (o *Orchestrator) post(ctx context.Context, id string, cmd command) error {
	o.mu.RLock()
	rec, ok := o.records[id]
	o.mu.RUnlock()
	if !ok {
		return types.NewError(types.ErrTransferNotFound, "no transfer with that id")
	}
	if rec.snapshot().State.Terminal() {
		return nil
	}

	cmd.reply = make(chan error, 1)
	select {
	case rec.cmds <- cmd:
	case <-rec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-rec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// destinationRoom derives a per-transfer room name from the source room and
// a strictly increasing timestamp, so concurrent transfers from the same
// source room cannot collide.
func (o *Orchestrator) destinationRoom(sourceRoom string) string {
	ts := o.now().Unix()
	o.mu.Lock()
	if ts <= o.lastRoomTS {
		ts = o.lastRoomTS + 1
	}
	o.lastRoomTS = ts
	o.mu.Unlock()
	return fmt.Sprintf("%s-transfer-%d", sourceRoom, ts)
}
