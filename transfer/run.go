package transfer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warmline/warmline/session"
	"github.com/warmline/warmline/speech"
	"github.com/warmline/warmline/summary"
	"github.com/warmline/warmline/types"
)

type initResult struct {
	credA types.Credential
	credB types.Credential
	text  string
	err   error
}

type relocResult struct {
	cred types.Credential
	err  error
}

// run is the single goroutine that owns one transfer record. Every state
// transition happens here, in reaction to collaborator results, timers,
// session events, and operator commands.
func (o *Orchestrator) run(ctx context.Context, rec *record, req types.TransferRequest) {
	defer close(rec.done)
	defer rec.cancel()

	logger := o.logger.With(zap.String("transfer_id", rec.id))
	state := types.StateInitiating

	setState := func(s types.TransferState) {
		state = s
		rec.update(func(snap *types.TransferSnapshot) { snap.State = s })
		logger.Debug("state change", zap.String("state", string(s)))
	}

	dest := rec.snapshot().DestinationRoom
	initCh := make(chan initResult, 1)
	go o.initiate(ctx, req, dest, initCh)

	var (
		connectCh     chan error
		speakCh       <-chan speech.Event
		relocCh       chan relocResult
		speakTimer    <-chan time.Time
		settleTimer   <-chan time.Time
		handoffEvents <-chan session.Event
		summaryText   string
		speechWarning string
		sourceFreed   bool
	)
	srcEvents := rec.source.Subscribe()

	for {
		select {
		case res := <-initCh:
			initCh = nil
			if res.err != nil {
				o.finish(rec, logger, types.StateFailed, res.err.Error())
				return
			}
			summaryText = res.text
			rec.update(func(snap *types.TransferSnapshot) {
				snap.SummaryText = res.text
				snap.Credentials.AgentA = res.credA
				snap.Credentials.AgentB = res.credB
			})
			setState(types.StateAwaitingHandoffConnect)

			rec.handoff = o.opts.NewSession()
			connectCh = make(chan error, 1)
			go o.connectHandoff(ctx, rec.handoff, res.credA, connectCh, logger)

		case err := <-connectCh:
			connectCh = nil
			if err != nil {
				o.finish(rec, logger, types.StateFailed,
					"handoff room connect failed: "+err.Error())
				return
			}
			handoffEvents = rec.handoff.Subscribe()
			rec.speaker = o.opts.NewSpeaker(rec.handoff)
			setState(types.StateSummaryPending)
			speakTimer = time.After(o.opts.SpeakDelay)

		case <-speakTimer:
			speakTimer = nil
			setState(types.StateSpeaking)
			events, err := rec.speaker.Speak(ctx, summaryText)
			if err != nil {
				speechWarning = "summary was not spoken, deliver it manually: " + err.Error()
				o.degraded(rec, logger, speechWarning)
				setState(types.StateReadyToComplete)
				continue
			}
			speakCh = events

		case ev, ok := <-speakCh:
			if !ok {
				speakCh = nil
				continue
			}
			switch ev.Kind {
			case speech.EventStarted:
			case speech.EventCompleted:
				speakCh = nil
				logger.Info("summary delivered", zap.Int("text_len", len(summaryText)))
				setState(types.StateReadyToComplete)
			case speech.EventFailed:
				speakCh = nil
				speechWarning = "summary was not spoken, deliver it manually: " + ev.Reason
				o.degraded(rec, logger, speechWarning)
				setState(types.StateReadyToComplete)
			}

		case res := <-relocCh:
			relocCh = nil
			if res.err != nil {
				o.metrics.RelocationFailed(types.GetErrorCode(res.err))
				logger.Warn("caller relocation failed", zap.Error(res.err))
				rec.update(func(snap *types.TransferSnapshot) { snap.Warning = res.err.Error() })
				setState(types.StateReadyToComplete)
				continue
			}
			rec.update(func(snap *types.TransferSnapshot) {
				snap.Credentials.Caller = res.cred
				snap.Warning = speechWarning
			})
			// The caller has acknowledged the move; only now is the source
			// handle safe to release.
			rec.source.Disconnect()
			sourceFreed = true
			setState(types.StateFinalizing)
			settleTimer = time.After(o.opts.SettleDelay)

		case <-settleTimer:
			settleTimer = nil
			rec.handoff.Disconnect()
			rec.update(func(snap *types.TransferSnapshot) {
				snap.Credentials = types.TransferCredentials{}
			})
			o.finish(rec, logger, types.StateCompleted, "")
			return

		case ev, ok := <-srcEvents:
			if !ok {
				srcEvents = nil
				continue
			}
			if ev.Type == session.EventDisconnected && !sourceFreed {
				o.finish(rec, logger, types.StateFailed,
					"source room connection lost: "+ev.Reason)
				return
			}

		case ev, ok := <-handoffEvents:
			if !ok {
				handoffEvents = nil
				continue
			}
			if ev.Type == session.EventDisconnected && state != types.StateFinalizing {
				o.finish(rec, logger, types.StateFailed,
					"handoff room connection lost: "+ev.Reason)
				return
			}

		case cmd := <-rec.cmds:
			switch cmd.kind {
			case cmdCancel:
				if state == types.StateFinalizing {
					// Too late to unwind; the transfer completes.
					cmd.reply <- nil
					continue
				}
				cmd.reply <- nil
				o.finish(rec, logger, types.StateCancelled, "cancelled by operator")
				return

			case cmdRelocate:
				if state != types.StateReadyToComplete {
					cmd.reply <- types.NewError(types.ErrInvalidTransition,
						"relocation is only valid once the summary step has finished")
					continue
				}
				cmd.reply <- nil
				setState(types.StateRelocatingCaller)
				relocCh = make(chan relocResult, 1)
				go func(identity string) {
					cred, err := o.opts.Relocator.Relocate(ctx, identity, dest)
					relocCh <- relocResult{cred: cred, err: err}
				}(cmd.callerIdentity)

			case cmdLegacy:
				if state != types.StateReadyToComplete {
					cmd.reply <- types.NewError(types.ErrInvalidTransition,
						"legacy complete is only valid once the summary step has finished")
					continue
				}
				// Deliberately simpler fallback: drop the source leg now
				// instead of relocating the caller.
				rec.source.Disconnect()
				sourceFreed = true
				cmd.reply <- nil
				logger.Info("legacy complete, source released without relocation")
				setState(types.StateFinalizing)
				settleTimer = time.After(o.opts.SettleDelay)
			}
		}
	}
}

// initiate runs the fan-out phase: destination room, both agent credentials,
// and the summary text, concurrently. The first error aborts the rest.
func (o *Orchestrator) initiate(ctx context.Context, req types.TransferRequest, dest string, out chan<- initResult) {
	var res initResult
	g, gctx := errgroup.WithContext(ctx)

	if o.opts.EnsureRoom != nil {
		g.Go(func() error {
			if err := o.opts.EnsureRoom(gctx, dest); err != nil {
				return types.NewError(types.ErrUpstreamUnavailable,
					"destination room creation failed").WithCause(err)
			}
			return nil
		})
	}
	g.Go(func() error {
		cred, err := o.opts.Broker.Issue(gctx, req.AgentAIdentity, dest)
		if err != nil {
			return types.NewError(types.GetErrorCode(err),
				"credential issue failed for "+req.AgentAIdentity).WithCause(err)
		}
		res.credA = cred
		return nil
	})
	g.Go(func() error {
		cred, err := o.opts.Broker.Issue(gctx, req.AgentBIdentity, dest)
		if err != nil {
			return types.NewError(types.GetErrorCode(err),
				"credential issue failed for "+req.AgentBIdentity).WithCause(err)
		}
		res.credB = cred
		return nil
	})
	g.Go(func() error {
		text, err := summary.ForRequest(gctx, o.opts.Summaries, req)
		if err != nil {
			return types.NewError(types.GetErrorCode(err), "summary generation failed").WithCause(err)
		}
		res.text = text
		return nil
	})

	res.err = g.Wait()
	out <- res
}

// connectHandoff opens the handoff-room session and enables local audio on
// it. The audio enable is best effort: a media failure is logged, the
// transfer continues and the summary text is still readable.
func (o *Orchestrator) connectHandoff(ctx context.Context, handoff Session, cred types.Credential, out chan<- error, logger *zap.Logger) {
	if err := handoff.Connect(ctx, cred); err != nil {
		out <- err
		return
	}
	if err := handoff.EnableLocalAudio(ctx); err != nil {
		logger.Warn("handoff local audio unavailable", zap.Error(err))
	}
	out <- nil
}

// degraded records a non-fatal speech delivery failure.
func (o *Orchestrator) degraded(rec *record, logger *zap.Logger, warning string) {
	o.metrics.SpeechDegraded()
	logger.Warn("speech delivery degraded", zap.String("warning", warning))
	rec.update(func(snap *types.TransferSnapshot) { snap.Warning = warning })
}

// finish moves the record to a terminal state and releases everything the
// orchestrator owns. The source handle is only ever released on the
// relocation-ack or legacy paths, never here.
func (o *Orchestrator) finish(rec *record, logger *zap.Logger, state types.TransferState, reason string) {
	if rec.speaker != nil {
		rec.speaker.Cancel()
	}
	rec.cancel()
	if rec.handoff != nil {
		rec.handoff.Disconnect()
	}

	elapsed := o.now().Sub(rec.startedAt)
	o.metrics.TransferFinished(state, elapsed)

	rec.update(func(snap *types.TransferSnapshot) {
		snap.State = state
		snap.Reason = reason
	})

	switch state {
	case types.StateCompleted:
		logger.Info("transfer completed", zap.Duration("elapsed", elapsed))
	case types.StateCancelled:
		logger.Info("transfer cancelled", zap.Duration("elapsed", elapsed))
	default:
		logger.Warn("transfer failed", zap.String("reason", reason), zap.Duration("elapsed", elapsed))
	}

	if o.opts.Archive != nil {
		snap := rec.snapshot()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := o.opts.Archive.Archive(ctx, snap); err != nil {
				logger.Warn("transfer archive failed", zap.Error(err))
			}
		}()
	}
}
