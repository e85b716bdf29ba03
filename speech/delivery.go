package speech

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// Delivery drives a Synthesizer and pushes its frames into a Sink, reporting
// Started/Completed/Failed on the event stream. One utterance may be active
// at a time per Delivery.
type Delivery struct {
	synth  Synthesizer
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDelivery creates a speech delivery bound to one sink.
func NewDelivery(synth Synthesizer, sink Sink, logger *zap.Logger) *Delivery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delivery{
		synth:  synth,
		sink:   sink,
		logger: logger.With(zap.String("component", "speech_delivery")),
	}
}

// Speak synthesizes text into the sink. The returned channel emits Started
// once frames begin flowing, then exactly one of Completed or Failed, and
// closes. A cancelled utterance closes the channel with no terminal event.
func (d *Delivery) Speak(ctx context.Context, text string) (<-chan Event, error) {
	if text == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "nothing to speak")
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return nil, types.NewError(types.ErrDeliveryFailure, "an utterance is already active")
	}
	speakCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	events := make(chan Event, 3)
	go d.run(speakCtx, text, events)
	return events, nil
}

// Cancel stops the active utterance, if any. Idempotent.
func (d *Delivery) Cancel() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *Delivery) run(ctx context.Context, text string, events chan<- Event) {
	defer func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
		close(events)
	}()

	frames, err := d.synth.Synthesize(ctx, text)
	if err != nil {
		d.logger.Warn("synthesis failed to start", zap.Error(err))
		events <- Event{Kind: EventFailed, Reason: err.Error()}
		return
	}

	events <- Event{Kind: EventStarted}
	d.logger.Debug("utterance started", zap.Int("text_len", len(text)))

	for {
		select {
		case <-ctx.Done():
			// Cancelled: discard the pending completion.
			d.logger.Debug("utterance cancelled")
			return
		case frame, ok := <-frames:
			if !ok {
				events <- Event{Kind: EventCompleted}
				d.logger.Debug("utterance completed")
				return
			}
			if frame.Err != nil {
				d.logger.Warn("synthesis failed mid-stream", zap.Error(frame.Err))
				events <- Event{Kind: EventFailed, Reason: frame.Err.Error()}
				return
			}
			if err := d.sink.WriteAudio(ctx, frame.Data); err != nil {
				if ctx.Err() != nil {
					return
				}
				d.logger.Warn("audio publish failed", zap.Error(err))
				events <- Event{Kind: EventFailed, Reason: err.Error()}
				return
			}
		}
	}
}
