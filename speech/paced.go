package speech

import (
	"context"
	"strings"
	"time"
)

// PacedSynthesizer emits PCM silence frames paced at a natural speaking rate.
// It stands in for a real text-to-speech engine in deployments that have
// none configured: timing behaves like speech, so the orchestration protocol
// around Speaking is exercised end to end.
type PacedSynthesizer struct {
	wordsPerMinute int
	sampleRate     int
	frameDuration  time.Duration
}

// NewPacedSynthesizer creates a paced synthesizer. Zero values fall back to
// 150 wpm, 16 kHz, 100 ms frames.
func NewPacedSynthesizer(wordsPerMinute, sampleRate int, frameDuration time.Duration) *PacedSynthesizer {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 150
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if frameDuration <= 0 {
		frameDuration = 100 * time.Millisecond
	}
	return &PacedSynthesizer{
		wordsPerMinute: wordsPerMinute,
		sampleRate:     sampleRate,
		frameDuration:  frameDuration,
	}
}

// Synthesize streams silence frames for the duration the text would take to
// speak. The stream honors context cancellation between frames.
func (s *PacedSynthesizer) Synthesize(ctx context.Context, text string) (<-chan Frame, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	total := time.Duration(words) * time.Minute / time.Duration(s.wordsPerMinute)
	frameCount := int(total / s.frameDuration)
	if frameCount < 1 {
		frameCount = 1
	}
	// 16-bit mono PCM
	frameBytes := 2 * s.sampleRate * int(s.frameDuration) / int(time.Second)

	out := make(chan Frame)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.frameDuration)
		defer ticker.Stop()

		for i := 0; i < frameCount; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			frame := Frame{
				Data:       make([]byte, frameBytes),
				SampleRate: s.sampleRate,
				Final:      i == frameCount-1,
			}
			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()
	return out, nil
}
