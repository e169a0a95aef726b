package voice

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Voice is a synthesizer voice
type Voice struct {
	Name string
	Lang string
}

// Synthesizer speaks text aloud
type Synthesizer interface {
	// Voices lists the available voices. The list may be empty until the
	// platform has loaded them.
	Voices() []Voice
	Speak(ctx context.Context, text string, voice Voice) error
	// Cancel stops any utterance in progress
	Cancel()
}

// SelectVoice picks the first German voice
func SelectVoice(voices []Voice) (Voice, bool) {
	for _, v := range voices {
		if strings.Contains(strings.ToLower(v.Lang), "de") {
			return v, true
		}
	}
	return Voice{}, false
}

// Speaker says one reply at a time, interrupting whatever is still being
// spoken
type Speaker struct {
	synth Synthesizer

	mu       sync.Mutex
	voice    Voice
	resolved bool
}

// NewSpeaker creates a speaker on synth
func NewSpeaker(synth Synthesizer) *Speaker {
	return &Speaker{synth: synth}
}

// Voice returns the voice used for speaking. A German voice is cached once
// found; while the voice list is empty the lookup is retried on each call.
func (s *Speaker) Voice() Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.voice
	}
	voices := s.synth.Voices()
	if len(voices) == 0 {
		return Voice{}
	}
	s.voice, _ = SelectVoice(voices)
	s.resolved = true
	return s.voice
}

// Say cancels current speech and speaks text
func (s *Speaker) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	s.synth.Cancel()
	if text == "" {
		return nil
	}
	return s.synth.Speak(ctx, text, s.Voice())
}

// WriterSynthesizer "speaks" by writing each utterance as a line to w
type WriterSynthesizer struct {
	mu     sync.Mutex
	w      io.Writer
	voices []Voice
}

// NewWriterSynthesizer creates a synthesizer writing to w
func NewWriterSynthesizer(w io.Writer) *WriterSynthesizer {
	return &WriterSynthesizer{
		w:      w,
		voices: []Voice{{Name: "text", Lang: "de-DE"}},
	}
}

func (ws *WriterSynthesizer) Voices() []Voice { return ws.voices }

func (ws *WriterSynthesizer) Speak(ctx context.Context, text string, _ Voice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_, err := fmt.Fprintf(ws.w, "🔊 %s\n", text)
	return err
}

// Cancel is a no-op; writes complete immediately
func (ws *WriterSynthesizer) Cancel() {}
