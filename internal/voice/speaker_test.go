package voice

import (
	"bytes"
	"context"
	"testing"
)

type fakeSynth struct {
	voices      []Voice
	voiceCalls  int
	spoken      []string
	usedVoices  []Voice
	cancelCalls int
}

func (f *fakeSynth) Voices() []Voice {
	f.voiceCalls++
	return f.voices
}

func (f *fakeSynth) Speak(_ context.Context, text string, voice Voice) error {
	f.spoken = append(f.spoken, text)
	f.usedVoices = append(f.usedVoices, voice)
	return nil
}

func (f *fakeSynth) Cancel() { f.cancelCalls++ }

func TestSelectVoice(t *testing.T) {
	tests := []struct {
		name   string
		voices []Voice
		want   Voice
		wantOK bool
	}{
		{name: "empty", voices: nil, wantOK: false},
		{name: "no german", voices: []Voice{{Name: "Samantha", Lang: "en-US"}}, wantOK: false},
		{
			name:   "first german wins",
			voices: []Voice{{Name: "Samantha", Lang: "en-US"}, {Name: "Anna", Lang: "de-DE"}, {Name: "Petra", Lang: "de-AT"}},
			want:   Voice{Name: "Anna", Lang: "de-DE"},
			wantOK: true,
		},
		{
			name:   "case insensitive",
			voices: []Voice{{Name: "Markus", Lang: "DE_de"}},
			want:   Voice{Name: "Markus", Lang: "DE_de"},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectVoice(tt.voices)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("SelectVoice() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSpeaker_Say(t *testing.T) {
	synth := &fakeSynth{}
	sp := NewSpeaker(synth)
	ctx := context.Background()

	// voices not loaded yet
	if err := sp.Say(ctx, "Ich ermittle deinen Standort..."); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if synth.usedVoices[0] != (Voice{}) {
		t.Errorf("voice before load = %+v, want default", synth.usedVoices[0])
	}

	synth.voices = []Voice{{Name: "Anna", Lang: "de-DE"}}
	if err := sp.Say(ctx, "Nächste Haltestelle: Mainz Hbf"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	synth.voices = []Voice{{Name: "Petra", Lang: "de-AT"}}
	if err := sp.Say(ctx, " "); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if err := sp.Say(ctx, "Es gab ein Problem."); err != nil {
		t.Fatalf("Say() error = %v", err)
	}

	if len(synth.spoken) != 3 {
		t.Fatalf("spoken = %v, want 3 utterances", synth.spoken)
	}
	if synth.usedVoices[2].Name != "Anna" {
		t.Errorf("voice = %+v, want cached Anna", synth.usedVoices[2])
	}
	if synth.cancelCalls != 4 {
		t.Errorf("Cancel called %d times, want 4", synth.cancelCalls)
	}
	if synth.voiceCalls != 2 {
		t.Errorf("Voices called %d times, want 2", synth.voiceCalls)
	}
}

func TestWriterSynthesizer(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpeaker(NewWriterSynthesizer(&buf))

	if err := sp.Say(context.Background(), "Die nächste Verbindung geht um 09:12 Uhr."); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if got, want := buf.String(), "🔊 Die nächste Verbindung geht um 09:12 Uhr.\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sp.Say(ctx, "zu spät"); err == nil {
		t.Error("Say() with cancelled context error = nil")
	}
}
