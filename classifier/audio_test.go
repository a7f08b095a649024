package classifier

import (
	"context"
	"testing"
)

type fakeTranscriber struct {
	text string
}

func (f fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return f.text, nil
}

func TestAudioPipeline_AppliesASRCorrectionsBeforeClassifying(t *testing.T) {
	ap := &AudioPipeline{
		Transcriber: fakeTranscriber{text: "đù mờ mày"},
		Text:        newTestPipeline(),
	}
	got, err := ap.Classify(context.Background(), []byte("fake-audio-bytes"))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if got.TranscribedText == "đù mờ mày" {
		t.Errorf("expected ASR correction to rewrite the raw transcript, got unchanged text")
	}
}

func TestApplyASRCorrections(t *testing.T) {
	got := applyASRCorrections("đù mờ")
	if got != "đụ mẹ" {
		t.Errorf("applyASRCorrections(%q) = %q, want %q", "đù mờ", got, "đụ mẹ")
	}
}
