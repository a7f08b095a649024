package classifier

import (
	"context"
	"strings"
)

// AudioResult is the verdict for one audio moderation job, carrying the
// transcript the text pipeline actually scored.
type AudioResult struct {
	Action          Action
	Labels          []Label
	Confidence      float64
	TranscribedText string
	Reasoning       string
}

// Transcriber converts audio bytes to Vietnamese text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// asrCorrections is a fixed dictionary of known-good post-corrections for
// common Vietnamese ASR errors, per spec.md §4.2's audio path step 2.
var asrCorrections = map[string]string{
	"đù mờ":  "đụ mẹ",
	"vờ lờ":  "vl",
	"đê mờ":  "đ.m",
}

// AudioPipeline implements spec.md §4.2's audio path: transcribe, apply
// fixed ASR post-corrections, then classify the transcript with the same
// text Pipeline used for plain text jobs.
type AudioPipeline struct {
	Transcriber Transcriber
	Text        *Pipeline
}

func (ap *AudioPipeline) Classify(ctx context.Context, audio []byte) (AudioResult, error) {
	transcript, err := ap.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return AudioResult{}, err
	}
	corrected := applyASRCorrections(transcript)

	textResult, err := ap.Text.Classify(ctx, corrected)
	if err != nil {
		return AudioResult{}, err
	}

	return AudioResult{
		Action:          textResult.Action,
		Labels:          textResult.Labels,
		Confidence:      textResult.Confidence,
		TranscribedText: corrected,
		Reasoning:       textResult.Reasoning,
	}, nil
}

func applyASRCorrections(transcript string) string {
	corrected := transcript
	for wrong, right := range asrCorrections {
		corrected = strings.ReplaceAll(corrected, wrong, right)
	}
	return corrected
}
