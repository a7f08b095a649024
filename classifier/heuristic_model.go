package classifier

import (
	"context"
	"strings"
)

// heuristicSignal pairs a substring against one of the core labels with a
// probability to report when the substring is found. HeuristicModel is a
// deterministic, dependency-free Model used when no WASM model artifact is
// configured; it exists so the pipeline is fully exercised (and testable)
// without shipping a trained transformer checkpoint.
type heuristicSignal struct {
	substring string
	label     Label
	prob      float64
}

var heuristicSignals = []heuristicSignal{
	{"ngu", LabelToxicity, 0.55},
	{"vãi", LabelToxicity, 0.6},
	{"scam", LabelSpam, 0.7},
	{"kiếm tiền", LabelSpam, 0.65},
	{"@gmail.com", LabelPII, 0.6},
	{"số điện thoại", LabelPII, 0.55},
	{"giết", LabelThreat, 0.85},
	{"tự tử", LabelThreat, 0.8},
}

// HeuristicModel is a pure-Go, no-dependency Model implementation: it
// scores each text by substring signal strength rather than running a
// neural network. It satisfies Model so the pipeline has a working default
// when no WASM classifier module is configured (see WasmModel).
type HeuristicModel struct{}

var _ Model = HeuristicModel{}

func (HeuristicModel) PredictBatch(_ context.Context, texts []string) ([]Prediction, error) {
	preds := make([]Prediction, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		probs := make(map[Label]float64)
		maxSeverity := 0.0
		for _, sig := range heuristicSignals {
			if !strings.Contains(lower, sig.substring) {
				continue
			}
			if sig.prob > probs[sig.label] {
				probs[sig.label] = sig.prob
			}
			if sig.prob > maxSeverity {
				maxSeverity = sig.prob
			}
		}
		preds[i] = Prediction{
			LabelProbs:    probs,
			SeverityScore: maxSeverity * 2,
			SpanStart:     -1,
			SpanEnd:       -1,
		}
	}
	return preds, nil
}
