package classifier

import (
	"context"
	"fmt"
	"strings"
)

// Pipeline runs the three-layer text classifier: Layer A normalization,
// Layer B lexicon rules, and Layer C ML inference, combined per spec.md
// §4.2's final-combination rule (Layer B wins if it decided).
type Pipeline struct {
	Model           Model
	LabelThresholds map[string]float64
}

// NewPipeline builds a Pipeline around model, using thresholds as the
// per-label overrides for Layer C (defaults to 0.5 for any label absent
// from the map, e.g. config.Classifier.LabelThresholds).
func NewPipeline(model Model, thresholds map[string]float64) *Pipeline {
	return &Pipeline{Model: model, LabelThresholds: thresholds}
}

// Classify runs the full pipeline over one text input and returns the
// final, deterministic Result.
func (p *Pipeline) Classify(ctx context.Context, text string) (Result, error) {
	n := Normalize(text)
	sentiment := classifySentiment(n)

	if decision := runLayerB(n); decision != nil {
		return Result{
			Action:     decision.action,
			Sentiment:  sentiment,
			Labels:     decision.labels,
			Severity:   decision.severity,
			Confidence: decision.confidence,
			Reasoning:  buildReasoning(n, decision, nil),
		}, nil
	}

	fused, err := runLayerC(ctx, p.Model, n, p.LabelThresholds)
	if err != nil {
		return Result{}, fmt.Errorf("classifier: layer C inference: %w", err)
	}
	action, labels, confidence := decideLayerC(fused, p.LabelThresholds)

	return Result{
		Action:     action,
		Sentiment:  sentiment,
		Labels:     labels,
		Severity:   actionToSeverity(action),
		Confidence: confidence,
		Reasoning:  buildReasoning(n, nil, labels),
	}, nil
}

// ClassifyBatch classifies many texts with a single underlying model call,
// matching spec.md §4.2's "single tokenized forward pass" batching: texts
// whose Layer B already decided never reach the model at all, and every
// remaining text's original+normalized pair is packed into one
// PredictBatch call instead of one call per item.
func (p *Pipeline) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	normalized := make([]Normalized, len(texts))
	var pendingIdx []int
	var modelInputs []string

	for i, text := range texts {
		n := Normalize(text)
		normalized[i] = n
		sentiment := classifySentiment(n)

		if decision := runLayerB(n); decision != nil {
			results[i] = Result{
				Action:     decision.action,
				Sentiment:  sentiment,
				Labels:     decision.labels,
				Severity:   decision.severity,
				Confidence: decision.confidence,
				Reasoning:  buildReasoning(n, decision, nil),
			}
			continue
		}

		results[i] = Result{Sentiment: sentiment}
		pendingIdx = append(pendingIdx, i)
		modelInputs = append(modelInputs, n.Original, n.FullyNormalized)
	}

	if len(pendingIdx) == 0 {
		return results, nil
	}

	preds, err := p.Model.PredictBatch(ctx, modelInputs)
	if err != nil {
		return nil, fmt.Errorf("classifier: batched layer C inference: %w", err)
	}
	if len(preds) != len(modelInputs) {
		return nil, fmt.Errorf("classifier: model returned %d predictions for %d inputs", len(preds), len(modelInputs))
	}

	for slot, i := range pendingIdx {
		fused := fusePredictions(preds[slot*2], preds[slot*2+1])
		action, labels, confidence := decideLayerC(fused, p.LabelThresholds)
		results[i].Action = action
		results[i].Labels = labels
		results[i].Severity = actionToSeverity(action)
		results[i].Confidence = confidence
		results[i].Reasoning = buildReasoning(normalized[i], nil, labels)
	}

	return results, nil
}

func actionToSeverity(a Action) Severity {
	switch a {
	case ActionReject:
		return SeveritySevere
	case ActionReview:
		return SeverityModerate
	default:
		return SeverityClean
	}
}

// buildReasoning produces a deterministic explanation string from the
// matched lexicon family names (if Layer B decided) or the model's fired
// labels (otherwise), and the obfuscation metadata, so identical inputs always yield identical
// reasoning strings per spec.md §4.2.
func buildReasoning(n Normalized, layerB *layerBDecision, layerCLabels []Label) string {
	var parts []string

	if layerB != nil {
		names := make([]string, 0, len(layerB.hits))
		for _, h := range layerB.hits {
			names = append(names, h.family.name)
		}
		if len(names) > 0 {
			parts = append(parts, "lexicon rules matched: "+strings.Join(names, ", "))
		}
	} else if len(layerCLabels) > 0 {
		labelNames := make([]string, len(layerCLabels))
		for i, l := range layerCLabels {
			labelNames[i] = string(l)
		}
		parts = append(parts, "model flagged labels: "+strings.Join(labelNames, ", "))
	}

	if n.Metadata.HasObfuscation {
		types := make([]string, len(n.Metadata.ObfuscationTypes))
		for i, t := range n.Metadata.ObfuscationTypes {
			types[i] = string(t)
		}
		parts = append(parts, fmt.Sprintf("obfuscation detected (%s)", strings.Join(types, ", ")))
	}

	if len(parts) == 0 {
		return "no violations detected"
	}
	return strings.Join(parts, "; ")
}
