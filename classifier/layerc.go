package classifier

import "context"

// coreLabels is the label set Layer C's multi-label head scores, per
// spec.md §4.2 (the 7 core labels; profanity and brand_policy are domain
// extensions some Model implementations may also populate).
var coreLabels = []Label{
	LabelToxicity, LabelHate, LabelHarassment, LabelThreat,
	LabelSexual, LabelSpam, LabelPII,
}

// Prediction is one Model inference pass: independent sigmoid
// probabilities per label plus a continuous severity estimate in [0, 2].
// SpanStart/SpanEnd are rune offsets into the text that was scored; they
// are -1 when the model has no span head (spec.md marks the span head
// optional, and this repo does not ship one).
type Prediction struct {
	LabelProbs    map[Label]float64
	SeverityScore float64
	SpanStart     int
	SpanEnd       int
}

// Model is the opaque Layer C capability: a multi-task transformer (or any
// stand-in) reachable through one batched inference call. spec.md §9
// treats multi-head transformer loading as an opaque capability rather
// than something to reimplement; callers bind to wazero-hosted WASM
// (WasmModel) or a deterministic local fallback (HeuristicModel).
type Model interface {
	PredictBatch(ctx context.Context, texts []string) ([]Prediction, error)
}

// runLayerC calls model on both the original and fully-normalized text (to
// resist obfuscation that survives into partial normalization) and fuses
// per-label probabilities with an elementwise max, per spec.md §4.2.
func runLayerC(ctx context.Context, model Model, n Normalized, thresholds map[string]float64) (Prediction, error) {
	preds, err := model.PredictBatch(ctx, []string{n.Original, n.FullyNormalized})
	if err != nil {
		return Prediction{}, err
	}

	_ = thresholds // per-label thresholds are applied by the caller (decideLayerC)
	return fusePredictions(preds[0], preds[1]), nil
}

// fusePredictions combines a text's original-pass and normalized-pass
// predictions with an elementwise max, per spec.md §4.2.
func fusePredictions(a, b Prediction) Prediction {
	fused := Prediction{LabelProbs: make(map[Label]float64, len(coreLabels)), SpanStart: -1, SpanEnd: -1}
	for _, p := range [2]Prediction{a, b} {
		for label, prob := range p.LabelProbs {
			if prob > fused.LabelProbs[label] {
				fused.LabelProbs[label] = prob
			}
		}
		if p.SeverityScore > fused.SeverityScore {
			fused.SeverityScore = p.SeverityScore
		}
	}
	return fused
}

// scoredLabels extends coreLabels with the domain-extension labels
// spec.md §4.2 says "may be added" (profanity, brand_policy); the
// regression severity head scores independently of which labels fire,
// but the valid-complaint carve-out needs these in scope too.
var scoredLabels = append(append([]Label{}, coreLabels...), LabelProfanity, LabelBrandPolicy)

// decideLayerC turns a fused Prediction into an (action, labels,
// confidence) triple, applying per-label thresholds and the "valid
// complaint" mild-label downgrade carve-out.
func decideLayerC(pred Prediction, thresholds map[string]float64) (Action, []Label, float64) {
	var firedLabels []Label
	var firedProbs []float64
	for _, label := range scoredLabels {
		prob, ok := pred.LabelProbs[label]
		if !ok {
			continue
		}
		if prob >= labelThreshold(label, thresholds) {
			firedLabels = append(firedLabels, label)
			firedProbs = append(firedProbs, prob)
		}
	}

	severity := roundSeverity(pred.SeverityScore)
	action := severityToAction(severity)

	if action != ActionAllowed && isOnlyMildCarveOut(firedLabels, pred.LabelProbs) {
		action = ActionAllowed
	}

	confidence := meanOf(firedProbs)
	return action, firedLabels, confidence
}

func labelThreshold(label Label, overrides map[string]float64) float64 {
	if overrides != nil {
		if t, ok := overrides[string(label)]; ok {
			return t
		}
	}
	return 0.5
}

func roundSeverity(score float64) Severity {
	switch {
	case score >= 1.5:
		return SeveritySevere
	case score >= 0.5:
		return SeverityModerate
	default:
		return SeverityClean
	}
}

func severityToAction(s Severity) Action {
	switch s {
	case SeveritySevere:
		return ActionReject
	case SeverityModerate:
		return ActionReview
	default:
		return ActionAllowed
	}
}

// isOnlyMildCarveOut implements the valid-complaint downgrade: if the only
// fired labels are mild profanity (prob < 0.8) or spam alone, the action
// downgrades to allowed so negative product reviews aren't rejected.
func isOnlyMildCarveOut(fired []Label, probs map[Label]float64) bool {
	if len(fired) == 0 {
		return false
	}
	for _, l := range fired {
		switch l {
		case LabelProfanity:
			if probs[l] >= 0.8 {
				return false
			}
		case LabelSpam:
			// spam alone never escalates past allowed under this carve-out
		default:
			return false
		}
	}
	return true
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
