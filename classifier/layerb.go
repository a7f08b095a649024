package classifier

import "strings"

// layerBHit is one matched rule family, carried for reasoning construction.
type layerBHit struct {
	family ruleFamily
}

// layerBDecision is Layer B's verdict. A nil decision means "no hit,
// defer to Layer C" per spec.md's decision table.
type layerBDecision struct {
	action     Action
	severity   Severity
	labels     []Label
	confidence float64
	hits       []layerBHit
}

// runLayerB evaluates the lexicon against both normalized text versions and
// applies spec.md's fixed decision table: hate speech and severe profanity
// win outright, body-shaming escalators upgrade harassment to reject,
// anything else that hit becomes a review, and no hit defers to Layer C.
func runLayerB(n Normalized) *layerBDecision {
	var hits []layerBHit
	for _, fam := range lexicon {
		if !familyMatches(fam, n) {
			continue
		}
		hits = append(hits, layerBHit{family: fam})
	}

	bypassLabel, bypassHit := obfuscationBypass(n)

	if len(hits) == 0 && !bypassHit {
		return nil
	}

	var labels []Label
	maxSeverity := SeverityClean
	hasHateHit := false
	hasSevereProfanityHit := false
	hasBodyShamingHit := false
	hasOtherHit := false

	for _, h := range hits {
		for _, l := range h.family.labels {
			labels = addLabel(labels, l)
		}
		switch {
		case h.family.isHateSpeech:
			hasHateHit = true
			maxSeverity = SeveritySevere
		case h.family.isSevereProfanity:
			hasSevereProfanityHit = true
			maxSeverity = SeveritySevere
		case h.family.isBodyShaming:
			hasBodyShamingHit = true
			if maxSeverity < SeverityModerate {
				maxSeverity = SeverityModerate
			}
		default:
			hasOtherHit = true
			if sev := ruleSeverityToScale(h.family.severity); sev > maxSeverity {
				maxSeverity = sev
			}
		}
	}

	if bypassHit {
		labels = addLabel(labels, bypassLabel)
		if maxSeverity < SeverityModerate {
			maxSeverity = SeverityModerate
		}
	}

	escalateBodyShaming := hasBodyShamingHit && containsAny(n.FullyNormalized, bodyShamingEscalators)

	switch {
	case hasHateHit:
		return &layerBDecision{action: ActionReject, severity: SeveritySevere, labels: labels, confidence: 0.97, hits: hits}
	case hasSevereProfanityHit:
		return &layerBDecision{action: ActionReject, severity: SeveritySevere, labels: labels, confidence: 0.92, hits: hits}
	case escalateBodyShaming:
		return &layerBDecision{action: ActionReject, severity: SeveritySevere, labels: labels, confidence: 0.9, hits: hits}
	case hasOtherHit || hasBodyShamingHit || bypassHit:
		return &layerBDecision{action: ActionReview, severity: maxSeverity, labels: labels, confidence: 0.75, hits: hits}
	default:
		return nil
	}
}

func ruleSeverityToScale(s ruleSeverity) Severity {
	switch s {
	case ruleSevere:
		return SeveritySevere
	case ruleModerate:
		return SeverityModerate
	default:
		return SeverityModerate
	}
}

func familyMatches(fam ruleFamily, n Normalized) bool {
	matched := containsAny(n.FullyNormalized, fam.patterns) || containsAny(n.NoDiacritics, fam.noDiacriticsPatterns)
	if !matched {
		return false
	}
	if len(fam.safeContexts) > 0 && (containsAny(n.FullyNormalized, fam.safeContexts) || containsAny(n.NoDiacritics, fam.safeContexts)) {
		return false
	}
	if fam.requiresTarget && !containsAny(n.FullyNormalized, targetPronouns) {
		return false
	}
	return true
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// obfuscationBypass implements spec.md's critical bypass rule: obfuscation
// evidence plus a standalone insult stem that only appears after
// normalization (not in the original) emits obfuscation_bypass at moderate
// severity, e.g. catching "n.g.u" while leaving plain "người" alone.
func obfuscationBypass(n Normalized) (Label, bool) {
	if !n.Metadata.HasObfuscation {
		return "", false
	}
	originalLower := strings.ToLower(n.Original)
	for _, stem := range insultStems {
		if !strings.Contains(n.FullyNormalized, stem) {
			continue
		}
		if strings.Contains(originalLower, stem) {
			continue // stem was already present before normalization
		}
		return LabelObfuscationBypass, true
	}
	return "", false
}
