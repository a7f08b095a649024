package worker

import (
	"github.com/QuyenFunc/vietcmc/classifier"
	"github.com/QuyenFunc/vietcmc/store"
)

func toJobResult(r classifier.Result, durationMs int64) *store.JobResult {
	return &store.JobResult{
		ModerationAction:     toStoreAction(r.Action),
		Sentiment:            toStoreSentiment(r.Sentiment),
		Confidence:           r.Confidence,
		Reasoning:            r.Reasoning,
		Labels:               toStoreLabels(r.Labels),
		Severity:             int(r.Severity),
		ProcessingDurationMs: durationMs,
	}
}

func toStoreAction(a classifier.Action) store.ModerationAction {
	switch a {
	case classifier.ActionReject:
		return store.ActionReject
	case classifier.ActionReview:
		return store.ActionReview
	default:
		return store.ActionAllowed
	}
}

func toStoreSentiment(s classifier.Sentiment) store.Sentiment {
	switch s {
	case classifier.SentimentPositive:
		return store.SentimentPositive
	case classifier.SentimentNegative:
		return store.SentimentNegative
	default:
		return store.SentimentNeutral
	}
}

func toStoreLabels(labels []classifier.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}
