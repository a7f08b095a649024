package classifier

import "strings"

// positiveWords and negativeWords back a simple polarity-lexicon scorer.
// spec.md names a `sentiment` result field but leaves its computation
// unspecified; resolved here the same way Layer B resolves lexicon
// matching, against the no-diacritics normalized text.
var positiveWords = []string{
	"tot", "tuyet voi", "hai long", "thich", "dep", "ngon", "tuyet",
	"xuat sac", "hoan hao", "yeu thich", "de thuong",
}

var negativeWords = []string{
	"te", "xau", "khong tot", "that vong", "chan", "kem", "do", "fail",
	"loi", "hong",
}

// classifySentiment computes a coarse polarity tag for the fully-normalized,
// diacritics-stripped text by counting lexicon hits. It runs for every
// text, whatever Layer B or Layer C decides — sentiment is reported
// alongside the moderation action, not used to derive it.
func classifySentiment(n Normalized) Sentiment {
	pos := countOccurrences(n.NoDiacritics, positiveWords)
	neg := countOccurrences(n.NoDiacritics, negativeWords)

	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func countOccurrences(haystack string, words []string) int {
	count := 0
	for _, w := range words {
		count += strings.Count(haystack, w)
	}
	return count
}
