package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ObfuscationType names a category of anti-detection trick Layer A found
// evidence of while producing Normalized.fully_normalized.
type ObfuscationType string

const (
	ObfuscationHomoglyph          ObfuscationType = "homoglyph"
	ObfuscationLeetspeak          ObfuscationType = "leetspeak"
	ObfuscationSeparatorInsertion ObfuscationType = "separator_insertion"
)

// NormalizeMetadata records what each normalization step did, so Layer B
// can tell an intentional bypass attempt from ordinary text.
type NormalizeMetadata struct {
	HasObfuscation       bool
	ObfuscationTypes     []ObfuscationType
	HomoglyphReplacements int
	LeetspeakConversions  int
	SeparatorsRemoved     int
}

// Normalized holds every text version Layer A produces and the metadata
// describing how fully_normalized diverges from original.
type Normalized struct {
	Original        string
	FullyNormalized string
	NoDiacritics    string
	Metadata        NormalizeMetadata
}

// zeroWidthRunes are stripped outright; they carry no visible signal and
// exist only to break up patterns for detectors that match on raw bytes.
var zeroWidthRunes = map[rune]bool{
	'​': true, // zero width space
	'‌': true, // zero width non-joiner
	'‍': true, // zero width joiner
	'﻿': true, // byte order mark / zero width no-break space
	'­': true, // soft hyphen
}

// isInvisibleWhitespace reports runes that collapse to an ordinary space
// rather than being dropped, so they still separate tokens.
func isInvisibleWhitespace(r rune) bool {
	switch {
	case r == ' ': // NBSP
		return true
	case r >= ' ' && r <= ' ': // en quad .. hair space
		return true
	case r == '　': // ideographic space
		return true
	}
	return false
}

// homoglyphMap maps lookalike code points to the ASCII letter they imitate.
// Grounded on the HOMOGLYPHS table of the original Python implementation
// (services/moderation-worker/nlp/variant_detector.py), extended with the
// Greek letters spec.md names explicitly.
var homoglyphMap = map[rune]rune{
	// Cyrillic
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p', 'с': 'c', 'м': 'm',
	// Greek
	'α': 'a', 'ν': 'v', 'μ': 'm',
	// Roman numerals
	'ⅰ': 'i', 'ⅴ': 'v', 'ⅹ': 'x',
	// Fullwidth ASCII
	'ａ': 'a', 'ｂ': 'b', 'ｃ': 'c', 'ｄ': 'd', 'ｅ': 'e',
	'ｆ': 'f', 'ｇ': 'g', 'ｈ': 'h', 'ｉ': 'i', 'ｊ': 'j',
	'ｋ': 'k', 'ｌ': 'l', 'ｍ': 'm', 'ｎ': 'n', 'ｏ': 'o',
	'ｐ': 'p', 'ｑ': 'q', 'ｒ': 'r', 'ｓ': 's', 'ｔ': 't',
	'ｕ': 'u', 'ｖ': 'v', 'ｗ': 'w', 'ｘ': 'x', 'ｙ': 'y', 'ｚ': 'z',
	// Vietnamese-specific homoglyphs and lookalike letters with diacritics
	'đ': 'd', 'Đ': 'd', 'ð': 'd',
	// Math symbols
	'×': 'x', '÷': 't', '∞': '0',
}

// leetspeakMap covers spec.md §4.2 Layer A step 4 verbatim.
var leetspeakMap = map[rune]rune{
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's',
	'7': 't', '@': 'a', '$': 's', '!': 'i', '|': 'i', '+': 't',
}

// separatorRunes are candidates for removal when they sit between two
// letters (step 6: catches "đ.m", "d-m", "n.g.u").
var separatorRunes = map[rune]bool{
	'.': true, '-': true, '_': true, '*': true, '~': true, '^': true,
	'\'': true, '"': true, ' ': true, '·': true, '•': true, '。': true,
}

// The no_diacritics parallel version (step 8) strips Vietnamese diacritics
// down to base Latin letters using Unicode decomposition rather than a
// hand-maintained table: stripDiacritics NFD-splits each precomposed
// Vietnamese letter into a base rune plus combining marks, which it then
// drops.

// Normalize runs the full Layer A pipeline over raw input text.
func Normalize(input string) Normalized {
	n := Normalized{Original: input}

	text := norm.NFC.String(input)
	text = stripZeroWidthAndInvisible(text)
	text = strings.ToLower(text)

	text, homoglyphHits := replaceHomoglyphs(text)
	text, leetHits := replaceLeetspeak(text)
	text = collapseRepeats(text, 3, 2)
	text, sepHits := removeInterletterSeparators(text)
	text = collapseWhitespace(text)

	n.FullyNormalized = text
	n.NoDiacritics = stripDiacritics(text)

	n.Metadata.HomoglyphReplacements = homoglyphHits
	n.Metadata.LeetspeakConversions = leetHits
	n.Metadata.SeparatorsRemoved = sepHits
	if homoglyphHits > 0 {
		n.Metadata.ObfuscationTypes = append(n.Metadata.ObfuscationTypes, ObfuscationHomoglyph)
	}
	if leetHits > 0 {
		n.Metadata.ObfuscationTypes = append(n.Metadata.ObfuscationTypes, ObfuscationLeetspeak)
	}
	if sepHits > 0 {
		n.Metadata.ObfuscationTypes = append(n.Metadata.ObfuscationTypes, ObfuscationSeparatorInsertion)
	}
	n.Metadata.HasObfuscation = len(n.Metadata.ObfuscationTypes) > 0

	return n
}

func stripZeroWidthAndInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case zeroWidthRunes[r]:
			continue
		case isInvisibleWhitespace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func replaceHomoglyphs(s string) (string, int) {
	var b strings.Builder
	b.Grow(len(s))
	hits := 0
	for _, r := range s {
		if repl, ok := homoglyphMap[r]; ok {
			b.WriteRune(repl)
			hits++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), hits
}

func replaceLeetspeak(s string) (string, int) {
	var b strings.Builder
	b.Grow(len(s))
	hits := 0
	for _, r := range s {
		if repl, ok := leetspeakMap[r]; ok {
			b.WriteRune(repl)
			hits++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), hits
}

// collapseRepeats collapses any run of the same rune of length >= threshold
// down to exactly collapseTo copies ("nguuuuu" -> "nguu" for threshold=3,
// collapseTo=2).
func collapseRepeats(s string, threshold, collapseTo int) string {
	runes := []rune(s)
	var out []rune
	i := 0
	for i < len(runes) {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		runLen := j - i
		keep := runLen
		if runLen >= threshold {
			keep = collapseTo
		}
		for k := 0; k < keep; k++ {
			out = append(out, runes[i])
		}
		i = j
	}
	return string(out)
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

// removeInterletterSeparators removes a single separator rune sitting
// between two letters when the surrounding token is short (<=10 runes) or
// the whole string is a strict letter-separator-letter chain, catching
// "đ.m", "d-m", "n.g.u", "d:m,m". Letters split by a run of two or more
// separators, such as "d  m", are not joined.
func removeInterletterSeparators(s string) (string, int) {
	runes := []rune(s)
	if isLetterSepChain(runes) {
		var out []rune
		for _, r := range runes {
			if separatorRunes[r] || r == ':' || r == ',' {
				continue
			}
			out = append(out, r)
		}
		return string(out), countSeparators(runes)
	}

	// Fallback: remove separators between letters only within short tokens.
	tokens := strings.Fields(s)
	removed := 0
	for idx, tok := range tokens {
		if len([]rune(tok)) > 10 {
			continue
		}
		cleaned, n := removeShortTokenSeparators(tok)
		tokens[idx] = cleaned
		removed += n
	}
	return strings.Join(tokens, " "), removed
}

func removeShortTokenSeparators(tok string) (string, int) {
	runes := []rune(tok)
	var out []rune
	removed := 0
	for i, r := range runes {
		if separatorRunes[r] && i > 0 && i < len(runes)-1 && isLetter(runes[i-1]) && isLetter(runes[i+1]) {
			removed++
			continue
		}
		out = append(out, r)
	}
	return string(out), removed
}

// isLetterSepChain reports whether runes alternate letter/separator with a
// letter at both ends, e.g. "n.g.u" or "d:m,m" (treating ':' and ',' as
// separators for this check only, matching spec.md's literal example).
func isLetterSepChain(runes []rune) bool {
	if len(runes) < 3 {
		return false
	}
	for i, r := range runes {
		wantLetter := i%2 == 0
		if wantLetter {
			if !isLetter(r) {
				return false
			}
			continue
		}
		if !separatorRunes[r] && r != ':' && r != ',' {
			return false
		}
	}
	return true
}

func countSeparators(runes []rune) int {
	n := 0
	for _, r := range runes {
		if separatorRunes[r] || r == ':' || r == ',' {
			n++
		}
	}
	return n
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripDiacritics produces the no_diacritics parallel version by NFD
// decomposing into base rune + combining marks, then dropping the marks
// and mapping the remaining Vietnamese-specific letters (đ, Đ) by hand
// since they do not decompose.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining mark
		}
		switch r {
		case 'đ', 'Đ':
			b.WriteRune('d')
		default:
			b.WriteRune(r)
		}
	}
	return norm.NFC.String(b.String())
}
