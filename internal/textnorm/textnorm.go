// Package textnorm folds free-text bank and ledger descriptions into a
// comparable form and scores how alike two descriptions are.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen is the shortest token kept by Keywords and WordOverlap.
const minTokenLen = 3

var stopWords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "em": {}, "no": {}, "na": {}, "para": {},
	"com": {}, "por": {}, "a": {}, "o": {}, "e": {}, "ou": {}, "um": {},
	"uma": {}, "the": {}, "and": {}, "or": {}, "of": {},
}

// Normalize lowercases s, strips diacritics, turns every run of characters
// outside [a-z0-9] into a single space and trims the result.
func Normalize(s string) string {
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

// Keywords returns the set of normalized tokens longer than two characters
// that are not stop words.
func Keywords(s string) map[string]struct{} {
	return tokenSet(s, true)
}

// Contains reports whether needle, once normalized, occurs in the already
// normalized haystack. An empty needle never matches.
func Contains(normalizedHaystack, needle string) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(normalizedHaystack, n)
}

// KeywordOverlap scores two descriptions by shared keywords:
// matches / max(|k1|, |k2|). Either set being empty scores 0.
func KeywordOverlap(a, b string) float64 {
	return overlap(Keywords(a), Keywords(b))
}

// WordOverlap is the description similarity used when pairing bank
// transactions with ledger entries. Identical normalized text scores 1;
// otherwise tokens longer than two characters are compared like KeywordOverlap,
// without removing stop words.
func WordOverlap(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na != "" && na == nb {
		return 1
	}
	return overlap(tokenSet(na, false), tokenSet(nb, false))
}

// EditSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)), measured in
// runes over the normalized strings.
func EditSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		if na == "" {
			return 0
		}
		return 1
	}
	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	if la == 0 || lb == 0 {
		return 0
	}
	d := levenshtein.DistanceForStrings([]rune(na), []rune(nb), levenshtein.DefaultOptionsWithSub)
	return 1 - float64(d)/float64(max(la, lb))
}

func tokenSet(s string, dropStopWords bool) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(Normalize(s)) {
		if len(tok) < minTokenLen {
			continue
		}
		if dropStopWords {
			if _, stop := stopWords[tok]; stop {
				continue
			}
		}
		set[tok] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			matches++
		}
	}
	return float64(matches) / float64(max(len(a), len(b)))
}
