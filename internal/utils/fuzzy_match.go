package utils

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Default thresholds for station name matching
const (
	DefaultMatchThreshold = 0.5
	DefaultMatchLimit     = 5
	DefaultWordThreshold  = 0.7

	// ContainmentScore is returned when one normalized name contains the other
	ContainmentScore = 0.9
	prefixBonusScale = 0.2
)

var germanFolds = strings.NewReplacer(
	"ß", "ss",
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
)

// NormalizeText returns the comparison key for a place name.
// German letters are spelled out (ß→ss, ä→ae, ö→oe, ü→ue), remaining
// diacritics are stripped and everything except letters and digits is
// dropped, including whitespace. The result is idempotent:
// NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	s = germanFolds.Replace(s)

	// transformers are stateful, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// CalculateSimilarity scores two place names in [0,1].
//
//	1.0  equal after normalization (two empty strings included)
//	0.0  exactly one side empty
//	0.9  one contains the other
//	else 1 - levenshtein/maxLen plus a common-prefix bonus, capped at 1.0
func CalculateSimilarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	return similarityNormalized(na, nb)
}

func similarityNormalized(na, nb string) float64 {
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return ContainmentScore
	}

	ra, rb := []rune(na), []rune(nb)
	maxLen := max(len(ra), len(rb))

	distance := matchr.Levenshtein(na, nb)
	score := 1 - float64(distance)/float64(maxLen)

	prefix := 0
	for i := 0; i < min(len(ra), len(rb)); i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}
	score += float64(prefix) / float64(maxLen) * prefixBonusScale

	return min(1.0, max(0, score))
}

// Match pairs a candidate with its similarity score
type Match[T any] struct {
	Item  T       `json:"item"`
	Score float64 `json:"score"`
}

// FindBestMatches scores every candidate against query, drops those below
// threshold and returns at most limit matches, best first. Equal scores keep
// the candidates' input order. A limit <= 0 means DefaultMatchLimit.
func FindBestMatches[T any](query string, candidates []T, key func(T) string, threshold float64, limit int) []Match[T] {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	nq := NormalizeText(query)

	matches := make([]Match[T], 0, len(candidates))
	for _, c := range candidates {
		score := similarityNormalized(nq, NormalizeText(key(c)))
		if score >= threshold {
			matches = append(matches, Match[T]{Item: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// BestMatches is FindBestMatches with the default threshold and limit
func BestMatches[T any](query string, candidates []T, key func(T) string) []Match[T] {
	return FindBestMatches(query, candidates, key, DefaultMatchThreshold, DefaultMatchLimit)
}

// MatchesAnyWord reports whether query is similar enough to at least one
// word of a multi-word target such as "Frankfurt (Main) Hauptbahnhof".
func MatchesAnyWord(query, target string, threshold float64) bool {
	nq := NormalizeText(query)
	for _, word := range strings.Fields(target) {
		nw := NormalizeText(word)
		if nw == "" {
			continue
		}
		if similarityNormalized(nq, nw) >= threshold {
			return true
		}
	}
	return false
}
