package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

// Match reason constants, shown to the user next to a candidate
const (
	ReasonExactMatch     = "Exakter Treffer"
	ReasonSimilarName    = "Ähnlicher Name"
	ReasonSoundsAlike    = "Klingt ähnlich"
	ReasonProviderChoice = "Vom Anbieter empfohlen"
)

// similarNameThreshold is the text score from which a name counts as similar
const similarNameThreshold = 0.7

var tokenSplitter = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// stationAbbreviations expands the short forms timetables use in names,
// so "Frankfurt(Main)Hbf" can match a spoken "Frankfurt Hauptbahnhof"
var stationAbbreviations = map[string]string{
	"hbf":  "hauptbahnhof",
	"bhf":  "bahnhof",
	"bf":   "bahnhof",
	"str":  "strasse",
	"pl":   "platz",
	"ffm":  "frankfurt",
	"frkf": "frankfurt",
}

// Ranker orders station candidates for a spoken name
type Ranker struct {
	weightText     float64
	weightPhonetic float64
	weightOrder    float64
}

// NewRanker creates a new ranker with specified weights
func NewRanker(weightText, weightPhonetic, weightOrder float64) *Ranker {
	return &Ranker{
		weightText:     weightText,
		weightPhonetic: weightPhonetic,
		weightOrder:    weightOrder,
	}
}

// RankLocations scores candidates against the spoken query and sorts them by
// score, keeping upstream order among equal scores
func (r *Ranker) RankLocations(query string, candidates []model.StopLocation) []model.RankedLocation {
	results := make([]model.RankedLocation, 0, len(candidates))
	queryTokens := tokenize(query)
	queryCodes := metaphoneCodes(queryTokens)

	for i, c := range candidates {
		nameTokens := expandAbbreviations(tokenize(c.Name))

		textScore := r.textScore(query, c.Name, nameTokens)
		phoneticScore, soundsAlike := r.phoneticScore(queryTokens, queryCodes, nameTokens)
		orderScore := 1.0 / float64(i+1)

		result := model.RankedLocation{
			StopLocation: c,
			Score: r.weightText*textScore +
				r.weightPhonetic*phoneticScore +
				r.weightOrder*orderScore,
			MatchedReasons: r.generateMatchedReasons(i, textScore, soundsAlike),
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// textScore is the best similarity of the query against the raw and the
// abbreviation-expanded name
func (r *Ranker) textScore(query, name string, expanded []string) float64 {
	score := utils.CalculateSimilarity(query, name)
	if s := utils.CalculateSimilarity(query, strings.Join(expanded, " ")); s > score {
		score = s
	}
	return score
}

// phoneticScore compares the spoken and the written form by Double
// Metaphone codes and Jaro-Winkler similarity of the folded strings
func (r *Ranker) phoneticScore(queryTokens []string, queryCodes map[string]struct{}, nameTokens []string) (float64, bool) {
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return 0, false
	}

	jw := matchr.JaroWinkler(strings.Join(queryTokens, ""), strings.Join(nameTokens, ""), false)
	for _, qt := range queryTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(qt, nt, false); s > jw {
				jw = s
			}
		}
	}

	if codesOverlap(queryCodes, metaphoneCodes(nameTokens)) {
		return jw, true
	}
	return jw * 0.5, false
}

// generateMatchedReasons generates human-readable reasons for why this
// station was proposed
func (r *Ranker) generateMatchedReasons(index int, textScore float64, soundsAlike bool) []string {
	reasons := []string{}

	if textScore >= 1.0 {
		reasons = append(reasons, ReasonExactMatch)
	} else if textScore >= similarNameThreshold {
		reasons = append(reasons, ReasonSimilarName)
	}
	if soundsAlike {
		reasons = append(reasons, ReasonSoundsAlike)
	}
	if index == 0 {
		reasons = append(reasons, ReasonProviderChoice)
	}
	return reasons
}

// tokenize lowercases s and splits it into folded words
func tokenize(s string) []string {
	var tokens []string
	for _, part := range tokenSplitter.Split(strings.ToLower(s), -1) {
		if t := utils.NormalizeText(part); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func expandAbbreviations(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if long, ok := stationAbbreviations[t]; ok {
			out[i] = long
		} else {
			out[i] = t
		}
	}
	return out
}

// metaphoneCodes returns the union of all Double Metaphone codes for the
// given tokens, skipping empty codes
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
