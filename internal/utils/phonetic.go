package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// phoneticRule rewrites every case-insensitive occurrence of from with to,
// applied only when the normalized query contains trigger
type phoneticRule struct {
	trigger string
	from    *regexp.Regexp
	to      string
}

func rule(trigger, from, to string) phoneticRule {
	return phoneticRule{trigger: trigger, from: regexp.MustCompile("(?i)" + from), to: to}
}

// Common speech-recognition confusions for German place names
var (
	consonantRules = []phoneticRule{
		rule("w", "w", "v"),
		rule("v", "v", "w"),
		rule("ch", "ch", "sch"),
		rule("ch", "ch", "k"),
		rule("k", "k", "ch"),
		rule("sch", "sch", "ch"),
		rule("z", "z", "ts"),
		rule("ts", "ts", "z"),
	}
	umlautRules = []phoneticRule{
		rule("a", "a", "ä"),
		rule("o", "o", "ö"),
		rule("u", "u", "ü"),
	}
	diphthongRules = []phoneticRule{
		rule("ei", "ei", "ai"),
		rule("ai", "ai", "ei"),
	}
)

// ApplyPhoneticCorrections generates spelling variants a misheard place name
// could have: w/v, ch/sch/k, z/ts, a/o/u to umlaut, collapsed double
// consonants, a dropped or added trailing e and ei/ai. The unmodified query
// is always the first entry and the result has no duplicates. No lookups are
// performed here.
func ApplyPhoneticCorrections(query string) []string {
	normalized := NormalizeText(query)
	variants := newOrderedSet(query)
	if normalized == "" {
		return variants.items
	}

	apply := func(rules []phoneticRule) {
		for _, r := range rules {
			if strings.Contains(normalized, r.trigger) {
				variants.add(r.from.ReplaceAllString(query, r.to))
			}
		}
	}

	apply(consonantRules)
	apply(umlautRules)

	variants.add(collapseDoubleConsonants(query))

	if strings.HasSuffix(normalized, "e") {
		_, size := utf8.DecodeLastRuneInString(query)
		variants.add(query[:len(query)-size])
	} else {
		variants.add(query + "e")
	}

	apply(diphthongRules)

	return variants.items
}

// UmlautVariants returns spellings of an already normalized name with the
// German letters put back: "muenchen" → "münchen", "strasse" → "straße".
// The input itself comes first.
func UmlautVariants(normalized string) []string {
	set := newOrderedSet(normalized)
	set.add(strings.NewReplacer("ae", "ä", "oe", "ö", "ue", "ü").Replace(normalized))
	set.add(strings.ReplaceAll(normalized, "ss", "ß"))
	return set.items
}

const doubleConsonants = "bcdfghjklmnpqrstvwxz"

// collapseDoubleConsonants replaces each non-overlapping pair of equal
// consonants (case-insensitive) with its first letter, pairing left to
// right: "Kassel" → "Kasel", "Hallle" → "Halle".
func collapseDoubleConsonants(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); i++ {
		b.WriteRune(rs[i])
		if i+1 < len(rs) && isConsonant(rs[i]) && unicode.ToLower(rs[i]) == unicode.ToLower(rs[i+1]) {
			i++
		}
	}
	return b.String()
}

func isConsonant(r rune) bool {
	r = unicode.ToLower(r)
	return r < unicode.MaxASCII && strings.ContainsRune(doubleConsonants, r)
}

// orderedSet keeps insertion order and drops duplicates
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet(first string) *orderedSet {
	return &orderedSet{
		seen:  map[string]struct{}{first: {}},
		items: []string{first},
	}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
