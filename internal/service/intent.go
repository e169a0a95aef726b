package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"voicetransit/internal/model"
)

// Phrases that mark a direction towards the destination or away from the
// origin. Longer alternatives come first.
const (
	toWords   = `(?:in\s+richtung|richtung|nach|zum|zur|zu)`
	fromWords = `(?:von|ab|aus)`
)

var (
	// "von hier nach B", "hier aus zum B"
	hereToPattern = regexp.MustCompile(`(?:^|\s)(?:(?:von|ab)\s+)?hier(?:\s+aus)?\s+` + toWords + `\s+(.+)$`)
	// "von A nach B"
	fromToPattern = regexp.MustCompile(`(?:^|\s)` + fromWords + `\s+(.+?)\s+` + toWords + `\s+(.+)$`)
	// "nach B von A"
	toFromPattern = regexp.MustCompile(`(?:^|\s)` + toWords + `\s+(.+?)\s+` + fromWords + `\s+(.+)$`)
	// "A nach B"
	implicitFromPattern = regexp.MustCompile(`^(.+?)\s+` + toWords + `\s+(.+)$`)
	// "nach B"
	destinationPattern = regexp.MustCompile(`(?:^|\s)` + toWords + `\s+(.+)$`)

	punctuationPattern = regexp.MustCompile(`[,;!?"„“]+`)
	courtesyPattern    = regexp.MustCompile(`(?:\s+(?:bitte|danke|schön))+$`)
	danglingFromWord   = regexp.MustCompile(`(?:\s+(?:von|ab|aus))+$`)

	relativeTimePattern *regexp.Regexp
	fractionTimePattern = regexp.MustCompile(`(?:^|\s)in\s+(?:einer\s+)?(halben\s+stunde|viertelstunde|viertel\s+stunde|dreiviertelstunde)(?:\s|$)`)
	absoluteTimePattern *regexp.Regexp
)

// numberWords maps spoken German numbers to their value
var numberWords = map[string]int{
	"ein": 1, "eine": 1, "einer": 1, "einem": 1, "einen": 1, "eins": 1,
	"zwei": 2, "drei": 3, "vier": 4, "fünf": 5, "sechs": 6, "sieben": 7,
	"acht": 8, "neun": 9, "zehn": 10, "elf": 11, "zwölf": 12,
	"dreizehn": 13, "vierzehn": 14, "fünfzehn": 15, "sechzehn": 16,
	"siebzehn": 17, "achtzehn": 18, "neunzehn": 19, "zwanzig": 20,
	"einundzwanzig": 21, "zweiundzwanzig": 22, "dreiundzwanzig": 23,
	"fünfundzwanzig": 25, "dreißig": 30, "vierzig": 40,
	"fünfundvierzig": 45, "fünfzig": 50, "sechzig": 60, "neunzig": 90,
}

var fractionMinutes = map[string]int{
	"halben stunde":     30,
	"viertelstunde":     15,
	"viertel stunde":    15,
	"dreiviertelstunde": 45,
}

// selfReferences are origin phrases meaning the caller's own position
var selfReferences = []string{
	"hier",
	"mein standort", "meinem standort", "meinen standort",
	"aktueller standort", "aktuellem standort", "aktuellen standort",
	"meine position", "meiner position",
	"aktuelle position", "aktuellen position", "aktueller position",
	"wo ich bin", "wo ich gerade bin",
}

// fillerPrefixes start command phrases that are not station names
var fillerPrefixes = []string{
	"ich will", "ich möchte", "ich würde gerne", "ich würde", "ich muss",
	"ich brauche", "ich suche", "ich fahre", "ich", "wir",
	"bitte", "fahre", "fahr", "fahren", "fahrt",
	"verbindung", "eine verbindung", "die nächste", "der nächste", "nächste", "nächster",
	"zug", "bus", "bahn",
	"suche", "such", "zeig mir", "zeige mir", "zeig", "bring mich",
	"wie komme ich", "wie kommt man", "wann fährt", "wann geht",
	"hallo", "hey", "navigiere", "route",
	"um", // time phrases rejected by extractTime
}

func init() {
	words := make([]string, 0, len(numberWords))
	for w := range numberWords {
		words = append(words, regexp.QuoteMeta(w))
	}
	// longest first so "einundzwanzig" wins over "ein"
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	number := `(\d{1,3}|` + strings.Join(words, "|") + `)`

	relativeTimePattern = regexp.MustCompile(`(?:^|\s)in\s+` + number + `\s*(minuten|minute|min|stunden|stunde|std)(?:\s|$)`)
	absoluteTimePattern = regexp.MustCompile(`(?:^|\s)(?:um|ab|gegen)\s+` + number + `(?:[:.](\d{2})|\s+uhr\s+(\d{1,2}))?(?:\s+uhr)?(?:\s|$)`)
}

// IntentOption configures an IntentParser
type IntentOption func(*IntentParser)

// WithClock sets the time source used to anchor time phrases
func WithClock(now func() time.Time) IntentOption {
	return func(p *IntentParser) {
		p.now = now
	}
}

// WithLocation sets the time zone absolute times ("um 8 Uhr") are read in
func WithLocation(loc *time.Location) IntentOption {
	return func(p *IntentParser) {
		p.loc = loc
	}
}

// IntentParser extracts origin, destination and departure time from a
// German utterance using fixed phrase patterns. It holds no mutable state
// and is safe for concurrent use.
type IntentParser struct {
	now func() time.Time
	loc *time.Location
}

// NewIntentParser creates a new intent parser
func NewIntentParser(opts ...IntentOption) *IntentParser {
	p := &IntentParser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the travel intent from text. It never fails: text without
// a recognizable route yields an intent with only Time set, or an empty one.
func (p *IntentParser) Parse(text string) *model.Intent {
	intent := &model.Intent{}

	s := cleanUtterance(text)
	if s == "" {
		return intent
	}

	s, intent.Time = p.extractTime(s)
	from, to, ok := extractRoute(s)
	if ok {
		intent.From, intent.To = from, to
	}
	return intent
}

func cleanUtterance(text string) string {
	s := strings.ToLower(text)
	s = punctuationPattern.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".: ")
}

// extractTime finds the first time phrase, returns the text without it and
// the resolved point in time
func (p *IntentParser) extractTime(s string) (string, *time.Time) {
	now := p.now()
	if p.loc != nil {
		now = now.In(p.loc)
	}

	if m := relativeTimePattern.FindStringSubmatchIndex(s); m != nil {
		n, ok := parseNumber(s[m[2]:m[3]])
		if ok {
			d := time.Duration(n) * time.Minute
			if strings.HasPrefix(s[m[4]:m[5]], "st") {
				d = time.Duration(n) * time.Hour
			}
			t := now.Add(d)
			return stripMatch(s, m[0], m[1]), &t
		}
	}

	if m := fractionTimePattern.FindStringSubmatchIndex(s); m != nil {
		phrase := strings.Join(strings.Fields(s[m[2]:m[3]]), " ")
		t := now.Add(time.Duration(fractionMinutes[phrase]) * time.Minute)
		return stripMatch(s, m[0], m[1]), &t
	}

	if m := absoluteTimePattern.FindStringSubmatchIndex(s); m != nil {
		numeral := s[m[2]:m[3]]
		hour, ok := parseNumber(numeral)
		// "um eine Verbindung" is not a time; spelled-out hours need "uhr"
		explicit := m[4] >= 0 || m[6] >= 0 || strings.Contains(s[m[0]:m[1]], "uhr")
		if _, err := strconv.Atoi(numeral); err != nil && !explicit {
			ok = false
		}
		minute := 0
		switch {
		case m[4] >= 0:
			minute, _ = strconv.Atoi(s[m[4]:m[5]])
		case m[6] >= 0:
			minute, _ = strconv.Atoi(s[m[6]:m[7]])
		}
		if ok && hour <= 23 && minute <= 59 {
			t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
			return stripMatch(s, m[0], m[1]), &t
		}
	}

	return s, nil
}

func parseNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	n, ok := numberWords[s]
	return n, ok
}

func stripMatch(s string, start, end int) string {
	return strings.Join(strings.Fields(s[:start]+" "+s[end:]), " ")
}

// extractRoute tries the route patterns in priority order; the first one
// yielding a non-empty destination wins
func extractRoute(s string) (from, to string, ok bool) {
	if m := hereToPattern.FindStringSubmatch(s); m != nil {
		if to := cleanPlace(m[1]); to != "" {
			return model.CurrentLocation, to, true
		}
	}

	if m := fromToPattern.FindStringSubmatch(s); m != nil {
		if to := cleanPlace(m[2]); to != "" {
			return originOrSelf(cleanPlace(m[1])), to, true
		}
	}

	if m := toFromPattern.FindStringSubmatch(s); m != nil {
		if to := cleanPlace(m[1]); to != "" {
			return originOrSelf(cleanPlace(m[2])), to, true
		}
	}

	if m := implicitFromPattern.FindStringSubmatch(s); m != nil {
		if to := cleanPlace(m[2]); to != "" {
			from := cleanPlace(m[1])
			if hasFillerPrefix(from) {
				return "", to, true
			}
			return originOrSelf(from), to, true
		}
	}

	if m := destinationPattern.FindStringSubmatch(s); m != nil {
		if to := cleanPlace(m[1]); to != "" {
			return "", to, true
		}
	}

	return "", "", false
}

// cleanPlace trims a captured place name and drops trailing courtesy words
// and a from-word with no place after it ("nach Mainz von")
func cleanPlace(s string) string {
	s = courtesyPattern.ReplaceAllString(" "+strings.TrimSpace(s), "")
	s = danglingFromWord.ReplaceAllString(s, "")
	s = courtesyPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func originOrSelf(from string) string {
	if containsPhrase(from, selfReferences) {
		return model.CurrentLocation
	}
	return from
}

// containsPhrase reports whether any phrase occurs in s as whole words
func containsPhrase(s string, phrases []string) bool {
	padded := " " + s + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func hasFillerPrefix(s string) bool {
	for _, p := range fillerPrefixes {
		if s == p || strings.HasPrefix(s, p+" ") {
			return true
		}
	}
	return false
}
