package service

import (
	"fmt"
	"strings"

	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

// Spoken and displayed messages
const (
	MsgLocating          = "Ich ermittle deinen Standort..."
	MsgCurrentLocation   = "Deinem Standort"
	MsgNoDestination     = "Ich konnte kein Ziel verstehen. Sag zum Beispiel: 'Nach Wiesbaden'"
	MsgNoNearbyStop      = "Keine Haltestelle in der Nähe gefunden."
	MsgNoPosition        = "Dein Standort ist nicht bekannt. Bitte erlaube den Standortzugriff."
	MsgNoConnections     = "Keine Verbindungen gefunden."
	MsgUnavailable       = "Die Fahrplanauskunft ist gerade nicht erreichbar."
	MsgRejected          = "Die Fahrplanauskunft hat die Anfrage abgelehnt."
	MsgGenericError      = "Ein Fehler ist aufgetreten."
	MsgGenericSpeakError = "Es gab ein Problem."
)

// Speech recognition error codes
const (
	SpeechErrNoSpeech   = "no-speech"
	SpeechErrNotAllowed = "not-allowed"
	SpeechErrNetwork    = "network"
	SpeechErrAborted    = "aborted"
)

// OriginNotFound is the message for an unknown origin name
func OriginNotFound(name string) string {
	return fmt.Sprintf("Startort %q nicht gefunden.", name)
}

// DestinationNotFound is the message for an unknown destination name
func DestinationNotFound(name string) string {
	return fmt.Sprintf("Zielort %q nicht gefunden.", name)
}

// NearestStopAnnouncement names the stop picked for the caller's position
func NearestStopAnnouncement(stop model.StopLocation) string {
	return "Nächste Haltestelle: " + stop.Name
}

// Announce builds the sentence read out for the first trip, e.g.
// "Die nächste Verbindung von Mainz Hbf nach Wiesbaden Hbf geht um 14:05 Uhr von Gleis 3."
// A real-time delay is added in brackets after the scheduled time.
func Announce(origin, destination string, trip model.Trip) string {
	if len(trip.Legs) == 0 {
		return MsgNoConnections
	}
	dep := trip.Legs[0].Origin

	var b strings.Builder
	fmt.Fprintf(&b, "Die nächste Verbindung von %s nach %s geht um %s Uhr", origin, destination, utils.FormatClock(dep.Time))
	if delay := utils.DelayMinutes(dep.Time, dep.RtTime); delay > 0 {
		b.WriteString(" " + DelayPhrase(delay))
	}
	if track := trip.DepartureTrack(); track != "" {
		b.WriteString(" von Gleis " + track)
	}
	b.WriteString(".")
	return b.String()
}

// DelayPhrase formats a positive delay as "(+5 Minuten)"
func DelayPhrase(minutes int) string {
	if minutes == 1 {
		return "(+1 Minute)"
	}
	return fmt.Sprintf("(+%d Minuten)", minutes)
}

// SpeechErrorMessages maps a recognizer error code to the text shown and
// the shorter text spoken. ok is false when the error should be ignored.
func SpeechErrorMessages(code string) (display, spoken string, ok bool) {
	switch code {
	case SpeechErrAborted:
		return "", "", false
	case SpeechErrNoSpeech:
		return "Ich habe nichts gehört. Bitte sprich lauter oder näher am Mikrofon.", "Ich habe nichts gehört.", true
	case SpeechErrNotAllowed:
		return "Mikrofon-Zugriff verweigert. Bitte überprüfe deine Einstellungen.", "Ich darf dein Mikrofon nicht benutzen.", true
	case SpeechErrNetwork:
		return "Netzwerkfehler. Bitte überprüfe deine Internetverbindung.", "Ich habe keine Verbindung zum Internet.", true
	case "":
		return MsgGenericError, MsgGenericSpeakError, true
	default:
		return "Fehler: " + code, MsgGenericSpeakError, true
	}
}

// TransportSummary lists the distinct leg names of a trip in travel order,
// e.g. "S8 → RE 20 → Bus 46"
func TransportSummary(legs []model.Leg) string {
	return strings.Join(TransportNames(legs), " → ")
}

// TransportNames returns the distinct, whitespace-collapsed leg names
func TransportNames(legs []model.Leg) []string {
	seen := make(map[string]bool, len(legs))
	var names []string
	for _, leg := range legs {
		name := strings.Join(strings.Fields(leg.Name), " ")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
