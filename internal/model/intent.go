package model

import "time"

// CurrentLocation is the From value standing for the caller's device
// position. It carries no station name and must be resolved through a
// nearby-stop lookup.
const CurrentLocation = "CURRENT_LOCATION"

// Intent represents the travel request extracted from one utterance
type Intent struct {
	From string     `json:"from,omitempty"`
	To   string     `json:"to,omitempty"`
	Time *time.Time `json:"time,omitempty"`
}

// HasDestination reports whether the utterance named a destination.
// An intent without one is a parse failure for the caller.
func (i Intent) HasDestination() bool {
	return i.To != ""
}

// FromCurrentLocation reports whether the origin is the device position
func (i Intent) FromCurrentLocation() bool {
	return i.From == CurrentLocation
}

// IntentRequest represents a request to parse an utterance without planning
type IntentRequest struct {
	Text string `json:"text" binding:"required,max=500"`
}
