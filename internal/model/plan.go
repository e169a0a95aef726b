package model

import "time"

// PlanRequest represents a voice or typed trip planning request
type PlanRequest struct {
	Text    string   `json:"text" binding:"required,max=500"`
	Profile string   `json:"profile,omitempty" binding:"omitempty,oneof=standard wheelchair mobility_impaired"`
	Lat     *float64 `json:"lat,omitempty" binding:"omitempty,latitude"`
	Lon     *float64 `json:"lon,omitempty" binding:"omitempty,longitude"`
}

// HasPosition reports whether the caller sent device coordinates
func (r PlanRequest) HasPosition() bool {
	return r.Lat != nil && r.Lon != nil
}

// PlanResponse represents the result of planning one utterance
type PlanResponse struct {
	PlanID       string       `json:"plan_id"`
	Intent       Intent       `json:"intent"`
	Origin       StopLocation `json:"origin"`
	Destination  StopLocation `json:"destination"`
	OriginLabel  string       `json:"origin_label"` // what the announcement calls the origin
	Trips        []Trip       `json:"trips"`
	Announcement string       `json:"announcement"`
	Took         int64        `json:"took_ms"` // Response time in milliseconds
}

// Plan progress stages, reported in this order
const (
	StageParsing     = "parsing"
	StageIntent      = "intent"
	StageResolving   = "resolving"
	StageOrigin      = "origin"
	StageDestination = "destination"
	StageSearching   = "searching"
)

// PlanProgress represents one progress event of a streamed plan
type PlanProgress struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PlanLog represents a persisted plan outcome
type PlanLog struct {
	PlanID         string    `db:"plan_id"`
	Utterance      string    `db:"utterance"`
	IntentFrom     string    `db:"intent_from"`
	IntentTo       string    `db:"intent_to"`
	OriginID       string    `db:"origin_id"`
	DestinationID  string    `db:"destination_id"`
	Backend        string    `db:"backend"`
	TripCount      int       `db:"trip_count"`
	Transports     JSONArray `db:"transports"`
	ErrorMessage   string    `db:"error_message"`
	ResponseTimeMs int64     `db:"response_time_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// Feedback actions
const (
	FeedbackChosen    = "chosen"
	FeedbackDismissed = "dismissed"
	FeedbackWrongStop = "wrong_stop"
)

// FeedbackRequest represents user feedback on a proposed trip
type FeedbackRequest struct {
	PlanID    string `json:"plan_id" binding:"required,uuid"`
	TripIndex int    `json:"trip_index" binding:"min=0,max=10"`
	Action    string `json:"action" binding:"required,oneof=chosen dismissed wrong_stop"`
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an API error. Message is German and can be
// spoken to the user as is.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
