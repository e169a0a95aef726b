package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Accessibility profiles understood by the trip search
const (
	ProfileStandard         = "standard"
	ProfileWheelchair       = "wheelchair"
	ProfileMobilityImpaired = "mobility_impaired"
)

// Trip represents one journey proposal
type Trip struct {
	Legs      []Leg    `json:"legs"`
	Duration  string   `json:"duration"` // ISO-8601, e.g. PT42M
	StartTime string   `json:"startTime"`
	StartDate string   `json:"startDate"`
	EndTime   string   `json:"endTime"`
	EndDate   string   `json:"endDate"`
	Price     *float64 `json:"price,omitempty"`
}

// Leg represents one vehicle ride or walk within a trip
type Leg struct {
	Origin           LegStop    `json:"origin"`
	Destination      LegStop    `json:"destination"`
	Name             string     `json:"name"` // e.g. "S8"
	Type             string     `json:"type"`
	Direction        string     `json:"direction,omitempty"`
	Walking          bool       `json:"walking"`
	Distance         *int       `json:"distance,omitempty"`         // meters
	Duration         *int       `json:"duration,omitempty"`         // minutes
	TransferDuration *int       `json:"transferDuration,omitempty"` // minutes since the previous leg arrived
	Stopovers        []Stopover `json:"stopovers,omitempty"`
	Notes            []string   `json:"notes,omitempty"`
	Messages         []string   `json:"messages,omitempty"`
}

// LegStop represents the departure or arrival end of a leg
type LegStop struct {
	Name    string   `json:"name"`
	Time    string   `json:"time"` // HH:MM
	Date    string   `json:"date"`
	Track   string   `json:"track,omitempty"`
	RtTime  string   `json:"rtTime,omitempty"`
	RtDate  string   `json:"rtDate,omitempty"`
	RtTrack string   `json:"rtTrack,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Stopover represents an intermediate stop of a leg
type Stopover struct {
	Name      string `json:"name"`
	Arrival   string `json:"arrival,omitempty"`
	Departure string `json:"departure,omitempty"`
	Track     string `json:"track,omitempty"`
}

// DepartureTrack returns the platform the trip starts from, preferring
// the real-time track
func (t Trip) DepartureTrack() string {
	if len(t.Legs) == 0 {
		return ""
	}
	if t.Legs[0].Origin.RtTrack != "" {
		return t.Legs[0].Origin.RtTrack
	}
	return t.Legs[0].Origin.Track
}

// TripRequest represents GET /api/trips
type TripRequest struct {
	OriginID  string     `form:"originId" binding:"required,stationid"`
	DestID    string     `form:"destId" binding:"required,stationid"`
	Profile   string     `form:"profile" binding:"omitempty,oneof=standard wheelchair mobility_impaired"`
	Departure *time.Time `form:"departure" time_format:"2006-01-02T15:04:05Z07:00"`
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
