package model

// StopLocation represents a station or stop returned by a transit backend
type StopLocation struct {
	ID       string  `json:"id" msgpack:"id" db:"station_id"`
	Name     string  `json:"name" msgpack:"name" db:"name"`
	Lat      float64 `json:"lat" msgpack:"lat" db:"lat"`
	Lon      float64 `json:"lon" msgpack:"lon" db:"lon"`
	Distance *int    `json:"distance,omitempty" msgpack:"distance,omitempty" db:"-"` // meters, nearby lookups only
}

// RankedLocation represents a location candidate with ranking metadata
type RankedLocation struct {
	StopLocation
	Score          float64  `json:"score"`
	MatchedReasons []string `json:"matched_reasons"`
}

// Locations strips ranking metadata
func Locations(ranked []RankedLocation) []StopLocation {
	out := make([]StopLocation, len(ranked))
	for i, r := range ranked {
		out[i] = r.StopLocation
	}
	return out
}

// LocationSearchRequest represents GET /api/locations/search
type LocationSearchRequest struct {
	Query string `form:"query" binding:"required,max=200"`
}

// NearbyRequest represents GET /api/locations/nearby
type NearbyRequest struct {
	Lat    *float64 `form:"lat" binding:"required,latitude"`
	Lon    *float64 `form:"lon" binding:"required,longitude"`
	Radius int      `form:"r" binding:"omitempty,min=1,max=20000"`
}
