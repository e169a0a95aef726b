package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

func testTransitConfig(base string) config.TransitConfig {
	return config.TransitConfig{
		TransportRestBase:  base,
		DBAPIBase:          base,
		DBClientID:         "client-id",
		DBAPIKey:           "api-key",
		HafasBase:          base,
		HafasAccessID:      "access",
		Timeout:            2 * time.Second,
		MaxLocationResults: 10,
	}
}

func serveJSON(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTransportRest_SearchLocations(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.URL.Path != "/locations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "Frankfurt Hbf" {
			t.Errorf("query = %q", got)
		}
	}, `[
		{"type":"stop","id":"8000105","name":"Frankfurt(Main)Hbf","location":{"latitude":50.107145,"longitude":8.663789}},
		{"type":"location","id":"x","name":"Kaiserstraße 1","location":{"latitude":50.1,"longitude":8.6}},
		{"type":"station","id":8098105,"name":"Frankfurt(Main)Hbf (tief)","location":{"latitude":"50.107","longitude":"8.663"}}
	]`)

	client := NewTransportRestClient(testTransitConfig(srv.URL), logger.Discard())
	got, err := client.SearchLocations(context.Background(), "Frankfurt Hbf")
	if err != nil {
		t.Fatalf("SearchLocations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d locations, want 2: %+v", len(got), got)
	}
	if got[0].ID != "8000105" || got[0].Lat != 50.107145 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].ID != "8098105" || got[1].Lon != 8.663 {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestTransportRest_SearchNearby(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.URL.Path != "/stops/nearby" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("distance"); got != "1000" {
			t.Errorf("distance = %q", got)
		}
	}, `[{"type":"stop","id":"100","name":"Konstablerwache","distance":240,"location":{"latitude":50.11,"longitude":8.68}}]`)

	client := NewTransportRestClient(testTransitConfig(srv.URL), logger.Discard())
	got, err := client.SearchNearby(context.Background(), 50.11, 8.68, 1000)
	if err != nil {
		t.Fatalf("SearchNearby() error = %v", err)
	}
	if len(got) != 1 || got[0].Distance == nil || *got[0].Distance != 240 {
		t.Fatalf("got %+v", got)
	}
}

const transportRestJourney = `{"journeys":[{
	"legs":[
		{"origin":{"name":"Frankfurt(Main)Hbf"},"destination":{"name":"Mainz Hbf"},
		 "plannedDeparture":"2026-03-14T10:05:00+01:00","departure":"2026-03-14T10:08:00+01:00",
		 "plannedArrival":"2026-03-14T10:40:00+01:00","arrival":"2026-03-14T10:41:00+01:00",
		 "plannedDeparturePlatform":"103","departurePlatform":"104",
		 "line":{"name":"S 8","mode":"train"},"direction":"Wiesbaden Hbf",
		 "stopovers":[{"stop":{"name":"Frankfurt Flughafen"},"arrival":"2026-03-14T10:20:00+01:00","departure":"2026-03-14T10:21:00+01:00","departurePlatform":"1"}],
		 "remarks":[{"type":"hint","text":"Fahrradmitnahme möglich"},{"type":"warning","text":"Bauarbeiten"}]},
		{"origin":{"name":"Mainz Hbf"},"destination":{"name":"Mainz Römisches Theater"},
		 "plannedDeparture":"2026-03-14T10:47:00+01:00","departure":"2026-03-14T10:47:00+01:00",
		 "plannedArrival":"2026-03-14T10:52:00+01:00","arrival":"2026-03-14T10:52:00+01:00",
		 "walking":true,"distance":350}
	],
	"price":{"amount":9.8}
}]}`

func TestTransportRest_SearchJourneys(t *testing.T) {
	departure := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	srv := serveJSON(t, func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") != "8000105" || q.Get("to") != "8000240" {
			t.Errorf("from/to = %q/%q", q.Get("from"), q.Get("to"))
		}
		if q.Get("stopovers") != "true" || q.Get("results") != "3" {
			t.Errorf("stopovers/results = %q/%q", q.Get("stopovers"), q.Get("results"))
		}
		if q.Get("departure") != "2026-03-14T10:00:00Z" {
			t.Errorf("departure = %q", q.Get("departure"))
		}
		if q.Get("accessibility") != "complete" {
			t.Errorf("accessibility = %q", q.Get("accessibility"))
		}
	}, transportRestJourney)

	client := NewTransportRestClient(testTransitConfig(srv.URL), logger.Discard())
	trips, err := client.SearchJourneys(context.Background(), "8000105", "8000240", JourneyOptions{
		Profile:   model.ProfileWheelchair,
		Departure: &departure,
	})
	if err != nil {
		t.Fatalf("SearchJourneys() error = %v", err)
	}
	if len(trips) != 1 {
		t.Fatalf("got %d trips", len(trips))
	}
	trip := trips[0]

	if trip.StartTime != "10:05" || trip.StartDate != "2026-03-14" || trip.EndTime != "10:52" {
		t.Errorf("start/end = %s %s / %s", trip.StartTime, trip.StartDate, trip.EndTime)
	}
	if trip.Duration != "PT47M" {
		t.Errorf("Duration = %q, want PT47M", trip.Duration)
	}
	if trip.Price == nil || *trip.Price != 9.8 {
		t.Errorf("Price = %v", trip.Price)
	}

	first := trip.Legs[0]
	if first.Name != "S 8" || first.Type != "train" || first.Direction != "Wiesbaden Hbf" {
		t.Errorf("first leg = %+v", first)
	}
	if first.Origin.RtTime != "10:08" || first.Origin.Track != "103" || first.Origin.RtTrack != "104" {
		t.Errorf("first origin = %+v", first.Origin)
	}
	if trip.DepartureTrack() != "104" {
		t.Errorf("DepartureTrack() = %q", trip.DepartureTrack())
	}
	if first.Duration == nil || *first.Duration != 33 {
		t.Errorf("first Duration = %v, want 33", first.Duration)
	}
	if len(first.Stopovers) != 1 || first.Stopovers[0].Departure != "10:21" || first.Stopovers[0].Track != "1" {
		t.Errorf("stopovers = %+v", first.Stopovers)
	}
	if len(first.Notes) != 1 || len(first.Messages) != 1 {
		t.Errorf("notes/messages = %v / %v", first.Notes, first.Messages)
	}

	walk := trip.Legs[1]
	if walk.Name != "Fußweg" || !walk.Walking || walk.Type != "walking" {
		t.Errorf("walk leg = %+v", walk)
	}
	if walk.TransferDuration == nil || *walk.TransferDuration != 6 {
		t.Errorf("TransferDuration = %v, want 6", walk.TransferDuration)
	}
	if walk.Origin.RtTime != "" {
		t.Errorf("punctual leg has RtTime %q", walk.Origin.RtTime)
	}
}

func TestDBAPI_HeadersAndLocations(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.Header.Get("DB-Client-Id") != "client-id" || r.Header.Get("DB-Api-Key") != "api-key" {
			t.Errorf("missing credentials: %v", r.Header)
		}
		if r.URL.Path != "/fahrplan-plus/v1/location/Frankfurt Hbf" {
			t.Errorf("path = %q", r.URL.Path)
		}
	}, `[
		{"type":"ST","id":"8000105","name":"Frankfurt(Main)Hbf","lat":50.107,"lon":8.663},
		{"type":"ADR","id":"A=2","name":"Adresse"},
		{"type":"station","extId":"8000240","name":"Mainz Hbf","latitude":"49.99","longitude":"8.25"}
	]`)

	client := NewDBAPIClient(testTransitConfig(srv.URL), logger.Discard())
	got, err := client.SearchLocations(context.Background(), "Frankfurt Hbf")
	if err != nil {
		t.Fatalf("SearchLocations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[1].ID != "8000240" || got[1].Lat != 49.99 {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestDBAPI_SingleObjectLocation(t *testing.T) {
	srv := serveJSON(t, nil, `{"type":"ST","id":"8000105","name":"Frankfurt(Main)Hbf","dist":120}`)

	client := NewDBAPIClient(testTransitConfig(srv.URL), logger.Discard())
	got, err := client.SearchNearby(context.Background(), 50.1, 8.6, 1000)
	if err != nil {
		t.Fatalf("SearchNearby() error = %v", err)
	}
	if len(got) != 1 || got[0].Distance == nil || *got[0].Distance != 120 {
		t.Fatalf("got %+v", got)
	}
}

const hafasTrips = `{"Trip":[
	{"duration":"PT35M","LegList":{"Leg":{
		"Origin":{"name":"Frankfurt (Main) Hauptbahnhof","time":"10:05:00","date":"2026-03-14","track":"101","rtTime":"10:09:00","rtTrack":"102"},
		"Destination":{"name":"Wiesbaden Hauptbahnhof","time":"10:40:00","date":"2026-03-14"},
		"name":"  S1 ","type":"JNY","direction":"Wiesbaden",
		"Stops":{"Stop":[{"name":"Höchst","depTime":"10:15:00","depTrack":2}]},
		"Notes":{"Note":{"value":"Rollstuhlgerecht"}},
		"Messages":{"Message":[{"head":"Störung","text":""}]}
	}}},
	{"LegList":{"Leg":[
		{"Origin":{"name":"A","time":"11:00","date":"2026-03-14"},"Destination":{"name":"B","time":"11:10","date":"2026-03-14"},"type":"WALK"},
		{"Origin":{"name":"B","time":"11:14","date":"2026-03-14"},"Destination":{"name":"C","time":"11:30","date":"2026-03-14"},"type":"JNY","Product":{"name":"RE 2"}}
	]}}
]}`

func TestHafas_SearchJourneys(t *testing.T) {
	departure := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	srv := serveJSON(t, func(r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/trip" || q.Get("accessId") != "access" || q.Get("format") != "json" {
			t.Errorf("request = %s", r.URL)
		}
		if q.Get("date") != "2026-03-14" || q.Get("time") != "10:00" || q.Get("numF") != "3" {
			t.Errorf("date/time/numF = %q %q %q", q.Get("date"), q.Get("time"), q.Get("numF"))
		}
	}, hafasTrips)

	client := NewHafasClient(testTransitConfig(srv.URL), logger.Discard())
	trips, err := client.SearchJourneys(context.Background(), "A=1@L=3000010", "A=1@L=3006907", JourneyOptions{Departure: &departure})
	if err != nil {
		t.Fatalf("SearchJourneys() error = %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("got %d trips", len(trips))
	}

	direct := trips[0]
	leg := direct.Legs[0]
	if leg.Name != "S1" || leg.Origin.Time != "10:05" || leg.Origin.RtTime != "10:09" || leg.Origin.RtDate != "2026-03-14" {
		t.Errorf("leg = %+v", leg)
	}
	if direct.DepartureTrack() != "102" || direct.Duration != "PT35M" {
		t.Errorf("track/duration = %q/%q", direct.DepartureTrack(), direct.Duration)
	}
	if len(leg.Stopovers) != 1 || leg.Stopovers[0].Track != "2" || leg.Stopovers[0].Departure != "10:15" {
		t.Errorf("stopovers = %+v", leg.Stopovers)
	}
	if len(leg.Notes) != 1 || len(leg.Messages) != 1 || leg.Messages[0] != "Störung" {
		t.Errorf("notes/messages = %v / %v", leg.Notes, leg.Messages)
	}

	change := trips[1]
	if change.Legs[0].Name != "Fußweg" || !change.Legs[0].Walking {
		t.Errorf("walk leg = %+v", change.Legs[0])
	}
	if change.Legs[1].Name != "RE 2" {
		t.Errorf("product name = %q", change.Legs[1].Name)
	}
	if tr := change.Legs[1].TransferDuration; tr == nil || *tr != 4 {
		t.Errorf("TransferDuration = %v, want 4", tr)
	}
	if change.Duration != "PT30M" {
		t.Errorf("Duration = %q, want PT30M", change.Duration)
	}
}

func TestHafas_SearchLocations(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) {
		if r.URL.Path != "/location.name" || r.URL.Query().Get("input") != "Römer" {
			t.Errorf("request = %s", r.URL)
		}
	}, `{"stopLocationOrCoordLocation":[
		{"StopLocation":{"id":"A=1@O=Römer/Paulskirche@L=3000001","extId":"3000001","name":"Römer/Paulskirche","lat":50.11,"lon":8.68}},
		{"CoordLocation":{"name":"Römerberg 1"}}
	]}`)

	client := NewHafasClient(testTransitConfig(srv.URL), logger.Discard())
	got, err := client.SearchLocations(context.Background(), "Römer")
	if err != nil {
		t.Fatalf("SearchLocations() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Römer/Paulskirche" {
		t.Fatalf("got %+v", got)
	}
}

func TestUpstream_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "kaputt", tt.status)
			}))
			defer srv.Close()

			client := NewTransportRestClient(testTransitConfig(srv.URL), logger.Discard())
			_, err := client.SearchLocations(context.Background(), "Mainz")

			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("err = %v, want *UpstreamError", err)
			}
			if ue.Status != tt.status || ue.Backend != config.BackendTransportRest {
				t.Errorf("UpstreamError = %+v", ue)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestUpstream_LenientBody(t *testing.T) {
	srv := serveJSON(t, nil, "\ufeff"+`[{"type":"stop","id":"1","name":"Mainz Hbf"}]`)

	client := NewTransportRestClient(testTransitConfig(srv.URL), logger.Discard())
	got, err := client.SearchLocations(context.Background(), "Mainz")
	if err != nil || len(got) != 1 {
		t.Fatalf("SearchLocations() = %+v, %v", got, err)
	}
}

func TestIsRetryable_ContextAndPlainErrors(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("context.Canceled is retryable")
	}
	if IsRetryable(errors.New("decode failed")) {
		t.Error("plain error is retryable")
	}
	if !IsRetryable(&UpstreamError{Backend: "hafas", Err: errors.New("connection reset")}) {
		t.Error("transport error is not retryable")
	}
}
