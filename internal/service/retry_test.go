package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/resilience"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxLookups: 8}
}

func TestRetryPolicy_Do(t *testing.T) {
	unavailable := &UpstreamError{Backend: "hafas", Status: http.StatusServiceUnavailable}
	badRequest := &UpstreamError{Backend: "hafas", Status: http.StatusBadRequest}

	tests := []struct {
		name      string
		attempts  int
		errs      []error // returned per call, nil after the list ends
		wantCalls int
		wantErr   error
	}{
		{"success first try", 3, nil, 1, nil},
		{"transient then success", 3, []error{unavailable, unavailable}, 3, nil},
		{"attempts exhausted", 2, []error{unavailable, unavailable, unavailable}, 2, unavailable},
		{"permanent error", 3, []error{badRequest}, 1, badRequest},
		{"single attempt", 1, []error{unavailable}, 1, unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastPolicy(tt.attempts).Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Hour}

	calls := 0
	err := policy.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &UpstreamError{Backend: "dbapi", Status: http.StatusBadGateway}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type flakyTransit struct {
	*fakeTransit
	failures int
}

func (f *flakyTransit) SearchLocations(ctx context.Context, query string) ([]model.StopLocation, error) {
	if f.failures > 0 {
		f.failures--
		return nil, &UpstreamError{Backend: f.name, Status: http.StatusBadGateway}
	}
	return f.fakeTransit.SearchLocations(ctx, query)
}

func TestWithRetry(t *testing.T) {
	fake := newFakeTransit("transportrest")
	fake.locations["mainz"] = []model.StopLocation{stop("8000240", "Mainz Hbf")}
	client := WithRetry(&flakyTransit{fakeTransit: fake, failures: 2}, fastPolicy(3), logger.Discard())

	got, err := client.SearchLocations(context.Background(), "mainz")
	if err != nil {
		t.Fatalf("SearchLocations() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "8000240" {
		t.Errorf("got %+v", got)
	}
	if client.Name() != "transportrest" {
		t.Errorf("Name() = %q", client.Name())
	}
}

func TestFailoverClient(t *testing.T) {
	primary := newFakeTransit("transportrest")
	primary.err = &UpstreamError{Backend: "transportrest", Status: http.StatusServiceUnavailable}
	secondary := newFakeTransit("hafas")
	secondary.locations["mainz"] = []model.StopLocation{stop("3006907", "Mainz Hauptbahnhof")}

	client := NewFailoverClient([]TransitClient{primary, secondary}, resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
		Logger:       logger.Discard().Logger,
	})
	if client.Name() != "transportrest+hafas" {
		t.Errorf("Name() = %q", client.Name())
	}

	got, err := client.SearchLocations(context.Background(), "mainz")
	if err != nil {
		t.Fatalf("SearchLocations() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "3006907" {
		t.Errorf("got %+v", got)
	}
	if h := client.Health(); h["transportrest"] != "open" || h["hafas"] != "closed" {
		t.Errorf("Health() = %v", h)
	}

	_, _ = client.SearchLocations(context.Background(), "mainz")
	if n := len(primary.queryLog()); n != 1 {
		t.Errorf("primary called %d times, want 1 while open", n)
	}
}

func TestFailoverClient_ClientErrorsKeepBreakerClosed(t *testing.T) {
	primary := newFakeTransit("dbapi")
	primary.err = &UpstreamError{Backend: "dbapi", Status: http.StatusBadRequest}

	client := NewFailoverClient([]TransitClient{primary}, resilience.CircuitBreakerConfig{
		MaxFailures: 1,
		Logger:      logger.Discard().Logger,
	})

	_, err := client.SearchJourneys(context.Background(), "1", "2", JourneyOptions{})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusBadRequest {
		t.Errorf("err = %v, want wrapped 400", err)
	}
	if h := client.Health(); h["dbapi"] != "closed" {
		t.Errorf("Health() = %v", h)
	}
}
