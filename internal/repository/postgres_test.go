package repository

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, f := range files {
		body, err := fs.ReadFile(migrationsFS, f)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", f, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Errorf("%s lacks goose annotations", f)
		}
	}
}

// testRepository connects to the database named by TEST_DATABASE_URL and
// skips the test when it is unset
func testRepository(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := NewPostgresRepository(dsn, 2, 1, logger.Discard())
	if err != nil {
		t.Fatalf("NewPostgresRepository() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return repo
}

func TestPostgresRepository_KnownStations(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	stations := []model.StopLocation{
		{ID: "test-a-" + suffix, Name: "Zzqtest Süd " + suffix, Lat: 50.1, Lon: 8.6},
		{ID: "test-b-" + suffix, Name: "Zzqtest West " + suffix, Lat: 50.2, Lon: 8.7},
		{ID: "", Name: "ohne ID"},
	}
	if err := repo.RememberStations(ctx, stations); err != nil {
		t.Fatalf("RememberStations() error = %v", err)
	}
	// seen twice, sorts first
	if err := repo.RememberStations(ctx, stations[1:2]); err != nil {
		t.Fatalf("RememberStations() error = %v", err)
	}

	got, err := repo.KnownStations(ctx, "zzqtest", 10)
	if err != nil {
		t.Fatalf("KnownStations() error = %v", err)
	}
	var ours []model.StopLocation
	for _, s := range got {
		if strings.HasSuffix(s.ID, suffix) {
			ours = append(ours, s)
		}
	}
	if len(ours) != 2 {
		t.Fatalf("got %+v, want 2 stations", ours)
	}
	if ours[0].ID != "test-b-"+suffix {
		t.Errorf("first = %s, want the station seen twice", ours[0].ID)
	}
}

func TestPostgresRepository_LogPlanAndFeedback(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	entry := model.PlanLog{
		PlanID:     uuid.NewString(),
		Utterance:  "von mainz nach wiesbaden",
		IntentFrom: "mainz",
		IntentTo:   "wiesbaden",
		Backend:    "transportrest",
		TripCount:  3,
		Transports: model.JSONArray{"S8"},
	}
	if err := repo.LogPlan(ctx, entry); err != nil {
		t.Fatalf("LogPlan() error = %v", err)
	}
	if err := repo.LogPlan(ctx, entry); err != nil {
		t.Errorf("LogPlan() duplicate error = %v", err)
	}

	err := repo.LogFeedback(ctx, model.FeedbackRequest{PlanID: entry.PlanID, TripIndex: 1, Action: model.FeedbackChosen})
	if err != nil {
		t.Fatalf("LogFeedback() error = %v", err)
	}
}
