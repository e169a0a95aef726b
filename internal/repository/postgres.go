package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository handles database operations
type PostgresRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int, log *logger.Logger) (*PostgresRepository, error) {
	if log == nil {
		log = logger.Discard()
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute) // Shorter lifetime to avoid stale connections
	db.SetConnMaxIdleTime(2 * time.Minute) // Close idle connections sooner

	return &PostgresRepository{db: db, log: log.WithComponent("repository")}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate applies the embedded schema migrations
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{r.log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// LogPlan logs a plan outcome
func (r *PostgresRepository) LogPlan(ctx context.Context, entry model.PlanLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO plan_logs (plan_id, utterance, intent_from, intent_to, origin_id, destination_id,
			backend, trip_count, transports, error_message, response_time_ms, created_at)
		VALUES (:plan_id, :utterance, :intent_from, :intent_to, :origin_id, :destination_id,
			:backend, :trip_count, :transports, :error_message, :response_time_ms, :created_at)
		ON CONFLICT (plan_id) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to log plan: %w", err)
	}
	return nil
}

// LogFeedback logs user feedback on a proposed trip
func (r *PostgresRepository) LogFeedback(ctx context.Context, req model.FeedbackRequest) error {
	query := `
		INSERT INTO plan_feedback (plan_id, trip_index, action)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, req.PlanID, req.TripIndex, req.Action); err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

// RememberStations upserts stations returned by a lookup, counting how
// often each one was seen
func (r *PostgresRepository) RememberStations(ctx context.Context, stations []model.StopLocation) error {
	if len(stations) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO known_stations (station_id, name, normalized_name, lat, lon)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (station_id) DO UPDATE SET
			name = EXCLUDED.name,
			normalized_name = EXCLUDED.normalized_name,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			hit_count = known_stations.hit_count + 1,
			last_seen = now()
	`
	for _, s := range stations {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Name) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, s.ID, s.Name, utils.NormalizeText(s.Name), s.Lat, s.Lon); err != nil {
			return fmt.Errorf("failed to remember station %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stations: %w", err)
	}
	return nil
}

// KnownStations returns stored stations whose normalized name starts with
// prefix, most frequently seen first
func (r *PostgresRepository) KnownStations(ctx context.Context, normalizedPrefix string, limit int) ([]model.StopLocation, error) {
	query := `
		SELECT station_id, name, lat, lon
		FROM known_stations
		WHERE normalized_name LIKE $1 || '%'
		ORDER BY hit_count DESC, name
		LIMIT $2
	`
	var stations []model.StopLocation
	if err := r.db.SelectContext(ctx, &stations, query, normalizedPrefix, limit); err != nil {
		return nil, fmt.Errorf("failed to query known stations: %w", err)
	}
	return stations, nil
}

// gooseLogger routes migration output through the application logger
type gooseLogger struct {
	log *logger.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
