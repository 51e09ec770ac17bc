package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/evolution"

	_ "github.com/mattn/go-sqlite3"
)

// GenerationRecord is one stored generation.
type GenerationRecord struct {
	ID              int64
	Run             int
	Generation      int
	BestFitness     float64
	BestEverFitness float64
	MeanFitness     float64
	MinFitness      float64
	MaxFitness      float64
	StdDev          float64
	Evaluations     int64
	CacheHits       int64
	BestWeights     core.WeightVector
	RecordedAt      time.Time
}

// SQLiteStore keeps the generation history of every search run.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	runs runCounter
	err  error
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if err := store.resumeRuns(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run INTEGER NOT NULL,
		generation INTEGER NOT NULL,
		best_fitness REAL NOT NULL,
		best_ever_fitness REAL NOT NULL,
		mean_fitness REAL NOT NULL,
		min_fitness REAL NOT NULL,
		max_fitness REAL NOT NULL,
		stddev REAL NOT NULL,
		evaluations INTEGER NOT NULL,
		cache_hits INTEGER NOT NULL,
		best_weights TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_run ON generations(run, generation);
	`

	_, err := s.db.Exec(query)
	return err
}

// resumeRuns continues run numbering after the runs already stored.
func (s *SQLiteStore) resumeRuns() error {
	var last sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(run) FROM generations`).Scan(&last); err != nil {
		return err
	}
	s.runs.run = int(last.Int64)
	return nil
}

func (s *SQLiteStore) OnGeneration(ctx context.Context, g evolution.Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.runs.observe(g)
	if err := s.record(ctx, run, g); err != nil && s.err == nil {
		s.err = err
	}
}

func (s *SQLiteStore) record(ctx context.Context, run int, g evolution.Generation) error {
	weights, err := json.Marshal(g.Best.Weights)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO generations (
		run, generation, best_fitness, best_ever_fitness, mean_fitness,
		min_fitness, max_fitness, stddev, evaluations, cache_hits,
		best_weights, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// a canceled search still gets its last generation stored
	_, err = s.db.ExecContext(context.WithoutCancel(ctx), query,
		run,
		g.Number,
		g.Best.Fitness,
		g.BestEver.Fitness,
		g.Stats.Mean,
		g.Stats.Min,
		g.Stats.Max,
		g.Stats.StdDev,
		g.Evaluations,
		g.CacheHits,
		string(weights),
		time.Now().UTC(),
	)
	return err
}

// Generations returns the stored generations of run in order.
func (s *SQLiteStore) Generations(ctx context.Context, run int) ([]GenerationRecord, error) {
	query := `
	SELECT id, run, generation, best_fitness, best_ever_fitness, mean_fitness,
		min_fitness, max_fitness, stddev, evaluations, cache_hits,
		best_weights, recorded_at
	FROM generations
	WHERE run = ?
	ORDER BY generation, id
	`

	rows, err := s.db.QueryContext(ctx, query, run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		var record GenerationRecord
		var weights string
		err := rows.Scan(
			&record.ID,
			&record.Run,
			&record.Generation,
			&record.BestFitness,
			&record.BestEverFitness,
			&record.MeanFitness,
			&record.MinFitness,
			&record.MaxFitness,
			&record.StdDev,
			&record.Evaluations,
			&record.CacheHits,
			&weights,
			&record.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &record.BestWeights); err != nil {
			return nil, fmt.Errorf("generation %d: %w", record.ID, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Runs returns the number of runs recorded so far.
func (s *SQLiteStore) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs.run
}

// Err returns the first insert error.
func (s *SQLiteStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
