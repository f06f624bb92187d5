package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

// PostgresStore implements consult.RunStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "geetanjali",
		SSLMode:  "disable",
	}
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS consultation_runs (
		id VARCHAR(64) PRIMARY KEY,
		case_id VARCHAR(255) NOT NULL,
		title TEXT,
		description TEXT NOT NULL,
		status VARCHAR(32) NOT NULL,
		passes_completed INT NOT NULL DEFAULT 0,
		failed_at_pass INT NOT NULL DEFAULT -1,
		result JSONB,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		scholar_flag BOOLEAN NOT NULL DEFAULT FALSE,
		fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
		fallback_reason VARCHAR(64),
		total_duration_ms BIGINT NOT NULL DEFAULT 0,
		total_tokens INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_case_id ON consultation_runs(case_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON consultation_runs(status);

	CREATE TABLE IF NOT EXISTS pass_records (
		id VARCHAR(64) PRIMARY KEY,
		run_id VARCHAR(64) NOT NULL REFERENCES consultation_runs(id) ON DELETE CASCADE,
		number INT NOT NULL,
		name VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		input_text TEXT,
		output_text TEXT,
		output_json JSONB,
		retry_count INT NOT NULL DEFAULT 0,
		tokens_used INT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		UNIQUE (run_id, number)
	);

	CREATE TABLE IF NOT EXISTS comparison_records (
		id VARCHAR(64) PRIMARY KEY,
		case_id VARCHAR(255) NOT NULL,
		multipass_run_id VARCHAR(64),
		multipass_success BOOLEAN NOT NULL,
		singlepass_success BOOLEAN NOT NULL,
		multipass_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		singlepass_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		multipass_duration_ms BIGINT NOT NULL DEFAULT 0,
		singlepass_duration_ms BIGINT NOT NULL DEFAULT 0,
		primary_pipeline VARCHAR(32) NOT NULL,
		returned_pipeline VARCHAR(32),
		reviewed_by VARCHAR(255),
		review_notes TEXT,
		reviewed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comparisons_case_id ON comparison_records(case_id);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// SaveRun upserts a run row. Pass records are written by SavePass.
func (s *PostgresStore) SaveRun(ctx context.Context, run *consult.ConsultationRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("save run: %w: run id is required", apperrors.ErrInvalidInput)
	}

	var resultJSON []byte
	if run.Result != nil {
		var err error
		resultJSON, err = json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	query := `
	INSERT INTO consultation_runs (
		id, case_id, title, description, status, passes_completed, failed_at_pass,
		result, confidence, scholar_flag, fallback_used, fallback_reason,
		total_duration_ms, total_tokens, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		passes_completed = EXCLUDED.passes_completed,
		failed_at_pass = EXCLUDED.failed_at_pass,
		result = EXCLUDED.result,
		confidence = EXCLUDED.confidence,
		scholar_flag = EXCLUDED.scholar_flag,
		fallback_used = EXCLUDED.fallback_used,
		fallback_reason = EXCLUDED.fallback_reason,
		total_duration_ms = EXCLUDED.total_duration_ms,
		total_tokens = EXCLUDED.total_tokens,
		updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Request.CaseID, run.Request.Title, run.Request.Description,
		string(run.Status), run.PassesCompleted, run.FailedAtPass,
		nullableJSON(resultJSON), run.Confidence, run.ScholarFlag,
		run.FallbackUsed, run.FallbackReason,
		run.TotalDuration.Milliseconds(), run.TotalTokens,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SavePass upserts one pass record keyed by (run_id, number) so retried
// attempts overwrite their earlier row.
func (s *PostgresStore) SavePass(ctx context.Context, pass *consult.PassRecord) error {
	if pass == nil || pass.RunID == "" {
		return fmt.Errorf("save pass: %w: run id is required", apperrors.ErrInvalidInput)
	}

	query := `
	INSERT INTO pass_records (
		id, run_id, number, name, status, input_text, output_text, output_json,
		retry_count, tokens_used, duration_ms, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (run_id, number) DO UPDATE SET
		status = EXCLUDED.status,
		output_text = EXCLUDED.output_text,
		output_json = EXCLUDED.output_json,
		retry_count = EXCLUDED.retry_count,
		tokens_used = EXCLUDED.tokens_used,
		duration_ms = EXCLUDED.duration_ms,
		finished_at = EXCLUDED.finished_at
	`
	_, err := s.db.ExecContext(ctx, query,
		pass.ID, pass.RunID, int(pass.Number), pass.Name, string(pass.Status),
		pass.InputText, pass.OutputText, nullableJSON([]byte(pass.OutputJSON)),
		pass.RetryCount, pass.TokensUsed, pass.Duration.Milliseconds(),
		pass.StartedAt, nullableTime(pass.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save pass: %w", err)
	}
	return nil
}

// GetRun loads a run with its pass records ordered by pass number.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*consult.ConsultationRun, error) {
	query := `
	SELECT id, case_id, title, description, status, passes_completed, failed_at_pass,
		result, confidence, scholar_flag, fallback_used, fallback_reason,
		total_duration_ms, total_tokens, created_at, updated_at
	FROM consultation_runs WHERE id = $1
	`
	run := &consult.ConsultationRun{}
	var (
		status         string
		resultJSON     sql.NullString
		fallbackReason sql.NullString
		durationMS     int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Request.CaseID, &run.Request.Title, &run.Request.Description,
		&status, &run.PassesCompleted, &run.FailedAtPass,
		&resultJSON, &run.Confidence, &run.ScholarFlag,
		&run.FallbackUsed, &fallbackReason,
		&durationMS, &run.TotalTokens, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.Status = consult.RunStatus(status)
	run.FallbackReason = fallbackReason.String
	run.TotalDuration = time.Duration(durationMS) * time.Millisecond
	if resultJSON.Valid && resultJSON.String != "" {
		var brief consult.Brief
		if err := json.Unmarshal([]byte(resultJSON.String), &brief); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		run.Result = &brief
	}

	passes, err := s.loadPasses(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Passes = passes
	return run, nil
}

func (s *PostgresStore) loadPasses(ctx context.Context, runID string) ([]*consult.PassRecord, error) {
	query := `
	SELECT id, run_id, number, name, status, input_text, output_text, output_json,
		retry_count, tokens_used, duration_ms, started_at, finished_at
	FROM pass_records WHERE run_id = $1 ORDER BY number
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load passes: %w", err)
	}
	defer rows.Close()

	var passes []*consult.PassRecord
	for rows.Next() {
		record := &consult.PassRecord{}
		var (
			number     int
			status     string
			outputJSON sql.NullString
			durationMS int64
			finishedAt sql.NullTime
		)
		if err := rows.Scan(
			&record.ID, &record.RunID, &number, &record.Name, &status,
			&record.InputText, &record.OutputText, &outputJSON,
			&record.RetryCount, &record.TokensUsed, &durationMS,
			&record.StartedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		record.Number = consult.PassNumber(number)
		record.Status = consult.PassStatus(status)
		record.OutputJSON = outputJSON.String
		record.Duration = time.Duration(durationMS) * time.Millisecond
		if finishedAt.Valid {
			record.FinishedAt = finishedAt.Time
		}
		passes = append(passes, record)
	}
	return passes, rows.Err()
}

// DeleteRun removes a run; pass records cascade via the foreign key.
func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM consultation_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete run %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// SaveComparison writes a comparison record.
func (s *PostgresStore) SaveComparison(ctx context.Context, rec *consult.ComparisonRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("save comparison: %w: record id is required", apperrors.ErrInvalidInput)
	}
	query := `
	INSERT INTO comparison_records (
		id, case_id, multipass_run_id, multipass_success, singlepass_success,
		multipass_confidence, singlepass_confidence,
		multipass_duration_ms, singlepass_duration_ms,
		primary_pipeline, returned_pipeline, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.CaseID, rec.MultipassRunID,
		rec.MultipassSuccess, rec.SinglepassSuccess,
		rec.MultipassConfidence, rec.SinglepassConfidence,
		rec.MultipassDuration.Milliseconds(), rec.SinglepassDuration.Milliseconds(),
		rec.PrimaryPipeline, rec.ReturnedPipeline, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}
	return nil
}

// AnnotateComparison attaches review fields to an existing record.
func (s *PostgresStore) AnnotateComparison(ctx context.Context, id, reviewedBy, notes string) error {
	query := `
	UPDATE comparison_records
	SET reviewed_by = $2, review_notes = $3, reviewed_at = $4
	WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, reviewedBy, notes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to annotate comparison: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check annotate result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("annotate comparison %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// GetComparison loads a comparison record.
func (s *PostgresStore) GetComparison(ctx context.Context, id string) (*consult.ComparisonRecord, error) {
	query := `
	SELECT id, case_id, multipass_run_id, multipass_success, singlepass_success,
		multipass_confidence, singlepass_confidence,
		multipass_duration_ms, singlepass_duration_ms,
		primary_pipeline, returned_pipeline,
		reviewed_by, review_notes, reviewed_at, created_at
	FROM comparison_records WHERE id = $1
	`
	rec := &consult.ComparisonRecord{}
	var (
		multipassRunID   sql.NullString
		returnedPipeline sql.NullString
		reviewedBy       sql.NullString
		reviewNotes      sql.NullString
		reviewedAt       sql.NullTime
		multiMS          int64
		singleMS         int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.CaseID, &multipassRunID,
		&rec.MultipassSuccess, &rec.SinglepassSuccess,
		&rec.MultipassConfidence, &rec.SinglepassConfidence,
		&multiMS, &singleMS,
		&rec.PrimaryPipeline, &returnedPipeline,
		&reviewedBy, &reviewNotes, &reviewedAt, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get comparison %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}
	rec.MultipassRunID = multipassRunID.String
	rec.ReturnedPipeline = returnedPipeline.String
	rec.ReviewedBy = reviewedBy.String
	rec.ReviewNotes = reviewNotes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	rec.MultipassDuration = time.Duration(multiMS) * time.Millisecond
	rec.SinglepassDuration = time.Duration(singleMS) * time.Millisecond
	rec.ConfidenceDiff = rec.MultipassConfidence - rec.SinglepassConfidence
	rec.DurationDiff = rec.MultipassDuration - rec.SinglepassDuration
	return rec, nil
}

// Close releases the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
