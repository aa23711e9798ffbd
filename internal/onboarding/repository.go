package onboarding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrProgressNotFound is returned when no progress record exists for a user
// and role. Callers treat it as "start from scratch", not as a failure.
var ErrProgressNotFound = errors.New("onboarding progress not found")

// Repository defines the interface for progress persistence.
type Repository interface {
	// UpsertStepCompletion records a step interaction. It must be
	// idempotent: repeating the same completion has no additional effect.
	UpsertStepCompletion(ctx context.Context, userID string, role Role, stepID string, markComplete bool, now time.Time) error

	// GetProgress loads the persisted progress for a user and role.
	GetProgress(ctx context.Context, userID string, role Role) (*ProgressState, error)

	// ResetProgress clears the completed set and rewinds the current step.
	// The record itself is kept.
	ResetProgress(ctx context.Context, userID string, role Role, firstStepID string, now time.Time) error

	// ListResumable returns started, unfinished records whose last activity
	// falls inside the given window, oldest first.
	ListResumable(ctx context.Context, activeAfter, activeBefore time.Time, limit int) ([]*ProgressState, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertStepCompletion(ctx context.Context, userID string, role Role, stepID string, markComplete bool, now time.Time) error {
	initial := pq.StringArray{}
	if markComplete {
		initial = pq.StringArray{stepID}
	}
	terminal := markComplete && stepID == TerminalStepID

	query := `
		INSERT INTO onboarding_progress (
			id, user_id, role, current_step, completed_steps,
			has_started, is_complete, started_at, last_active_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, TRUE, $6, $7, $7, $7
		)
		ON CONFLICT (user_id, role) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			completed_steps = CASE
				WHEN $8 AND NOT ($4 = ANY (onboarding_progress.completed_steps))
					THEN array_append(onboarding_progress.completed_steps, $4)
				ELSE onboarding_progress.completed_steps
			END,
			has_started = TRUE,
			is_complete = onboarding_progress.is_complete OR EXCLUDED.is_complete,
			last_active_at = EXCLUDED.last_active_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(), userID, role, stepID, initial, terminal, now, markComplete,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert step completion: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetProgress(ctx context.Context, userID string, role Role) (*ProgressState, error) {
	query := `
		SELECT id, user_id, role, current_step, completed_steps,
			   has_started, is_complete, started_at, last_active_at, updated_at
		FROM onboarding_progress
		WHERE user_id = $1 AND role = $2
	`

	var state ProgressState
	if err := r.db.GetContext(ctx, &state, query, userID, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get onboarding progress: %w", err)
	}

	return &state, nil
}

func (r *PostgresRepository) ResetProgress(ctx context.Context, userID string, role Role, firstStepID string, now time.Time) error {
	query := `
		UPDATE onboarding_progress
		SET completed_steps = '{}',
			current_step = $3,
			is_complete = FALSE,
			last_active_at = $4,
			updated_at = $4
		WHERE user_id = $1 AND role = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, role, firstStepID, now)
	if err != nil {
		return fmt.Errorf("failed to reset onboarding progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reset result: %w", err)
	}
	if rows == 0 {
		return ErrProgressNotFound
	}

	return nil
}

func (r *PostgresRepository) ListResumable(ctx context.Context, activeAfter, activeBefore time.Time, limit int) ([]*ProgressState, error) {
	query := `
		SELECT id, user_id, role, current_step, completed_steps,
			   has_started, is_complete, started_at, last_active_at, updated_at
		FROM onboarding_progress
		WHERE has_started = TRUE
		  AND is_complete = FALSE
		  AND last_active_at > $1
		  AND last_active_at < $2
		ORDER BY last_active_at ASC
		LIMIT $3
	`

	var states []*ProgressState
	if err := r.db.SelectContext(ctx, &states, query, activeAfter, activeBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list resumable progress: %w", err)
	}

	return states, nil
}
