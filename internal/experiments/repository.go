package experiments

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/internal/params"
)

// Repository persists experiments. Every lookup is scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, userID int64, rec params.Record, predictedSize, predictedPdI float64) (*Experiment, error)
	FindByID(ctx context.Context, id string, userID int64) (*Experiment, error)
	FindAllByUser(ctx context.Context, userID int64, order Order, limit int) ([]Experiment, error)
	FindSince(ctx context.Context, userID int64, since time.Time) ([]Experiment, error)
	Save(ctx context.Context, e *Experiment) error
	CountByUser(ctx context.Context, userID int64) (int, error)
}

const selectColumns = `id, user_id, eu_concentration, phen_concentration, ligand_concentration,
	ligand_type, ph, addition_volume, addition_time, addition_rate,
	predicted_size, predicted_pdi, actual_size, actual_pdi, created_at, updated_at`

// SQLRepository implements Repository with sqlx. Queries use ? placeholders
// rebound to the driver's bindvar, so the same code serves PostgreSQL and SQLite.
type SQLRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository constructs a SQLRepository.
func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db, now: time.Now}
}

// Create stores a new experiment with a fresh UUID.
func (r *SQLRepository) Create(ctx context.Context, userID int64, rec params.Record, predictedSize, predictedPdI float64) (*Experiment, error) {
	now := r.now().UTC()
	e := &Experiment{
		ID:                  uuid.NewString(),
		UserID:              userID,
		EuConcentration:     rec.EuConcentration,
		PhenConcentration:   rec.PhenConcentration,
		LigandConcentration: rec.LigandConcentration,
		LigandType:          rec.LigandType,
		PH:                  rec.PH,
		AdditionVolume:      rec.AdditionVolume,
		AdditionTime:        rec.AdditionTime,
		AdditionRate:        rec.AdditionRate,
		PredictedSize:       predictedSize,
		PredictedPdI:        predictedPdI,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO experiments (id, user_id, eu_concentration, phen_concentration, ligand_concentration,
			ligand_type, ph, addition_volume, addition_time, addition_rate,
			predicted_size, predicted_pdi, created_at, updated_at)
		VALUES (:id, :user_id, :eu_concentration, :phen_concentration, :ligand_concentration,
			:ligand_type, :ph, :addition_volume, :addition_time, :addition_rate,
			:predicted_size, :predicted_pdi, :created_at, :updated_at)
	`, e)
	if err != nil {
		return nil, storeErr("create", err)
	}

	logger.Info(ctx, "service.experiments", "experiment.create",
		slog.String("status", "ok"),
		slog.String("experiment_id", e.ID),
		slog.Int64("user_id", userID),
	)
	return e, nil
}

// FindByID returns the experiment only when userID owns it.
func (r *SQLRepository) FindByID(ctx context.Context, id string, userID int64) (*Experiment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var e Experiment
	err := r.db.GetContext(ctx, &e, r.db.Rebind(`
		SELECT `+selectColumns+`
		FROM experiments
		WHERE id = ? AND user_id = ?
	`), id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find", err)
	}
	return &e, nil
}

// FindAllByUser lists the user's experiments. A non-positive limit returns all.
func (r *SQLRepository) FindAllByUser(ctx context.Context, userID int64, order Order, limit int) ([]Experiment, error) {
	dir := "DESC"
	if order == OldestFirst {
		dir = "ASC"
	}
	query := `SELECT ` + selectColumns + ` FROM experiments WHERE user_id = ? ORDER BY created_at ` + dir
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []Experiment
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, storeErr("list", err)
	}
	return out, nil
}

// FindSince lists the user's experiments created at or after since, oldest first.
// A zero since returns everything.
func (r *SQLRepository) FindSince(ctx context.Context, userID int64, since time.Time) ([]Experiment, error) {
	if since.IsZero() {
		return r.FindAllByUser(ctx, userID, OldestFirst, 0)
	}
	var out []Experiment
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+selectColumns+`
		FROM experiments
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at ASC
	`), userID, since.UTC())
	if err != nil {
		return nil, storeErr("list_since", err)
	}
	return out, nil
}

// Save writes the measured values of e.
func (r *SQLRepository) Save(ctx context.Context, e *Experiment) error {
	e.UpdatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE experiments
		SET actual_size = ?, actual_pdi = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`), e.ActualSize, e.ActualPdI, e.UpdatedAt, e.ID, e.UserID)
	if err != nil {
		return storeErr("save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("save", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	logger.Info(ctx, "service.experiments", "experiment.save",
		slog.String("status", "ok"),
		slog.String("experiment_id", e.ID),
		slog.Int64("user_id", e.UserID),
	)
	return nil
}

// CountByUser returns how many experiments the user owns.
func (r *SQLRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM experiments WHERE user_id = ?`), userID); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Ping checks the connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
