package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/medrag/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS facilities (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS patient_identifiers (
	patient_code TEXT NOT NULL,
	facility_id  TEXT NOT NULL REFERENCES facilities(id) ON DELETE CASCADE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (facility_id, patient_code)
);`

// querier is the consumer interface over a pgx pool (ISP).
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Repo resolves facilities and patient membership from PostgreSQL.
type Repo struct {
	db querier
}

// New creates a registry over an existing pool or connection.
func New(q querier) *Repo {
	return &Repo{db: q}
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the registry tables if missing.
func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate registry: %w", err)
	}
	return nil
}

// ResolveFacility returns the facility or ErrUnknownFacility.
func (r *Repo) ResolveFacility(ctx context.Context, id string) (domain.Facility, error) {
	var f domain.Facility
	err := r.db.QueryRow(ctx,
		`SELECT id, name, address FROM facilities WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Facility{}, domain.ErrUnknownFacility
		}
		return domain.Facility{}, fmt.Errorf("%w: resolve facility: %w", domain.ErrMetadataUnavailable, err)
	}
	return f, nil
}

// PatientBelongsTo reports whether the patient code is registered to the facility.
func (r *Repo) PatientBelongsTo(ctx context.Context, facilityID, patientCode string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient_identifiers WHERE facility_id = $1 AND patient_code = $2)`,
		facilityID, patientCode,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%w: patient lookup: %w", domain.ErrMetadataUnavailable, err)
	}
	return ok, nil
}

// RegisterFacility inserts or updates a facility.
func (r *Repo) RegisterFacility(ctx context.Context, f domain.Facility) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO facilities (id, name, address) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address`,
		f.ID, f.Name, f.Address)
	if err != nil {
		return fmt.Errorf("%w: register facility: %w", domain.ErrMetadataUnavailable, err)
	}
	return nil
}

// RegisterPatient links a patient code to a facility.
func (r *Repo) RegisterPatient(ctx context.Context, facilityID, patientCode string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO patient_identifiers (facility_id, patient_code) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		facilityID, patientCode)
	if err != nil {
		return fmt.Errorf("%w: register patient: %w", domain.ErrMetadataUnavailable, err)
	}
	return nil
}

// HealthCheck pings the database.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMetadataUnavailable, err)
	}
	return nil
}
