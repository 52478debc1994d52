package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contractor-sync/internal/db"
	"contractor-sync/internal/matching"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchMethod records how a mapping was established
type MatchMethod string

const (
	MatchMethodAuto       MatchMethod = "auto_match"
	MatchMethodExternalID MatchMethod = "external_id_lookup"
	MatchMethodManual     MatchMethod = "manual"
)

// VerificationStatus tracks the human-review lifecycle of a mapping
type VerificationStatus string

const (
	StatusAutoMatched   VerificationStatus = "auto_matched"
	StatusNeedsReview   VerificationStatus = "needs_review"
	StatusHumanVerified VerificationStatus = "human_verified"
	StatusHumanRejected VerificationStatus = "human_rejected"
)

// Mapping represents one Harvest-user-to-Deel-contract link
type Mapping struct {
	ID                 uuid.UUID          `json:"id"`
	HarvestUserID      string             `json:"harvest_user_id"`
	HarvestEmail       *string            `json:"harvest_email,omitempty"`
	HarvestName        *string            `json:"harvest_name,omitempty"`
	DeelContractID     string             `json:"deel_contract_id"`
	DeelEmail          *string            `json:"deel_email,omitempty"`
	DeelName           *string            `json:"deel_name,omitempty"`
	MatchMethod        MatchMethod        `json:"match_method"`
	ConfidenceScore    float64            `json:"confidence_score"`
	MatchSignals       *matching.Signals  `json:"match_signals,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedBy         *string            `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	IsActive           bool               `json:"is_active"`
}

// UpsertMappingRequest holds parameters for creating or replacing a mapping
type UpsertMappingRequest struct {
	HarvestUserID      string
	HarvestEmail       *string
	HarvestName        *string
	DeelContractID     string
	DeelEmail          *string
	DeelName           *string
	MatchMethod        MatchMethod
	ConfidenceScore    float64
	MatchSignals       *matching.Signals
	VerificationStatus VerificationStatus
}

// MappingRepository handles user mapping persistence. Writes assume at
// most one sync run at a time: concurrent upserts for the same Harvest
// user are last-write-wins with no merge.
type MappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(pool *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{pool: pool}
}

const mappingColumns = `id, harvest_user_id, harvest_email, harvest_name,
	deel_contract_id, deel_email, deel_name, match_method, confidence_score,
	match_signals, verification_status, verified_by, verified_at,
	created_at, updated_at, is_active`

func scanMapping(row pgx.Row) (*Mapping, error) {
	var m Mapping
	var signals []byte
	err := row.Scan(
		&m.ID, &m.HarvestUserID, &m.HarvestEmail, &m.HarvestName,
		&m.DeelContractID, &m.DeelEmail, &m.DeelName, &m.MatchMethod,
		&m.ConfidenceScore, &signals, &m.VerificationStatus, &m.VerifiedBy,
		&m.VerifiedAt, &m.CreatedAt, &m.UpdatedAt, &m.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if len(signals) > 0 {
		var s matching.Signals
		if err := json.Unmarshal(signals, &s); err != nil {
			return nil, fmt.Errorf("failed to decode match signals: %w", err)
		}
		m.MatchSignals = &s
	}
	return &m, nil
}

// Upsert creates a mapping or replaces the existing one for the same
// Harvest user. Re-running a sync refreshes the row rather than
// duplicating it.
func (r *MappingRepository) Upsert(ctx context.Context, req UpsertMappingRequest) (*Mapping, error) {
	var signals []byte
	if req.MatchSignals != nil {
		var err error
		signals, err = json.Marshal(req.MatchSignals)
		if err != nil {
			return nil, fmt.Errorf("failed to encode match signals: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_mappings (
			harvest_user_id, harvest_email, harvest_name,
			deel_contract_id, deel_email, deel_name,
			match_method, confidence_score, match_signals,
			verification_status, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		ON CONFLICT (harvest_user_id) DO UPDATE SET
			harvest_email = EXCLUDED.harvest_email,
			harvest_name = EXCLUDED.harvest_name,
			deel_contract_id = EXCLUDED.deel_contract_id,
			deel_email = EXCLUDED.deel_email,
			deel_name = EXCLUDED.deel_name,
			match_method = EXCLUDED.match_method,
			confidence_score = EXCLUDED.confidence_score,
			match_signals = EXCLUDED.match_signals,
			verification_status = EXCLUDED.verification_status,
			verified_by = NULL,
			verified_at = NULL,
			is_active = true,
			updated_at = now()
		RETURNING `+mappingColumns,
		req.HarvestUserID, req.HarvestEmail, req.HarvestName,
		req.DeelContractID, req.DeelEmail, req.DeelName,
		string(req.MatchMethod), req.ConfidenceScore, signals,
		string(req.VerificationStatus),
	)

	m, err := scanMapping(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return m, nil
}

// GetByHarvestUserID retrieves the active mapping for a Harvest user
func (r *MappingRepository) GetByHarvestUserID(ctx context.Context, harvestUserID string) (*Mapping, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+mappingColumns+`
		FROM user_mappings
		WHERE harvest_user_id = $1 AND is_active = true`,
		harvestUserID,
	)

	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// GetContractIDByUserID returns the Deel contract id mapped to a Harvest
// user, or db.ErrNotFound when no active mapping exists
func (r *MappingRepository) GetContractIDByUserID(ctx context.Context, harvestUserID string) (string, error) {
	var contractID string
	err := r.pool.QueryRow(ctx, `
		SELECT deel_contract_id
		FROM user_mappings
		WHERE harvest_user_id = $1 AND is_active = true`,
		harvestUserID,
	).Scan(&contractID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", db.ErrNotFound
		}
		return "", err
	}
	return contractID, nil
}

// PendingReviews lists active mappings awaiting human review, highest
// confidence first
func (r *MappingRepository) PendingReviews(ctx context.Context) ([]Mapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mappingColumns+`
		FROM user_mappings
		WHERE verification_status = $1 AND is_active = true
		ORDER BY confidence_score DESC`,
		string(StatusNeedsReview),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()

	return collectMappings(rows)
}

// AllActive lists all active mappings, newest first
func (r *MappingRepository) AllActive(ctx context.Context) ([]Mapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mappingColumns+`
		FROM user_mappings
		WHERE is_active = true
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active mappings: %w", err)
	}
	defer rows.Close()

	return collectMappings(rows)
}

// Verify records a human verdict on a mapping. Approval marks the row
// human_verified; rejection marks it human_rejected and deactivates it
// so the next sync can propose a fresh match. Rows are never deleted.
func (r *MappingRepository) Verify(ctx context.Context, harvestUserID string, approved bool, verifiedBy string) (*Mapping, error) {
	status := StatusHumanVerified
	active := true
	if !approved {
		status = StatusHumanRejected
		active = false
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE user_mappings
		SET verification_status = $2,
			verified_by = $3,
			verified_at = now(),
			is_active = $4,
			updated_at = now()
		WHERE harvest_user_id = $1
		RETURNING `+mappingColumns,
		harvestUserID, string(status), verifiedBy, active,
	)

	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify mapping: %w", err)
	}
	return m, nil
}

func collectMappings(rows pgx.Rows) ([]Mapping, error) {
	var mappings []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}
