package service

import (
	"context"
	"errors"
	"fmt"

	"contractor-sync/internal/db"
	"contractor-sync/internal/deel"
	"contractor-sync/internal/logger"
	"contractor-sync/internal/matching"
	"contractor-sync/internal/repository"
)

// HarvestClient lists the source identities to reconcile
type HarvestClient interface {
	ListActiveUsers(ctx context.Context) ([]matching.User, error)
}

// DeelClient lists target contracts and manages external-id tags
type DeelClient interface {
	ListContracts(ctx context.Context) ([]deel.Contract, error)
	FindContractByExternalID(ctx context.Context, harvestUserID string) (*deel.Contract, error)
	SetExternalID(ctx context.Context, contractID, harvestUserID string) error
}

// MappingStore persists resolved mappings
type MappingStore interface {
	GetContractIDByUserID(ctx context.Context, harvestUserID string) (string, error)
	Upsert(ctx context.Context, req repository.UpsertMappingRequest) (*repository.Mapping, error)
}

// MatchedPair describes one proposed user-to-contract link in a summary
type MatchedPair struct {
	HarvestName string  `json:"harvest_name"`
	DeelName    string  `json:"deel_name"`
	Confidence  float64 `json:"confidence"`
}

// UnmatchedUser describes a source user no contract could be found for
type UnmatchedUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary is the outcome of one sync run
type Summary struct {
	DryRun        bool            `json:"dry_run"`
	UsersScanned  int             `json:"users_scanned"`
	AlreadyMapped int             `json:"already_mapped"`
	AutoMatched   int             `json:"auto_matched"`
	NeedsReview   []MatchedPair   `json:"needs_review"`
	NoMatch       []UnmatchedUser `json:"no_match"`
	Errored       int             `json:"errored"`
}

// SyncService reconciles Harvest users with Deel contracts
type SyncService struct {
	harvest HarvestClient
	deel    DeelClient
	store   MappingStore
	matcher *matching.Matcher
}

// NewSyncService creates a new sync service
func NewSyncService(harvest HarvestClient, deelClient DeelClient, store MappingStore, matcher *matching.Matcher) *SyncService {
	return &SyncService{
		harvest: harvest,
		deel:    deelClient,
		store:   store,
		matcher: matcher,
	}
}

// Run reconciles every active Harvest user against the Deel contract
// pool. Resolution order per user: existing mapping, then external-id
// tag lookup, then fuzzy matching. When dryRun is set nothing is
// persisted or tagged. A failure on one user is logged and counted but
// never aborts the rest of the run.
func (s *SyncService) Run(ctx context.Context, dryRun bool) (*Summary, error) {
	log := logger.Get()

	users, err := s.harvest.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list harvest users: %w", err)
	}

	contracts, err := s.deel.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deel contracts: %w", err)
	}

	log.Info().
		Int("harvest_users", len(users)).
		Int("deel_contracts", len(contracts)).
		Bool("dry_run", dryRun).
		Msg("Starting mapping sync")

	candidates := make([]matching.Candidate, len(contracts))
	contractsByID := make(map[string]deel.Contract, len(contracts))
	for i, contract := range contracts {
		candidates[i] = contract.Candidate()
		contractsByID[contract.ID] = contract
	}

	summary := &Summary{
		DryRun:       dryRun,
		UsersScanned: len(users),
		NeedsReview:  []MatchedPair{},
		NoMatch:      []UnmatchedUser{},
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.syncUser(ctx, user, candidates, contractsByID, dryRun, summary); err != nil {
			log.Error().Err(err).
				Str("harvest_user_id", user.ID).
				Str("name", user.FullName()).
				Msg("Failed to sync user, continuing")
			summary.Errored++
		}
	}

	log.Info().
		Int("already_mapped", summary.AlreadyMapped).
		Int("auto_matched", summary.AutoMatched).
		Int("needs_review", len(summary.NeedsReview)).
		Int("no_match", len(summary.NoMatch)).
		Int("errored", summary.Errored).
		Msg("Mapping sync complete")

	return summary, nil
}

func (s *SyncService) syncUser(ctx context.Context, user matching.User, candidates []matching.Candidate, contractsByID map[string]deel.Contract, dryRun bool, summary *Summary) error {
	log := logger.Get()

	// Step 1: an active mapping already covers this user.
	_, err := s.store.GetContractIDByUserID(ctx, user.ID)
	if err == nil {
		summary.AlreadyMapped++
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("mapping lookup failed: %w", err)
	}

	// Step 2: a contract already carries this user's external-id tag.
	// Backfill the store so step 1 catches it next run.
	tagged, err := s.deel.FindContractByExternalID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("external_id lookup failed: %w", err)
	}
	if tagged != nil {
		log.Info().
			Str("harvest_user_id", user.ID).
			Str("contract_id", tagged.ID).
			Msg("Found existing external_id link")
		if !dryRun {
			if err := s.persistMapping(ctx, user, *tagged, repository.MatchMethodExternalID, 1.0, nil, repository.StatusAutoMatched); err != nil {
				return err
			}
		}
		summary.AutoMatched++
		return nil
	}

	// Step 3: fuzzy match against the contract pool.
	result := s.matcher.FindBestMatch(user, candidates)
	if result == nil {
		log.Warn().
			Str("harvest_user_id", user.ID).
			Str("name", user.FullName()).
			Msg("No match found")
		summary.NoMatch = append(summary.NoMatch, UnmatchedUser{Name: user.FullName(), Email: user.Email})
		return nil
	}

	contract, ok := contractsByID[result.DeelContractID]
	if !ok {
		summary.NoMatch = append(summary.NoMatch, UnmatchedUser{Name: user.FullName(), Email: user.Email})
		return nil
	}

	switch result.Decision {
	case matching.DecisionAutoAccept:
		log.Info().
			Str("harvest_user_id", user.ID).
			Str("name", user.FullName()).
			Str("contract_title", contract.Title).
			Float64("confidence", result.Confidence).
			Msg("Auto-matched")
		if !dryRun {
			if err := s.persistMapping(ctx, user, contract, repository.MatchMethodAuto, result.Confidence, &result.Signals, repository.StatusAutoMatched); err != nil {
				return err
			}
			// Tag the contract so future runs resolve without fuzzy
			// matching. A failed tag write is only a warning: the
			// stored mapping already covers the pair.
			if err := s.deel.SetExternalID(ctx, contract.ID, user.ID); err != nil {
				log.Warn().Err(err).
					Str("contract_id", contract.ID).
					Msg("Failed to set external_id on contract")
			}
		}
		summary.AutoMatched++

	case matching.DecisionNeedsReview:
		log.Info().
			Str("harvest_user_id", user.ID).
			Str("name", user.FullName()).
			Str("contract_title", contract.Title).
			Float64("confidence", result.Confidence).
			Msg("Match needs review")
		if !dryRun {
			if err := s.persistMapping(ctx, user, contract, repository.MatchMethodAuto, result.Confidence, &result.Signals, repository.StatusNeedsReview); err != nil {
				return err
			}
		}
		summary.NeedsReview = append(summary.NeedsReview, MatchedPair{
			HarvestName: user.FullName(),
			DeelName:    contract.Title,
			Confidence:  result.Confidence,
		})

	default:
		summary.NoMatch = append(summary.NoMatch, UnmatchedUser{Name: user.FullName(), Email: user.Email})
	}

	return nil
}

func (s *SyncService) persistMapping(ctx context.Context, user matching.User, contract deel.Contract, method repository.MatchMethod, confidence float64, signals *matching.Signals, status repository.VerificationStatus) error {
	req := repository.UpsertMappingRequest{
		HarvestUserID:      user.ID,
		DeelContractID:     contract.ID,
		MatchMethod:        method,
		ConfidenceScore:    confidence,
		MatchSignals:       signals,
		VerificationStatus: status,
	}
	if user.Email != "" {
		req.HarvestEmail = &user.Email
	}
	if name := user.FullName(); name != "" {
		req.HarvestName = &name
	}
	if contract.Worker.Email != "" {
		req.DeelEmail = &contract.Worker.Email
	}
	if contract.Title != "" {
		req.DeelName = &contract.Title
	}

	if _, err := s.store.Upsert(ctx, req); err != nil {
		return fmt.Errorf("failed to persist mapping: %w", err)
	}
	return nil
}
