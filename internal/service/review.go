package service

import (
	"context"
	"fmt"

	"contractor-sync/internal/logger"
	"contractor-sync/internal/repository"
)

// ReviewStore exposes the mapping operations the review workflow needs
type ReviewStore interface {
	PendingReviews(ctx context.Context) ([]repository.Mapping, error)
	AllActive(ctx context.Context) ([]repository.Mapping, error)
	Verify(ctx context.Context, harvestUserID string, approved bool, verifiedBy string) (*repository.Mapping, error)
}

// ContractTagger writes external-id tags onto target contracts
type ContractTagger interface {
	SetExternalID(ctx context.Context, contractID, harvestUserID string) error
}

// ReviewService applies human verdicts to mappings awaiting review
type ReviewService struct {
	store  ReviewStore
	tagger ContractTagger
}

// NewReviewService creates a new review service
func NewReviewService(store ReviewStore, tagger ContractTagger) *ReviewService {
	return &ReviewService{store: store, tagger: tagger}
}

// Pending lists mappings awaiting human review, highest confidence first
func (s *ReviewService) Pending(ctx context.Context) ([]repository.Mapping, error) {
	return s.store.PendingReviews(ctx)
}

// ListActive lists all active mappings, newest first
func (s *ReviewService) ListActive(ctx context.Context) ([]repository.Mapping, error) {
	return s.store.AllActive(ctx)
}

// Approve confirms a proposed mapping and tags the contract with the
// user's external id. A failed tag write is logged but does not undo
// the approval; the stored mapping already covers the pair.
func (s *ReviewService) Approve(ctx context.Context, harvestUserID, reviewedBy string) (*repository.Mapping, error) {
	mapping, err := s.store.Verify(ctx, harvestUserID, true, reviewedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to approve mapping: %w", err)
	}

	if err := s.tagger.SetExternalID(ctx, mapping.DeelContractID, mapping.HarvestUserID); err != nil {
		logger.Get().Warn().Err(err).
			Str("contract_id", mapping.DeelContractID).
			Str("harvest_user_id", mapping.HarvestUserID).
			Msg("Failed to set external_id after approval")
	}

	return mapping, nil
}

// Reject marks a proposed mapping as wrong and deactivates it so the
// next sync can propose a fresh match
func (s *ReviewService) Reject(ctx context.Context, harvestUserID, reviewedBy string) (*repository.Mapping, error) {
	mapping, err := s.store.Verify(ctx, harvestUserID, false, reviewedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to reject mapping: %w", err)
	}
	return mapping, nil
}
