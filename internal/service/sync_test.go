package service

import (
	"context"
	"errors"
	"testing"

	"contractor-sync/internal/db"
	"contractor-sync/internal/deel"
	"contractor-sync/internal/matching"
	"contractor-sync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHarvest struct {
	users []matching.User
	err   error
}

func (f *fakeHarvest) ListActiveUsers(ctx context.Context) ([]matching.User, error) {
	return f.users, f.err
}

type fakeDeel struct {
	contracts  []deel.Contract
	tagged     map[string]*deel.Contract
	listErr    error
	setErr     error
	setCalls   []string
	lookupErrs map[string]error
}

func (f *fakeDeel) ListContracts(ctx context.Context) ([]deel.Contract, error) {
	return f.contracts, f.listErr
}

func (f *fakeDeel) FindContractByExternalID(ctx context.Context, harvestUserID string) (*deel.Contract, error) {
	if err := f.lookupErrs[harvestUserID]; err != nil {
		return nil, err
	}
	return f.tagged[harvestUserID], nil
}

func (f *fakeDeel) SetExternalID(ctx context.Context, contractID, harvestUserID string) error {
	f.setCalls = append(f.setCalls, contractID+":"+harvestUserID)
	return f.setErr
}

type fakeStore struct {
	existing   map[string]string
	upserts    []repository.UpsertMappingRequest
	upsertErrs map[string]error
}

func (f *fakeStore) GetContractIDByUserID(ctx context.Context, harvestUserID string) (string, error) {
	if id, ok := f.existing[harvestUserID]; ok {
		return id, nil
	}
	return "", db.ErrNotFound
}

func (f *fakeStore) Upsert(ctx context.Context, req repository.UpsertMappingRequest) (*repository.Mapping, error) {
	if err := f.upsertErrs[req.HarvestUserID]; err != nil {
		return nil, err
	}
	f.upserts = append(f.upserts, req)
	return &repository.Mapping{
		HarvestUserID:      req.HarvestUserID,
		DeelContractID:     req.DeelContractID,
		MatchMethod:        req.MatchMethod,
		ConfidenceScore:    req.ConfidenceScore,
		VerificationStatus: req.VerificationStatus,
		IsActive:           true,
	}, nil
}

func newSyncFixture(users []matching.User, contracts []deel.Contract) (*SyncService, *fakeDeel, *fakeStore) {
	deelFake := &fakeDeel{
		contracts:  contracts,
		tagged:     map[string]*deel.Contract{},
		lookupErrs: map[string]error{},
	}
	store := &fakeStore{
		existing:   map[string]string{},
		upsertErrs: map[string]error{},
	}
	svc := NewSyncService(&fakeHarvest{users: users}, deelFake, store, matching.NewMatcher(0.85, 0.60))
	return svc, deelFake, store
}

func inProgressContract(id, title, workerName, workerEmail string) deel.Contract {
	return deel.Contract{
		ID:     id,
		Title:  title,
		Status: "in_progress",
		Type:   "pay_as_you_go_time_based",
		Worker: deel.Worker{FullName: workerName, Email: workerEmail},
	}
}

func TestSyncRunSkipsAlreadyMapped(t *testing.T) {
	users := []matching.User{{ID: "1", Email: "ann@x.com", FirstName: "Ann", LastName: "Lee"}}
	svc, _, store := newSyncFixture(users, nil)
	store.existing["1"] = "ct-1"

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AlreadyMapped)
	assert.Empty(t, store.upserts)
}

func TestSyncRunBackfillsFromExternalID(t *testing.T) {
	users := []matching.User{{ID: "2", Email: "bob@x.com", FirstName: "Bob", LastName: "Smith"}}
	svc, deelFake, store := newSyncFixture(users, nil)
	tagged := inProgressContract("ct-2", "Bob Smith", "Bob Smith", "bob@x.com")
	deelFake.tagged["2"] = &tagged

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AutoMatched)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, repository.MatchMethodExternalID, store.upserts[0].MatchMethod)
	assert.Equal(t, 1.0, store.upserts[0].ConfidenceScore)
	assert.Equal(t, repository.StatusAutoMatched, store.upserts[0].VerificationStatus)
	// Already tagged, no need to tag again.
	assert.Empty(t, deelFake.setCalls)
}

func TestSyncRunAutoMatchPersistsAndTags(t *testing.T) {
	users := []matching.User{{ID: "3", Email: "ann@x.com", FirstName: "Ann", LastName: "Lee"}}
	contracts := []deel.Contract{inProgressContract("ct-3", "Ann Lee", "Ann Lee", "ann@x.com")}
	svc, deelFake, store := newSyncFixture(users, contracts)

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AutoMatched)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, repository.MatchMethodAuto, store.upserts[0].MatchMethod)
	assert.Equal(t, repository.StatusAutoMatched, store.upserts[0].VerificationStatus)
	require.NotNil(t, store.upserts[0].MatchSignals)
	assert.Equal(t, 1.0, store.upserts[0].MatchSignals.EmailMatch)
	assert.Equal(t, []string{"ct-3:3"}, deelFake.setCalls)
}

func TestSyncRunNeedsReviewPersistsWithoutTag(t *testing.T) {
	users := []matching.User{{ID: "4", Email: "bob@x.com", FirstName: "Bob", LastName: "Smith"}}
	contracts := []deel.Contract{inProgressContract("ct-4", "Untitled Contract", "Robert Smith", "")}
	svc, deelFake, store := newSyncFixture(users, contracts)

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, summary.NeedsReview, 1)
	assert.Equal(t, "Bob Smith", summary.NeedsReview[0].HarvestName)
	assert.InDelta(t, 0.606, summary.NeedsReview[0].Confidence, 0.01)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, repository.StatusNeedsReview, store.upserts[0].VerificationStatus)
	assert.Empty(t, deelFake.setCalls)
}

func TestSyncRunNoMatch(t *testing.T) {
	users := []matching.User{{ID: "5", Email: "zk@x.com", FirstName: "Zara", LastName: "Khan"}}
	contracts := []deel.Contract{inProgressContract("ct-5", "Totally Unrelated Name", "", "")}
	svc, _, store := newSyncFixture(users, contracts)

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, summary.NoMatch, 1)
	assert.Equal(t, "Zara Khan", summary.NoMatch[0].Name)
	assert.Empty(t, store.upserts)
}

func TestSyncRunDryRunWritesNothing(t *testing.T) {
	users := []matching.User{{ID: "6", Email: "ann@x.com", FirstName: "Ann", LastName: "Lee"}}
	contracts := []deel.Contract{inProgressContract("ct-6", "Ann Lee", "Ann Lee", "ann@x.com")}
	svc, deelFake, store := newSyncFixture(users, contracts)

	summary, err := svc.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.AutoMatched)
	assert.Empty(t, store.upserts)
	assert.Empty(t, deelFake.setCalls)
}

func TestSyncRunIsolatesPerUserFailures(t *testing.T) {
	users := []matching.User{
		{ID: "7", Email: "bad@x.com", FirstName: "Bad", LastName: "Row"},
		{ID: "8", Email: "ann@x.com", FirstName: "Ann", LastName: "Lee"},
	}
	contracts := []deel.Contract{
		inProgressContract("ct-7", "Bad Row", "Bad Row", "bad@x.com"),
		inProgressContract("ct-8", "Ann Lee", "Ann Lee", "ann@x.com"),
	}
	svc, _, store := newSyncFixture(users, contracts)
	store.upsertErrs["7"] = errors.New("connection reset")

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.AutoMatched)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, "8", store.upserts[0].HarvestUserID)
}

func TestSyncRunTagFailureDoesNotFailUser(t *testing.T) {
	users := []matching.User{{ID: "9", Email: "ann@x.com", FirstName: "Ann", LastName: "Lee"}}
	contracts := []deel.Contract{inProgressContract("ct-9", "Ann Lee", "Ann Lee", "ann@x.com")}
	svc, deelFake, store := newSyncFixture(users, contracts)
	deelFake.setErr = errors.New("rate limited")

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AutoMatched)
	assert.Equal(t, 0, summary.Errored)
	require.Len(t, store.upserts, 1)
}

func TestSyncRunHarvestFailure(t *testing.T) {
	svc := NewSyncService(&fakeHarvest{err: errors.New("timeout")}, &fakeDeel{}, &fakeStore{}, matching.NewMatcher(0.85, 0.60))

	_, err := svc.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "harvest users")
}
