package repo_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errandly/backend/internal/domain"
	"github.com/errandly/backend/internal/repo"
	"github.com/errandly/backend/testutil"
)

// newTestRepos returns a RequestRepo and ProfileRepo sharing one
// rolled-back transaction, so request fixtures can satisfy the
// requester_id foreign key.
func newTestRepos(t *testing.T) (repo.RequestRepo, repo.ProfileRepo) {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return repo.NewRequestRepo(tx), repo.NewProfileRepo(tx)
}

// createProfile inserts a profile row to own request fixtures.
func createProfile(t *testing.T, profiles repo.ProfileRepo) domain.Profile {
	t.Helper()
	created, err := profiles.Create(context.Background(), profileFixture(), "hash")
	require.NoError(t, err)
	return created
}

func requestFixture(requesterID uuid.UUID) domain.Request {
	payment := 20
	return domain.Request{
		RequesterID:   requesterID,
		RequestText:   "Walk my dog this afternoon",
		Location:      domain.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		RadiusMeters:  500,
		PaymentAmount: &payment,
	}
}

func TestRequestRepo_Create(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)

	input := requestFixture(owner.UID)
	got, err := requests.Create(ctx, input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated")
	assert.Equal(t, owner.UID, got.RequesterID)
	assert.Equal(t, input.RequestText, got.RequestText)
	assert.InDelta(t, input.Location.Latitude, got.Location.Latitude, 1e-9)
	assert.InDelta(t, input.Location.Longitude, got.Location.Longitude, 1e-9)
	require.NotNil(t, got.PaymentAmount)
	assert.Equal(t, 20, *got.PaymentAmount)
	assert.Nil(t, got.Acceptance, "a fresh request is open")
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, domain.StatusOpen, got.Status())
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
}

func TestRequestRepo_Create_NilPayment(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)

	input := requestFixture(owner.UID)
	input.PaymentAmount = nil

	got, err := requests.Create(ctx, input)

	require.NoError(t, err)
	assert.Nil(t, got.PaymentAmount, "unpaid request should round-trip as nil")
}

func TestRequestRepo_GetByID_NotFound(t *testing.T) {
	requests, _ := newTestRepos(t)

	_, err := requests.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestRepo_Accept(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)
	accepter := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)

	got, err := requests.Accept(ctx, created.ID, accepter.UID, 45)

	require.NoError(t, err)
	require.NotNil(t, got.Acceptance)
	assert.Equal(t, accepter.UID, got.Acceptance.UserID)
	assert.Equal(t, 45, got.Acceptance.DurationMinutes)
	assert.False(t, got.Acceptance.AcceptedAt.IsZero())
	assert.Equal(t, domain.StatusAccepted, got.Status())
}

func TestRequestRepo_Accept_AlreadyAccepted(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)
	first := createProfile(t, profiles)
	second := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)

	_, err = requests.Accept(ctx, created.ID, first.UID, 30)
	require.NoError(t, err)

	_, err = requests.Accept(ctx, created.ID, second.UID, 30)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestRepo_Accept_NotFound(t *testing.T) {
	requests, profiles := newTestRepos(t)
	accepter := createProfile(t, profiles)

	_, err := requests.Accept(context.Background(), uuid.New(), accepter.UID, 30)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestRepo_Complete(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)
	accepter := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)
	_, err = requests.Accept(ctx, created.ID, accepter.UID, 30)
	require.NoError(t, err)

	got, err := requests.Complete(ctx, created.ID)

	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, domain.StatusCompleted, got.Status())
}

func TestRequestRepo_Complete_NotAccepted(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)

	_, err = requests.Complete(ctx, created.ID)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestRepo_Complete_AlreadyCompleted(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)
	accepter := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)
	_, err = requests.Accept(ctx, created.ID, accepter.UID, 30)
	require.NoError(t, err)
	_, err = requests.Complete(ctx, created.ID)
	require.NoError(t, err)

	_, err = requests.Complete(ctx, created.ID)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestRepo_Complete_NotFound(t *testing.T) {
	requests, _ := newTestRepos(t)

	_, err := requests.Complete(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestRepo_ListOpen_ExcludesAccepted(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)
	accepter := createProfile(t, profiles)

	stillOpen, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)

	taken, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)
	_, err = requests.Accept(ctx, taken.ID, accepter.UID, 30)
	require.NoError(t, err)

	got, err := requests.ListOpen(ctx)

	require.NoError(t, err)
	ids := make([]uuid.UUID, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Contains(t, ids, stillOpen.ID)
	assert.NotContains(t, ids, taken.ID)
}

func TestRequestRepo_ListCreatedBy_Pagination(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)

	for i := 0; i < 3; i++ {
		_, err := requests.Create(ctx, requestFixture(owner.UID))
		require.NoError(t, err)
	}

	page1, err := requests.ListCreatedBy(ctx, owner.UID, domain.PaginationParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page2, err := requests.ListCreatedBy(ctx, owner.UID, domain.PaginationParams{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}

func TestRequestRepo_ListAcceptedBy(t *testing.T) {
	requests, profiles := newTestRepos(t)
	ctx := context.Background()
	owner := createProfile(t, profiles)
	accepter := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)
	_, err = requests.Accept(ctx, created.ID, accepter.UID, 30)
	require.NoError(t, err)

	got, err := requests.ListAcceptedBy(ctx, accepter.UID, domain.PaginationParams{Page: 1, Limit: 20})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	none, err := requests.ListAcceptedBy(ctx, owner.UID, domain.PaginationParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestRequestRepo_Accept_Concurrent drives two accepts through separate
// pool connections at once. The conditional UPDATE guarantees exactly one
// winner; the loser must see ErrConflict, never a silent overwrite.
func TestRequestRepo_Accept_Concurrent(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	requests := repo.NewRequestRepo(pool)
	profiles := repo.NewProfileRepo(pool)

	owner := createProfile(t, profiles)
	a := createProfile(t, profiles)
	b := createProfile(t, profiles)

	created, err := requests.Create(ctx, requestFixture(owner.UID))
	require.NoError(t, err)

	// Committed rows outlive the test; clean them up explicitly.
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM requests WHERE id = $1`, created.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM profiles WHERE uid = ANY($1)`, []uuid.UUID{owner.UID, a.UID, b.UID})
	})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i, accepter := range []uuid.UUID{a.UID, b.UID} {
		go func(i int, accepter uuid.UUID) {
			defer wg.Done()
			_, errs[i] = requests.Accept(ctx, created.ID, accepter, 30)
		}(i, accepter)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, errors.Is(err, domain.ErrConflict), "loser should get ErrConflict, got %v", err)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent accept must win")
}
