package timeoff_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/timeoff"
	"github.com/warp/absence-engine/timeoff/mocks"
	"go.uber.org/zap"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin    = timeoff.User{ID: "1", Name: "Anna", Surname: "Bianchi", Role: timeoff.RoleAdmin}
	employee = timeoff.User{ID: "7", Name: "Luca", Surname: "Verdi", Role: timeoff.RoleEmployee}
	other    = timeoff.User{ID: "8", Name: "Sara", Surname: "Neri", Role: timeoff.RoleEmployee}
)

func newTestStore(t *testing.T) (*timeoff.Store, *mocks.Repository) {
	repo := mocks.NewRepository(t)
	users := timeoff.UserLookupFunc(func(_ context.Context, id string) (*timeoff.User, error) {
		for _, u := range []timeoff.User{admin, employee, other} {
			if u.ID == id {
				return &u, nil
			}
		}
		return nil, nil
	})
	store := timeoff.NewStore(repo, users, timeoff.NewNormalizer(timeoff.DefaultStatusTable(), zap.NewNop()), zap.NewNop())
	return store, repo
}

func holidayRecord(id, owner int, start, status string) timeoff.RawRecord {
	r := timeoff.RawRecord{"idRichiesta": id, "idUtente": owner, "dataInizio": start}
	if status != "" {
		r["statoApprovazione"] = status
	}
	return r
}

func statusOf(t *testing.T, store *timeoff.Store, id string) timeoff.Status {
	t.Helper()
	req, ok := store.Get(id)
	require.True(t, ok, "request %s not held", id)
	return req.Status
}

// =============================================================================
// LOADING
// =============================================================================

func TestStore_Load_AdminFetchesEverything(t *testing.T) {
	store, repo := newTestStore(t)
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", ""),
		holidayRecord(11, 1, "2025-01-09", "validato"),
		{"idRichiesta": 12}, // excluded
		{"idmalattia": 13, "idutente": 8, "dataInizio": "2025-02-01", "certificato": "c.pdf"},
	}, nil).Once()

	require.NoError(t, store.Load(context.Background(), admin))

	snap := store.Snapshot()
	assert.Equal(t, timeoff.Loaded, snap.State)
	assert.Empty(t, snap.Filter)
	assert.False(t, snap.Loading)
	require.Len(t, snap.Requests, 3)
	assert.Equal(t, "Luca Verdi", snap.Requests[0].RequesterName)
	assert.Equal(t, "Sara Neri", snap.Requests[2].RequesterName)
}

func TestStore_Load_EmployeeOnlyFetchesOwn(t *testing.T) {
	store, repo := newTestStore(t)
	repo.EXPECT().FetchRequests(mock.Anything, "7").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", ""),
	}, nil).Once()

	require.NoError(t, store.Load(context.Background(), employee))

	assert.Equal(t, "7", store.Snapshot().Filter)
}

func TestStore_Load_FailureIsDistinctFromEmpty(t *testing.T) {
	t.Run("failed", func(t *testing.T) {
		store, repo := newTestStore(t)
		repo.EXPECT().FetchRequests(mock.Anything, "").Return(nil, errors.New("connection refused")).Once()

		err := store.Load(context.Background(), admin)

		require.Error(t, err)
		assert.ErrorIs(t, err, timeoff.ErrLoadFailed)
		var loadErr *timeoff.LoadError
		assert.ErrorAs(t, err, &loadErr)
		assert.True(t, timeoff.IsRetryable(err))

		snap := store.Snapshot()
		assert.Equal(t, timeoff.LoadFailed, snap.State)
		assert.ErrorIs(t, snap.Err, timeoff.ErrLoadFailed)
	})

	t.Run("empty", func(t *testing.T) {
		store, repo := newTestStore(t)
		repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{}, nil).Once()

		require.NoError(t, store.Load(context.Background(), admin))

		snap := store.Snapshot()
		assert.Equal(t, timeoff.Loaded, snap.State)
		assert.Empty(t, snap.Requests)
		assert.NoError(t, snap.Err)
	})
}

// countingRepo blocks every fetch until release is closed.
type countingRepo struct {
	timeoff.Repository
	fetches atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (r *countingRepo) FetchRequests(_ context.Context, ownerID string) ([]timeoff.RawRecord, error) {
	if r.fetches.Add(1) == 1 {
		close(r.entered)
	}
	<-r.release
	return []timeoff.RawRecord{holidayRecord(10, 7, "2025-01-08", "")}, nil
}

func TestStore_Load_ConcurrentLoadsShareOneFetch(t *testing.T) {
	repo := &countingRepo{entered: make(chan struct{}), release: make(chan struct{})}
	store := timeoff.NewStore(repo, nil, nil, zap.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = store.Load(context.Background(), admin)
	}()
	<-repo.entered
	assert.True(t, store.Snapshot().Loading)

	for i := 1; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Load(context.Background(), admin)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), repo.fetches.Load())
	assert.Len(t, store.Snapshot().Requests, 1)
}

func TestStore_Load_NewerLoadSupersedesOlder(t *testing.T) {
	// GIVEN: An admin load is still in flight
	// WHEN: An employee load starts and finishes first
	// THEN: The late admin result is discarded

	store, repo := newTestStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	repo.EXPECT().FetchRequests(mock.Anything, "").RunAndReturn(func(context.Context, string) ([]timeoff.RawRecord, error) {
		close(entered)
		<-release
		return []timeoff.RawRecord{holidayRecord(10, 7, "2025-01-08", ""), holidayRecord(11, 8, "2025-01-08", "")}, nil
	}).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "7").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", ""),
	}, nil).Once()

	done := make(chan error)
	go func() { done <- store.Load(context.Background(), admin) }()
	<-entered

	require.NoError(t, store.Load(context.Background(), employee))
	close(release)
	require.NoError(t, <-done)

	snap := store.Snapshot()
	assert.Equal(t, "7", snap.Filter)
	assert.Len(t, snap.Requests, 1)
}

func TestStore_Load_DuplicateIDsAcrossTablesAreNotHeldTwice(t *testing.T) {
	// GIVEN: The holiday and sick-leave tables both return id 5
	// WHEN: Loading
	// THEN: Only the first record is held, so Get and Approve see one request

	store, repo := newTestStore(t)
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(5, 7, "2025-01-08", "validato"),
		{"idmalattia": 5, "idutente": 7, "dataInizio": "2025-02-03", "statoApprovazione": "in attesa"},
	}, nil).Once()

	require.NoError(t, store.Load(context.Background(), admin))

	snap := store.Snapshot()
	require.Len(t, snap.Requests, 1)
	req, ok := store.Get("5")
	require.True(t, ok)
	assert.Equal(t, timeoff.KindHoliday, req.Kind)
	assert.ErrorIs(t, store.Approve(context.Background(), admin, "5"), timeoff.ErrIllegalTransition)
}

// =============================================================================
// VIEWS
// =============================================================================

func loadedStore(t *testing.T) (*timeoff.Store, *mocks.Repository) {
	store, repo := newTestStore(t)
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", ""),
		holidayRecord(11, 1, "2025-01-09", ""),
		holidayRecord(12, 8, "2025-01-10", "validato"),
	}, nil).Once()
	require.NoError(t, store.Load(context.Background(), admin))
	return store, repo
}

func TestStore_ListFor(t *testing.T) {
	store, _ := loadedStore(t)

	ids := func(reqs []timeoff.Request) []string {
		out := make([]string, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{"11"}, ids(store.ListFor(admin, timeoff.PerspectiveSent)))
	assert.Equal(t, []string{"10", "12"}, ids(store.ListFor(admin, timeoff.PerspectiveReceived)))
	assert.Equal(t, []string{"10"}, ids(store.ListFor(employee, timeoff.PerspectiveSent)))

	received := store.ListFor(employee, timeoff.PerspectiveReceived)
	assert.NotNil(t, received)
	assert.Empty(t, received, "non-admins get an empty received view")

	assert.Empty(t, store.ListFor(admin, timeoff.Perspective("archived")))
}

func TestStore_ListFor_ReceivedNeverContainsOwn(t *testing.T) {
	store, _ := loadedStore(t)

	for _, viewer := range []timeoff.User{admin, {ID: "7", Role: timeoff.RoleAdmin}, {ID: "8", Role: timeoff.RoleAdmin}} {
		for _, r := range store.ListFor(viewer, timeoff.PerspectiveReceived) {
			assert.NotEqual(t, viewer.ID, r.OwnerID)
		}
	}
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	store, repo := newTestStore(t)
	repo.EXPECT().FetchRequests(mock.Anything, "7").Return([]timeoff.RawRecord{
		{"idmalattia": 3, "idutente": 7, "dataInizio": "2025-02-01", "certificato": "c.pdf"},
	}, nil).Once()
	require.NoError(t, store.Load(context.Background(), employee))

	list := store.ListFor(employee, timeoff.PerspectiveSent)
	list[0].Status = timeoff.StatusApproved
	list[0].SickLeave.Certificate = "forged.pdf"

	held, ok := store.Get("3")
	require.True(t, ok)
	assert.Equal(t, timeoff.StatusPending, held.Status)
	assert.Equal(t, "c.pdf", held.SickLeave.Certificate)
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

func TestStore_Approve_RefetchesAfterMutation(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: An admin approves it
	// THEN: The status comes from the refetch, not from a local update

	store, repo := loadedStore(t)
	repo.EXPECT().MutateStatus(mock.Anything, "10", timeoff.StatusApproved).Return(nil).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", "validato"),
		holidayRecord(11, 1, "2025-01-09", ""),
		holidayRecord(12, 8, "2025-01-10", "validato"),
	}, nil).Once()

	require.NoError(t, store.Approve(context.Background(), admin, "10"))

	assert.Equal(t, timeoff.StatusApproved, statusOf(t, store, "10"))
}

func TestStore_Approve_RefetchJoinsOnlyFlightsStartedAfterTheWrite(t *testing.T) {
	// GIVEN: The refetch after approving 10 is waiting on the repository
	// WHEN: A plain Refresh arrives, then request 11 is approved
	// THEN: The Refresh joins the running fetch; the second approval,
	//       written after that fetch started, gets a fetch of its own

	store, repo := loadedStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	repo.EXPECT().MutateStatus(mock.Anything, "10", timeoff.StatusApproved).Return(nil).Once()
	repo.EXPECT().MutateStatus(mock.Anything, "11", timeoff.StatusApproved).Return(nil).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "").RunAndReturn(func(context.Context, string) ([]timeoff.RawRecord, error) {
		close(entered)
		<-release
		return []timeoff.RawRecord{
			holidayRecord(10, 7, "2025-01-08", "validato"),
			holidayRecord(11, 1, "2025-01-09", ""),
		}, nil
	}).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", "validato"),
		holidayRecord(11, 1, "2025-01-09", "validato"),
	}, nil).Once()

	approved := make(chan error)
	go func() { approved <- store.Approve(context.Background(), admin, "10") }()
	<-entered

	refreshed := make(chan error)
	go func() { refreshed <- store.Refresh(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, store.Approve(context.Background(), admin, "11"))
	assert.Equal(t, timeoff.StatusApproved, statusOf(t, store, "11"))

	close(release)
	require.NoError(t, <-approved)
	require.NoError(t, <-refreshed)

	// The older fetch finished last but does not overwrite the newer one.
	assert.Equal(t, timeoff.StatusApproved, statusOf(t, store, "10"))
	assert.Equal(t, timeoff.StatusApproved, statusOf(t, store, "11"))
}

func TestStore_Reject_TrustsSystemOfRecord(t *testing.T) {
	store, repo := loadedStore(t)
	repo.EXPECT().MutateStatus(mock.Anything, "10", timeoff.StatusRejected).Return(nil).Once()
	// The source has not caught up yet; the store shows what it reports.
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", "in attesa"),
	}, nil).Once()

	require.NoError(t, store.Reject(context.Background(), admin, "10"))

	assert.Equal(t, timeoff.StatusPending, statusOf(t, store, "10"))
}

func TestStore_Approve_AlreadyApprovedIsIllegal(t *testing.T) {
	store, repo := loadedStore(t)

	err := store.Approve(context.Background(), admin, "12")

	require.Error(t, err)
	assert.ErrorIs(t, err, timeoff.ErrIllegalTransition)
	var trErr *timeoff.TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, timeoff.StatusApproved, trErr.From)
	assert.True(t, timeoff.IsNotPermitted(err))
	assert.Equal(t, timeoff.StatusApproved, statusOf(t, store, "12"))
	repo.AssertNotCalled(t, "MutateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_Approve_NonAdminIsUnauthorized(t *testing.T) {
	store, repo := loadedStore(t)

	for _, actor := range []timeoff.User{employee, {ID: "5", Role: timeoff.RoleExternal}} {
		err := store.Approve(context.Background(), actor, "10")
		assert.ErrorIs(t, err, timeoff.ErrUnauthorized)
		err = store.Reject(context.Background(), actor, "10")
		assert.ErrorIs(t, err, timeoff.ErrUnauthorized)
	}

	assert.Equal(t, timeoff.StatusPending, statusOf(t, store, "10"))
	repo.AssertNotCalled(t, "MutateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_Approve_UnknownRequest(t *testing.T) {
	store, _ := loadedStore(t)

	err := store.Approve(context.Background(), admin, "404")

	assert.ErrorIs(t, err, timeoff.ErrRequestNotFound)
}

func TestStore_Approve_MutationFailureKeepsFetchedStatus(t *testing.T) {
	store, repo := loadedStore(t)
	repo.EXPECT().MutateStatus(mock.Anything, "10", timeoff.StatusApproved).Return(errors.New("503 from upstream")).Once()

	err := store.Approve(context.Background(), admin, "10")

	require.Error(t, err)
	assert.ErrorIs(t, err, timeoff.ErrActionFailed)
	var actErr *timeoff.ActionError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, "approve", actErr.Action)
	assert.Equal(t, timeoff.StatusPending, statusOf(t, store, "10"))
}

func TestStore_Approve_RefetchFailureReportsLoadFailed(t *testing.T) {
	store, repo := loadedStore(t)
	repo.EXPECT().MutateStatus(mock.Anything, "10", timeoff.StatusApproved).Return(nil).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "").Return(nil, errors.New("timeout")).Once()

	err := store.Approve(context.Background(), admin, "10")

	assert.ErrorIs(t, err, timeoff.ErrLoadFailed)
	assert.Equal(t, timeoff.LoadFailed, store.Snapshot().State)
}

func TestStore_Approve_SameRequestIsSerialized(t *testing.T) {
	// GIVEN: An approval of request 10 is waiting on the repository
	// WHEN: A second action on request 10 arrives
	// THEN: It is refused without reaching the repository

	store, repo := loadedStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	repo.EXPECT().MutateStatus(mock.Anything, "10", timeoff.StatusApproved).RunAndReturn(func(context.Context, string, timeoff.Status) error {
		close(entered)
		<-release
		return nil
	}).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
		holidayRecord(10, 7, "2025-01-08", "validato"),
	}, nil).Once()

	done := make(chan error)
	go func() { done <- store.Approve(context.Background(), admin, "10") }()
	<-entered

	err := store.Reject(context.Background(), admin, "10")
	assert.ErrorIs(t, err, timeoff.ErrActionInProgress)
	assert.True(t, timeoff.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, timeoff.StatusApproved, statusOf(t, store, "10"))
}

// =============================================================================
// CREATE / DELETE
// =============================================================================

func TestStore_Create_SubmitsPendingForActor(t *testing.T) {
	store, repo := newTestStore(t)
	repo.EXPECT().FetchRequests(mock.Anything, "7").Return([]timeoff.RawRecord{}, nil).Once()
	require.NoError(t, store.Load(context.Background(), employee))

	repo.EXPECT().CreateRequest(mock.Anything, mock.MatchedBy(func(r timeoff.Request) bool {
		return r.OwnerID == "7" && r.Status == timeoff.StatusPending && r.End == r.Start
	})).Return("30", nil).Once()
	repo.EXPECT().FetchRequests(mock.Anything, "7").Return([]timeoff.RawRecord{
		holidayRecord(30, 7, "2025-04-14", ""),
	}, nil).Once()

	id, err := store.Create(context.Background(), employee, timeoff.Request{
		OwnerID: "someone-else",
		Kind:    timeoff.KindHoliday,
		Status:  timeoff.StatusApproved,
		Start:   generic.MustParseDate("2025-04-14"),
	})

	require.NoError(t, err)
	assert.Equal(t, "30", id)
	assert.Len(t, store.ListFor(employee, timeoff.PerspectiveSent), 1)
}

func TestStore_Create_RejectsInvertedRange(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Create(context.Background(), employee, timeoff.Request{
		Kind:  timeoff.KindHoliday,
		Start: generic.MustParseDate("2025-04-14"),
		End:   generic.MustParseDate("2025-04-10"),
	})

	assert.ErrorIs(t, err, timeoff.ErrInvalidRecord)
}

func TestStore_Delete(t *testing.T) {
	t.Run("owner may delete", func(t *testing.T) {
		store, repo := loadedStore(t)
		repo.EXPECT().DeleteRequest(mock.Anything, "10").Return(nil).Once()
		repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{
			holidayRecord(11, 1, "2025-01-09", ""),
		}, nil).Once()

		require.NoError(t, store.Delete(context.Background(), employee, "10"))

		_, ok := store.Get("10")
		assert.False(t, ok)
	})

	t.Run("other employee may not", func(t *testing.T) {
		store, repo := loadedStore(t)

		err := store.Delete(context.Background(), other, "10")

		assert.ErrorIs(t, err, timeoff.ErrUnauthorized)
		repo.AssertNotCalled(t, "DeleteRequest", mock.Anything, mock.Anything)
	})

	t.Run("admin may delete any", func(t *testing.T) {
		store, repo := loadedStore(t)
		repo.EXPECT().DeleteRequest(mock.Anything, "12").Return(nil).Once()
		repo.EXPECT().FetchRequests(mock.Anything, "").Return([]timeoff.RawRecord{}, nil).Once()

		require.NoError(t, store.Delete(context.Background(), admin, "12"))
	})
}
