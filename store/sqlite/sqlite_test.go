package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/store/sqlite"
	"github.com/warp/absence-engine/timeoff"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := newTestStore(t)
	require.NoError(t, store.SeedDemo(context.Background()))
	return store
}

func TestSQLite_SeedDemoIsIdempotent(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedDemo(ctx))

	records, err := store.FetchRequests(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 4)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestSQLite_RecordsAreSnakeCase(t *testing.T) {
	// GIVEN: The demo database
	// WHEN: Its records go through the default normalizer
	// THEN: Every record normalizes, with ids unique across tables

	store := seededStore(t)
	records, err := store.FetchRequests(context.Background(), "")
	require.NoError(t, err)

	requests, errs := timeoff.NewNormalizer(timeoff.DefaultStatusTable()).NormalizeAll(records)
	assert.Empty(t, errs)
	require.Len(t, requests, 4)

	ids := make(map[string]bool)
	for _, r := range requests {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
		assert.Equal(t, timeoff.StatusPending, r.Status)
	}

	assert.Equal(t, timeoff.KindHoliday, requests[0].Kind)
	assert.Equal(t, timeoff.KindSickLeave, requests[2].Kind)
	assert.Equal(t, "XYZ-123", requests[2].SickLeave.Certificate)
	assert.Equal(t, timeoff.KindOvertime, requests[3].Kind)
	assert.Equal(t, "2", requests[3].OvertimeHours().String())
}

func TestSQLite_FetchFiltersByOwner(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	mine, err := store.FetchRequests(ctx, "2")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, r := range mine {
		assert.EqualValues(t, 2, r["id_utente"])
	}

	none, err := store.FetchRequests(ctx, "404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_MutateStatus(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	require.NoError(t, store.MutateStatus(ctx, "3", timeoff.StatusApproved))

	records, err := store.FetchRequests(ctx, "1")
	require.NoError(t, err)
	var found bool
	for _, r := range records {
		if r["id_malattia"] != nil {
			found = true
			assert.Equal(t, "validato", r["stato_approvazione"])
		}
	}
	assert.True(t, found)

	assert.ErrorIs(t, store.MutateStatus(ctx, "404", timeoff.StatusRejected), timeoff.ErrRequestNotFound)
}

func TestSQLite_MutateStatusUsesLabels(t *testing.T) {
	store, err := sqlite.New(":memory:", sqlite.WithLabels(timeoff.StatusLabels{timeoff.StatusRejected: "Rifiutata"}))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, timeoff.User{ID: "2", Name: "Giulia"}))
	id, err := store.CreateRequest(ctx, timeoff.Request{
		OwnerID: "2", Kind: timeoff.KindHoliday,
		Start: generic.MustParseDate("2025-06-02"), End: generic.MustParseDate("2025-06-03"),
	})
	require.NoError(t, err)
	require.NoError(t, store.MutateStatus(ctx, id, timeoff.StatusRejected))

	records, err := store.FetchRequests(ctx, "2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rifiutata", records[0]["stato_approvazione"])
}

func TestSQLite_CreateRequest(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	id, err := store.CreateRequest(ctx, timeoff.Request{
		OwnerID: "2",
		Kind:    timeoff.KindOvertime,
		Start:   generic.MustParseDate("2025-05-06"),
		End:     generic.MustParseDate("2025-05-06"),
		Note:    "release",
		Overtime: &timeoff.OvertimeDetail{
			StartAt: time.Date(2025, time.May, 6, 18, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2025, time.May, 6, 19, 30, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "5", id, "ids continue the shared sequence")

	records, err := store.FetchRequests(ctx, "2")
	require.NoError(t, err)
	requests, errs := timeoff.NewNormalizer(timeoff.DefaultStatusTable()).NormalizeAll(records)
	require.Empty(t, errs)

	var created *timeoff.Request
	for i := range requests {
		if requests[i].ID == id {
			created = &requests[i]
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "release", created.Note)
	assert.Equal(t, "1.5", created.OvertimeHours().String())
}

func TestSQLite_CreateRejectsUnknownOwner(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateRequest(context.Background(), timeoff.Request{
		OwnerID: "99", Kind: timeoff.KindHoliday,
		Start: generic.MustParseDate("2025-06-02"), End: generic.MustParseDate("2025-06-02"),
	})

	assert.Error(t, err, "foreign keys are enforced")
}

func TestSQLite_CreateRejectsKindWithoutTable(t *testing.T) {
	store := seededStore(t)

	_, err := store.CreateRequest(context.Background(), timeoff.Request{
		OwnerID: "1", Kind: timeoff.KindMourningPermit,
		Start: generic.MustParseDate("2025-06-02"), End: generic.MustParseDate("2025-06-02"),
	})

	assert.ErrorIs(t, err, timeoff.ErrUnsupportedKind)
}

func TestSQLite_DeleteRequest(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	require.NoError(t, store.DeleteRequest(ctx, "2"))

	records, err := store.FetchRequests(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.ErrorIs(t, store.DeleteRequest(ctx, "2"), timeoff.ErrRequestNotFound)
	assert.ErrorIs(t, store.MutateStatus(ctx, "2", timeoff.StatusApproved), timeoff.ErrRequestNotFound)
}

func TestSQLite_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, timeoff.User{ID: "5", Name: "Luca", Surname: "Bianchi", Role: timeoff.RoleExternal}))

	u, err := store.GetUser(ctx, "5")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Luca Bianchi", u.DisplayName())
	assert.Equal(t, timeoff.RoleExternal, u.Role)
	assert.Empty(t, u.Email)

	// Upsert
	require.NoError(t, store.SaveUser(ctx, timeoff.User{ID: "5", Name: "Luca", Surname: "Bianchi", Role: timeoff.RoleAdmin}))
	u, err = store.GetUser(ctx, "5")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())

	missing, err := store.GetUser(ctx, "6")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_Holidays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{Date: generic.MustParseDate("2025-12-26"), Name: "Santo Stefano", Recurring: true}))
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{Date: generic.MustParseDate("2025-06-29"), Name: "San Pietro"}))
	// Same date and name updates in place
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{Date: generic.MustParseDate("2025-06-29"), Name: "San Pietro", Recurring: true}))

	holidays, err := store.Holidays(ctx)
	require.NoError(t, err)
	require.Len(t, holidays, 2)
	assert.Equal(t, "2025-06-29", holidays[0].Date.String())
	assert.True(t, holidays[0].Recurring)
	assert.True(t, generic.NewHolidaySet(holidays...).IsHoliday(generic.MustParseDate("2030-12-26")))
}

func TestSQLite_WorkflowEndToEnd(t *testing.T) {
	// GIVEN: The demo database behind a request store
	// WHEN: An employee files a holiday and the admin rejects it
	// THEN: The employee sees it rejected after a reload

	db := seededStore(t)
	ctx := context.Background()
	admin, err := db.GetUser(ctx, "1")
	require.NoError(t, err)
	employee, err := db.GetUser(ctx, "2")
	require.NoError(t, err)

	adminView := timeoff.NewStore(db, db, nil, zap.NewNop())
	require.NoError(t, adminView.Load(ctx, *admin))

	employeeView := timeoff.NewStore(db, db, nil, zap.NewNop())
	id, err := employeeView.Create(ctx, *employee, timeoff.Request{
		Kind:  timeoff.KindHoliday,
		Start: generic.MustParseDate("2025-07-07"),
		End:   generic.MustParseDate("2025-07-09"),
	})
	require.NoError(t, err)

	require.NoError(t, adminView.Refresh(ctx))
	require.NoError(t, adminView.Reject(ctx, *admin, id))

	require.NoError(t, employeeView.Load(ctx, *employee))
	req, ok := employeeView.Get(id)
	require.True(t, ok)
	assert.Equal(t, timeoff.StatusRejected, req.Status)
	assert.Equal(t, "Giulia Verdi", req.RequesterName)
}
