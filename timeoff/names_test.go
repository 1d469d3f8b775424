package timeoff_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-engine/timeoff"
	"github.com/warp/absence-engine/timeoff/mocks"
	"go.uber.org/zap"
)

func TestResolveNames_DistinctIDsLookedUpOnce(t *testing.T) {
	users := mocks.NewUserLookup(t)
	users.EXPECT().GetUser(mock.Anything, "1").Return(&timeoff.User{ID: "1", Name: "Anna", Surname: "Bianchi"}, nil).Once()
	users.EXPECT().GetUser(mock.Anything, "2").Return(&timeoff.User{ID: "2", Name: "Luca", Surname: "Verdi"}, nil).Once()

	requests := []timeoff.Request{
		{ID: "a", OwnerID: "1"},
		{ID: "b", OwnerID: "2"},
		{ID: "c", OwnerID: "1"},
	}

	out := timeoff.ResolveNames(context.Background(), users, requests, zap.NewNop())

	require.Len(t, out, 3)
	assert.Equal(t, "Anna Bianchi", out[0].RequesterName)
	assert.Equal(t, "Luca Verdi", out[1].RequesterName)
	assert.Equal(t, "Anna Bianchi", out[2].RequesterName)
	assert.Empty(t, requests[0].RequesterName, "input slice is not modified")
}

func TestResolveNames_UnresolvedLeavesNameEmpty(t *testing.T) {
	// GIVEN: One owner is unknown and another lookup fails
	// WHEN: Resolving names
	// THEN: Both keep an empty name and nothing is returned as an error

	users := mocks.NewUserLookup(t)
	users.EXPECT().GetUser(mock.Anything, "1").Return(nil, nil)
	users.EXPECT().GetUser(mock.Anything, "2").Return(nil, errors.New("connection reset"))
	users.EXPECT().GetUser(mock.Anything, "3").Return(&timeoff.User{ID: "3", Name: "Sara"}, nil)

	out := timeoff.ResolveNames(context.Background(), users, []timeoff.Request{
		{ID: "a", OwnerID: "1"}, {ID: "b", OwnerID: "2"}, {ID: "c", OwnerID: "3"},
	}, zap.NewNop())

	assert.Empty(t, out[0].RequesterName)
	assert.Empty(t, out[1].RequesterName)
	assert.Equal(t, "Sara", out[2].RequesterName)
}

func TestResolveNames_NilLookup(t *testing.T) {
	in := []timeoff.Request{{ID: "a", OwnerID: "1"}}
	out := timeoff.ResolveNames(context.Background(), nil, in, nil)
	assert.Equal(t, in, out)
}

// =============================================================================
// CACHED USERS
// =============================================================================

func TestCachedUsers_CachesHitsAndMisses(t *testing.T) {
	var calls atomic.Int32
	next := timeoff.UserLookupFunc(func(_ context.Context, id string) (*timeoff.User, error) {
		calls.Add(1)
		if id == "7" {
			return &timeoff.User{ID: "7", Name: "Paolo"}, nil
		}
		return nil, nil
	})
	cached := timeoff.NewCachedUsers(next, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := cached.GetUser(ctx, "7")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "Paolo", u.Name)

		missing, err := cached.GetUser(ctx, "99")
		require.NoError(t, err)
		assert.Nil(t, missing)
	}
	assert.Equal(t, int32(2), calls.Load())

	cached.Forget("7")
	_, err := cached.GetUser(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCachedUsers_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	next := timeoff.UserLookupFunc(func(_ context.Context, id string) (*timeoff.User, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return &timeoff.User{ID: id}, nil
	})
	cached := timeoff.NewCachedUsers(next, time.Minute)

	_, err := cached.GetUser(context.Background(), "7")
	require.Error(t, err)

	u, err := cached.GetUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", u.ID)
}

func TestCachedUsers_ReturnsCopies(t *testing.T) {
	next := timeoff.UserLookupFunc(func(_ context.Context, id string) (*timeoff.User, error) {
		return &timeoff.User{ID: id, Role: timeoff.RoleEmployee}, nil
	})
	cached := timeoff.NewCachedUsers(next, time.Minute)

	u, _ := cached.GetUser(context.Background(), "7")
	u.Role = timeoff.RoleAdmin

	again, _ := cached.GetUser(context.Background(), "7")
	assert.Equal(t, timeoff.RoleEmployee, again.Role)
}
