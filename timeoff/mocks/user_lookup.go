package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/warp/absence-engine/timeoff"
)

// UserLookup is a manual mock type for the timeoff.UserLookup interface
type UserLookup struct {
	mock.Mock
}

var _ timeoff.UserLookup = (*UserLookup)(nil)

type UserLookup_Expecter struct {
	mock *mock.Mock
}

func (_m *UserLookup) EXPECT() *UserLookup_Expecter {
	return &UserLookup_Expecter{mock: &_m.Mock}
}

// GetUser provides a mock function with given fields: ctx, id
func (_m *UserLookup) GetUser(ctx context.Context, id string) (*timeoff.User, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetUser")
	}

	var r0 *timeoff.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*timeoff.User, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *timeoff.User); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*timeoff.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UserLookup_GetUser_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'GetUser'
type UserLookup_GetUser_Call struct {
	*mock.Call
}

// GetUser is a helper method to define mock.On call
//   - ctx context.Context
//   - id string
func (_e *UserLookup_Expecter) GetUser(ctx interface{}, id interface{}) *UserLookup_GetUser_Call {
	return &UserLookup_GetUser_Call{Call: _e.mock.On("GetUser", ctx, id)}
}

func (_c *UserLookup_GetUser_Call) Run(run func(ctx context.Context, id string)) *UserLookup_GetUser_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *UserLookup_GetUser_Call) Return(_a0 *timeoff.User, _a1 error) *UserLookup_GetUser_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *UserLookup_GetUser_Call) RunAndReturn(run func(context.Context, string) (*timeoff.User, error)) *UserLookup_GetUser_Call {
	_c.Call.Return(run)
	return _c
}

// NewUserLookup creates a new instance of UserLookup. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewUserLookup(t interface {
	mock.TestingT
	Cleanup(func())
}) *UserLookup {
	m := &UserLookup{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
