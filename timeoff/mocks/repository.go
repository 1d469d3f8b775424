package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/warp/absence-engine/timeoff"
)

// Repository is a manual mock type for the timeoff.Repository interface
type Repository struct {
	mock.Mock
}

var _ timeoff.Repository = (*Repository)(nil)

type Repository_Expecter struct {
	mock *mock.Mock
}

func (_m *Repository) EXPECT() *Repository_Expecter {
	return &Repository_Expecter{mock: &_m.Mock}
}

// FetchRequests provides a mock function with given fields: ctx, ownerID
func (_m *Repository) FetchRequests(ctx context.Context, ownerID string) ([]timeoff.RawRecord, error) {
	ret := _m.Called(ctx, ownerID)

	if len(ret) == 0 {
		panic("no return value specified for FetchRequests")
	}

	var r0 []timeoff.RawRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]timeoff.RawRecord, error)); ok {
		return rf(ctx, ownerID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []timeoff.RawRecord); ok {
		r0 = rf(ctx, ownerID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]timeoff.RawRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, ownerID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Repository_FetchRequests_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'FetchRequests'
type Repository_FetchRequests_Call struct {
	*mock.Call
}

// FetchRequests is a helper method to define mock.On call
//   - ctx context.Context
//   - ownerID string
func (_e *Repository_Expecter) FetchRequests(ctx interface{}, ownerID interface{}) *Repository_FetchRequests_Call {
	return &Repository_FetchRequests_Call{Call: _e.mock.On("FetchRequests", ctx, ownerID)}
}

func (_c *Repository_FetchRequests_Call) Run(run func(ctx context.Context, ownerID string)) *Repository_FetchRequests_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *Repository_FetchRequests_Call) Return(_a0 []timeoff.RawRecord, _a1 error) *Repository_FetchRequests_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *Repository_FetchRequests_Call) RunAndReturn(run func(context.Context, string) ([]timeoff.RawRecord, error)) *Repository_FetchRequests_Call {
	_c.Call.Return(run)
	return _c
}

// MutateStatus provides a mock function with given fields: ctx, requestID, status
func (_m *Repository) MutateStatus(ctx context.Context, requestID string, status timeoff.Status) error {
	ret := _m.Called(ctx, requestID, status)

	if len(ret) == 0 {
		panic("no return value specified for MutateStatus")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, timeoff.Status) error); ok {
		r0 = rf(ctx, requestID, status)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Repository_MutateStatus_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'MutateStatus'
type Repository_MutateStatus_Call struct {
	*mock.Call
}

// MutateStatus is a helper method to define mock.On call
//   - ctx context.Context
//   - requestID string
//   - status timeoff.Status
func (_e *Repository_Expecter) MutateStatus(ctx interface{}, requestID interface{}, status interface{}) *Repository_MutateStatus_Call {
	return &Repository_MutateStatus_Call{Call: _e.mock.On("MutateStatus", ctx, requestID, status)}
}

func (_c *Repository_MutateStatus_Call) Run(run func(ctx context.Context, requestID string, status timeoff.Status)) *Repository_MutateStatus_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string), args[2].(timeoff.Status))
	})
	return _c
}

func (_c *Repository_MutateStatus_Call) Return(_a0 error) *Repository_MutateStatus_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *Repository_MutateStatus_Call) RunAndReturn(run func(context.Context, string, timeoff.Status) error) *Repository_MutateStatus_Call {
	_c.Call.Return(run)
	return _c
}

// CreateRequest provides a mock function with given fields: ctx, req
func (_m *Repository) CreateRequest(ctx context.Context, req timeoff.Request) (string, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for CreateRequest")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, timeoff.Request) (string, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, timeoff.Request) string); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.Get(0).(string)
	}

	if rf, ok := ret.Get(1).(func(context.Context, timeoff.Request) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Repository_CreateRequest_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'CreateRequest'
type Repository_CreateRequest_Call struct {
	*mock.Call
}

// CreateRequest is a helper method to define mock.On call
//   - ctx context.Context
//   - req timeoff.Request
func (_e *Repository_Expecter) CreateRequest(ctx interface{}, req interface{}) *Repository_CreateRequest_Call {
	return &Repository_CreateRequest_Call{Call: _e.mock.On("CreateRequest", ctx, req)}
}

func (_c *Repository_CreateRequest_Call) Run(run func(ctx context.Context, req timeoff.Request)) *Repository_CreateRequest_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(timeoff.Request))
	})
	return _c
}

func (_c *Repository_CreateRequest_Call) Return(_a0 string, _a1 error) *Repository_CreateRequest_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *Repository_CreateRequest_Call) RunAndReturn(run func(context.Context, timeoff.Request) (string, error)) *Repository_CreateRequest_Call {
	_c.Call.Return(run)
	return _c
}

// DeleteRequest provides a mock function with given fields: ctx, requestID
func (_m *Repository) DeleteRequest(ctx context.Context, requestID string) error {
	ret := _m.Called(ctx, requestID)

	if len(ret) == 0 {
		panic("no return value specified for DeleteRequest")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, requestID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Repository_DeleteRequest_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'DeleteRequest'
type Repository_DeleteRequest_Call struct {
	*mock.Call
}

// DeleteRequest is a helper method to define mock.On call
//   - ctx context.Context
//   - requestID string
func (_e *Repository_Expecter) DeleteRequest(ctx interface{}, requestID interface{}) *Repository_DeleteRequest_Call {
	return &Repository_DeleteRequest_Call{Call: _e.mock.On("DeleteRequest", ctx, requestID)}
}

func (_c *Repository_DeleteRequest_Call) Run(run func(ctx context.Context, requestID string)) *Repository_DeleteRequest_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *Repository_DeleteRequest_Call) Return(_a0 error) *Repository_DeleteRequest_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *Repository_DeleteRequest_Call) RunAndReturn(run func(context.Context, string) error) *Repository_DeleteRequest_Call {
	_c.Call.Return(run)
	return _c
}

// NewRepository creates a new instance of Repository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *Repository {
	m := &Repository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
