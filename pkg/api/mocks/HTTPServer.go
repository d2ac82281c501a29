package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// HTTPServer is a mock type for the api.HTTPServer type.
type HTTPServer struct {
	mock.Mock
}

// ListenAndServe provides a mock function with given fields:.
func (_m *HTTPServer) ListenAndServe() error {
	ret := _m.Called()

	var result0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		result0 = rf()
	} else {
		result0 = ret.Error(0)
	}

	return result0
}

// Shutdown provides a mock function with given fields: ctx.
func (_m *HTTPServer) Shutdown(ctx context.Context) error {
	ret := _m.Called(ctx)

	var result0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		result0 = rf(ctx)
	} else {
		result0 = ret.Error(0)
	}

	return result0
}
