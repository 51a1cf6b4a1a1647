// Package mocks provides test doubles for the overpass client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	"github.com/sells-group/foodmap-cli/internal/geospatial"
	overpass "github.com/sells-group/foodmap-cli/pkg/overpass"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Query provides a mock function with given fields: ctx, bbox, filters, kinds
func (_m *MockClient) Query(ctx context.Context, bbox geospatial.BBox, filters []overpass.Filter, kinds []overpass.Kind) ([]overpass.Element, error) {
	ret := _m.Called(ctx, bbox, filters, kinds)

	if len(ret) == 0 {
		panic("no return value specified for Query")
	}

	var r0 []overpass.Element
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, geospatial.BBox, []overpass.Filter, []overpass.Kind) ([]overpass.Element, error)); ok {
		return rf(ctx, bbox, filters, kinds)
	}
	if rf, ok := ret.Get(0).(func(context.Context, geospatial.BBox, []overpass.Filter, []overpass.Kind) []overpass.Element); ok {
		r0 = rf(ctx, bbox, filters, kinds)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]overpass.Element)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, geospatial.BBox, []overpass.Filter, []overpass.Kind) error); ok {
		r1 = rf(ctx, bbox, filters, kinds)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
