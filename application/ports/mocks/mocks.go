// Package mocks provides test doubles for the application ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
	"artion-backend/domain/events"
)

// MockBundleService is a testify mock of ports.BundleService
type MockBundleService struct {
	mock.Mock
}

func (m *MockBundleService) CreateBundle(ctx context.Context, req ports.CreateBundleRequest, authToken string) (string, error) {
	args := m.Called(ctx, req, authToken)
	return args.String(0), args.Error(1)
}

func (m *MockBundleService) DeleteBundle(ctx context.Context, bundleID string, authToken string) error {
	args := m.Called(ctx, bundleID, authToken)
	return args.Error(0)
}

// MockEventPublisher is a testify mock of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// MockOrphanStore is a testify mock of ports.OrphanStore
type MockOrphanStore struct {
	mock.Mock
}

func (m *MockOrphanStore) Record(ctx context.Context, orphan entities.OrphanedBundle) error {
	args := m.Called(ctx, orphan)
	return args.Error(0)
}

func (m *MockOrphanStore) ListOpen(ctx context.Context) ([]entities.OrphanedBundle, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]entities.OrphanedBundle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrphanStore) Resolve(ctx context.Context, bundleID string) error {
	args := m.Called(ctx, bundleID)
	return args.Error(0)
}
