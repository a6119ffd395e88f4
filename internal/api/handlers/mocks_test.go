package handlers

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/services"
)

type MockProvisionService struct {
	mock.Mock
}

func (m *MockProvisionService) Provision(ctx context.Context, opts services.ProvisionOptions) (*models.ProvisionResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProvisionResult), args.Error(1)
}

type MockRelayService struct {
	mock.Mock
}

func (m *MockRelayService) Fetch(ctx context.Context, sandboxURL string) (json.RawMessage, error) {
	args := m.Called(ctx, sandboxURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

var (
	_ services.IProvisionService = (*MockProvisionService)(nil)
	_ services.IRelayService     = (*MockRelayService)(nil)
)
