package services

import (
	"context"
	"encoding/json"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
)

type IProvisionService interface {
	Provision(ctx context.Context, opts ProvisionOptions) (*models.ProvisionResult, error)
}

type IRelayService interface {
	Fetch(ctx context.Context, sandboxURL string) (json.RawMessage, error)
}
