package ports

import (
	"context"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
)

// ContributionService turns a verified anonymous edit into a pull request.
type ContributionService interface {
	Submit(ctx context.Context, req *contribution.Request, client contribution.ClientInfo) (*contribution.Result, error)
}
