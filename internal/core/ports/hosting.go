package ports

import (
	"context"
	"errors"
)

var (
	ErrBranchExists     = errors.New("branch already exists")
	ErrFileNotFound     = errors.New("file not found")
	ErrRevisionMismatch = errors.New("file revision mismatch")
)

// PullRequest identifies an opened pull request.
type PullRequest struct {
	Number int
	URL    string
}

// CommitFileRequest describes a single-file write. ExpectedRevision is empty
// for new files and must match the current revision otherwise.
type CommitFileRequest struct {
	Branch           string
	Path             string
	Content          []byte
	Message          string
	ExpectedRevision string
}

// HostingGateway is the version-control hosting API the pipeline writes to.
// The repository is fixed per gateway instance.
type HostingGateway interface {
	DefaultBranch() string
	GetDefaultBranchHead(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name, fromSHA string) error
	// GetFileRevision returns ErrFileNotFound when path does not exist on branch.
	GetFileRevision(ctx context.Context, path, branch string) (string, error)
	CommitFile(ctx context.Context, req *CommitFileRequest) error
	OpenPullRequest(ctx context.Context, title, body, head, base string) (*PullRequest, error)
	AddLabels(ctx context.Context, number int, labels []string) error
}
