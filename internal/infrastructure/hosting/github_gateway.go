package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
)

// Config identifies the content repository and credentials.
type Config struct {
	Token         string
	Owner         string
	Repo          string
	DefaultBranch string
	APIBaseURL    string // empty means api.github.com
	Timeout       time.Duration
}

// GitHubGateway implements ports.HostingGateway against the GitHub REST API.
// Every method is a single API call; nothing is retried.
type GitHubGateway struct {
	client        *github.Client
	owner         string
	repo          string
	defaultBranch string
	logger        *logrus.Logger
}

var _ ports.HostingGateway = (*GitHubGateway)(nil)

func NewGitHubGateway(cfg Config, logger *logrus.Logger) (*GitHubGateway, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New("hosting owner and repo are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := github.NewClient(&http.Client{Timeout: timeout})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse hosting api url: %w", err)
		}
		client.BaseURL = u
	}
	branch := cfg.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	return &GitHubGateway{client: client, owner: cfg.Owner, repo: cfg.Repo, defaultBranch: branch, logger: logger}, nil
}

func (g *GitHubGateway) DefaultBranch() string {
	return g.defaultBranch
}

func (g *GitHubGateway) GetDefaultBranchHead(ctx context.Context) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+g.defaultBranch)
	if err != nil {
		return "", fmt.Errorf("get ref %s: %w", g.defaultBranch, err)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("ref %s has no commit", g.defaultBranch)
	}
	return sha, nil
}

func (g *GitHubGateway) CreateBranch(ctx context.Context, name, fromSHA string) error {
	_, resp, err := g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.Ptr(fromSHA)},
	})
	if err != nil {
		if statusOf(resp) == http.StatusUnprocessableEntity {
			return fmt.Errorf("create branch %s: %w", name, ports.ErrBranchExists)
		}
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	g.debug(logrus.Fields{"branch": name, "from": fromSHA}, "hosting: branch created")
	return nil
}

func (g *GitHubGateway) GetFileRevision(ctx context.Context, path, branch string) (string, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return "", ports.ErrFileNotFound
		}
		return "", fmt.Errorf("get contents %s: %w", path, err)
	}
	if file == nil {
		return "", fmt.Errorf("get contents %s: path is a directory", path)
	}
	return file.GetSHA(), nil
}

func (g *GitHubGateway) CommitFile(ctx context.Context, req *ports.CommitFileRequest) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(req.Message),
		Content: req.Content,
		Branch:  github.Ptr(req.Branch),
	}

	var (
		resp *github.Response
		err  error
	)
	if req.ExpectedRevision != "" {
		opts.SHA = github.Ptr(req.ExpectedRevision)
		_, resp, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, req.Path, opts)
	} else {
		_, resp, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, req.Path, opts)
	}
	if err != nil {
		switch statusOf(resp) {
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("commit %s: %w", req.Path, ports.ErrRevisionMismatch)
		}
		return fmt.Errorf("commit %s: %w", req.Path, err)
	}
	g.debug(logrus.Fields{"branch": req.Branch, "path": req.Path, "update": req.ExpectedRevision != ""}, "hosting: file committed")
	return nil
}

func (g *GitHubGateway) OpenPullRequest(ctx context.Context, title, body, head, base string) (*ports.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title:               github.Ptr(title),
		Body:                github.Ptr(body),
		Head:                github.Ptr(head),
		Base:                github.Ptr(base),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("open pull request from %s: %w", head, err)
	}
	return &ports.PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

func (g *GitHubGateway) AddLabels(ctx context.Context, number int, labels []string) error {
	if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, g.owner, g.repo, number, labels); err != nil {
		return fmt.Errorf("add labels to #%d: %w", number, err)
	}
	return nil
}

func (g *GitHubGateway) debug(fields logrus.Fields, msg string) {
	if g.logger != nil {
		g.logger.WithFields(fields).Debug(msg)
	}
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
