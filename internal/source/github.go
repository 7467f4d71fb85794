package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/config"
	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/service"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

const (
	checksumHeader = "X-Checksum-Sha256"
	maxContentSize = 16 << 20
)

var log = logger.Named("source")

// GitHub implements Repository against the GitHub REST and GraphQL APIs and
// raw-content hosts.
type GitHub struct {
	client          service.HTTPClient
	owner           string
	repo            string
	branch          string
	apiBase         string
	rawBase         string
	token           string
	metadataTimeout time.Duration
	downloadTimeout time.Duration
}

func NewGitHub(cfg *config.Config, client service.HTTPClient) *GitHub {
	if client == nil {
		client = service.NewHTTPClient(30 * time.Second)
	}
	return &GitHub{
		client:          client,
		owner:           cfg.Repository.Owner,
		repo:            cfg.Repository.Name,
		branch:          cfg.Repository.Branch,
		apiBase:         strings.TrimRight(cfg.Repository.APIBaseURL, "/"),
		rawBase:         strings.TrimRight(cfg.Repository.RawBaseURL, "/"),
		token:           cfg.Token(),
		metadataTimeout: cfg.Timeouts.Metadata,
		downloadTimeout: cfg.Timeouts.Download,
	}
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

func (g *GitHub) LatestRevision(ctx context.Context, validator string) (LatestResult, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/commits/%s", g.apiBase, g.owner, g.repo, url.PathEscape(g.branch))

	res, err := service.Fetch(ctx, g.client, service.Request{
		URL:     u,
		ETag:    validator,
		Header:  g.apiHeaders(),
		Timeout: g.metadataTimeout,
	})
	if err != nil {
		return LatestResult{}, fmt.Errorf("latest revision: %w: %w", errs.ErrTransientNetwork, err)
	}

	switch {
	case res.Status == http.StatusNotModified:
		return LatestResult{Status: StatusNotModified}, nil
	case isRateLimited(res):
		log.Debug("latest revision: rate limited (status %d)", res.Status)
		return LatestResult{Status: StatusRateLimited}, nil
	case res.Status != http.StatusOK:
		return LatestResult{}, statusError("latest revision", res.Status)
	}

	var body commitResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return LatestResult{}, fmt.Errorf("latest revision: %w: %v", errs.ErrParse, err)
	}
	if body.SHA == "" {
		return LatestResult{}, fmt.Errorf("latest revision: %w: empty sha", errs.ErrParse)
	}

	return LatestResult{
		Status:    StatusModified,
		Revision:  RevisionRef{ID: body.SHA, Timestamp: body.Commit.Committer.Date},
		Validator: res.ETag,
	}, nil
}

type compareResponse struct {
	Files []struct {
		Filename         string `json:"filename"`
		PreviousFilename string `json:"previous_filename"`
		Status           string `json:"status"`
	} `json:"files"`
	Commits []struct {
		Commit struct {
			Message string `json:"message"`
		} `json:"commit"`
	} `json:"commits"`
}

func (g *GitHub) Compare(ctx context.Context, oldRev, newRev string) (Comparison, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/compare/%s...%s", g.apiBase, g.owner, g.repo, oldRev, newRev)

	res, err := service.Fetch(ctx, g.client, service.Request{
		URL:     u,
		Header:  g.apiHeaders(),
		Timeout: g.metadataTimeout,
	})
	if err != nil {
		return Comparison{}, fmt.Errorf("compare: %w: %w", errs.ErrTransientNetwork, err)
	}
	if isRateLimited(res) {
		return Comparison{}, fmt.Errorf("compare: %w", errs.ErrRateLimited)
	}
	if res.Status != http.StatusOK {
		return Comparison{}, statusError("compare", res.Status)
	}

	var body compareResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return Comparison{}, fmt.Errorf("compare: %w: %v", errs.ErrParse, err)
	}

	cmp := Comparison{
		ChangedPaths:   make([]string, 0, len(body.Files)),
		CommitMessages: make([]string, 0, len(body.Commits)),
	}
	present := make(map[string]bool, len(body.Files))
	for _, f := range body.Files {
		if f.Status != "removed" {
			present[f.Filename] = true
		}
	}
	for _, f := range body.Files {
		cmp.ChangedPaths = append(cmp.ChangedPaths, f.Filename)
		switch {
		case f.Status == "removed":
			cmp.RemovedPaths = append(cmp.RemovedPaths, f.Filename)
		case f.Status == "renamed" && f.PreviousFilename != "" && !present[f.PreviousFilename]:
			// the old name is gone unless another entry recreated it
			cmp.ChangedPaths = append(cmp.ChangedPaths, f.PreviousFilename)
			cmp.RemovedPaths = append(cmp.RemovedPaths, f.PreviousFilename)
		}
	}
	for _, c := range body.Commits {
		cmp.CommitMessages = append(cmp.CommitMessages, c.Commit.Message)
	}
	return cmp, nil
}

const blobQuery = `query($owner: String!, $name: String!, $expr: String!) {
  repository(owner: $owner, name: $name) {
    object(expression: $expr) { ... on Blob { text } }
  }
}`

type graphQLResponse struct {
	Data struct {
		Repository struct {
			Object *struct {
				Text string `json:"text"`
			} `json:"object"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ContentViaQuery reads path at revision with one GraphQL query. The API
// requires authentication, so without a token the strategy is unavailable.
func (g *GitHub) ContentViaQuery(ctx context.Context, revision, path string) ([]byte, error) {
	if g.token == "" {
		return nil, fmt.Errorf("graphql content: %w: no token configured", errs.ErrUnavailable)
	}

	payload, err := json.Marshal(map[string]any{
		"query": blobQuery,
		"variables": map[string]string{
			"owner": g.owner,
			"name":  g.repo,
			"expr":  revision + ":" + path,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("graphql content: %w", err)
	}

	headers := g.apiHeaders()
	headers["Content-Type"] = "application/json"
	res, err := service.Fetch(ctx, g.client, service.Request{
		Method:   http.MethodPost,
		URL:      g.apiBase + "/graphql",
		Header:   headers,
		Body:     bytes.NewReader(payload),
		Timeout:  g.metadataTimeout,
		MaxBytes: maxContentSize,
	})
	if err != nil {
		return nil, fmt.Errorf("graphql content: %w: %w", errs.ErrTransientNetwork, err)
	}
	if isRateLimited(res) {
		return nil, fmt.Errorf("graphql content: %w", errs.ErrRateLimited)
	}
	if res.Status != http.StatusOK {
		return nil, statusError("graphql content", res.Status)
	}

	var body graphQLResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("graphql content: %w: %v", errs.ErrParse, err)
	}
	if len(body.Errors) > 0 {
		return nil, fmt.Errorf("graphql content: %s", body.Errors[0].Message)
	}
	if body.Data.Repository.Object == nil {
		return nil, fmt.Errorf("graphql content: %s not found at %s", path, revision)
	}
	return []byte(body.Data.Repository.Object.Text), nil
}

func (g *GitHub) RawContent(ctx context.Context, revision, path string) ([]byte, error) {
	return g.raw(ctx, "raw content", revision, path, g.metadataTimeout)
}

func (g *GitHub) CurrentContent(ctx context.Context, path string) ([]byte, error) {
	return g.raw(ctx, "current content", g.branch, path, g.downloadTimeout)
}

// FetchFromProvider expands a mirror template and downloads path from it.
// When the mirror advertises a SHA-256 the payload is verified against it.
func (g *GitHub) FetchFromProvider(ctx context.Context, template, revision, path string) ([]byte, error) {
	u := utils.ExpandTemplate(template, map[string]string{
		"owner": g.owner,
		"repo":  g.repo,
		"ref":   revision,
		"path":  path,
	})

	res, err := service.Fetch(ctx, g.client, service.Request{
		URL:      u,
		Timeout:  g.downloadTimeout,
		MaxBytes: maxContentSize,
	})
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w: %w", u, errs.ErrTransientNetwork, err)
	}
	if res.Status != http.StatusOK {
		return nil, statusError("provider "+u, res.Status)
	}
	if sum := res.Header.Get(checksumHeader); sum != "" {
		if err := utils.VerifySHA256(res.Body, sum); err != nil {
			return nil, fmt.Errorf("provider %s: %w", u, err)
		}
	}
	return res.Body, nil
}

// --- internals ---

func (g *GitHub) raw(ctx context.Context, op, ref, path string, timeout time.Duration) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/%s", g.rawBase, g.owner, g.repo, ref, strings.TrimLeft(path, "/"))

	res, err := service.Fetch(ctx, g.client, service.Request{
		URL:      u,
		Timeout:  timeout,
		MaxBytes: maxContentSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrTransientNetwork, err)
	}
	if isRateLimited(res) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrRateLimited)
	}
	if res.Status != http.StatusOK {
		return nil, statusError(op, res.Status)
	}
	return res.Body, nil
}

func (g *GitHub) apiHeaders() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if g.token != "" {
		h["Authorization"] = "Bearer " + g.token
	}
	return h
}

func isRateLimited(res service.FetchResult) bool {
	if res.Status == http.StatusTooManyRequests {
		return true
	}
	return res.Status == http.StatusForbidden && res.Header.Get("X-RateLimit-Remaining") == "0"
}

func statusError(op string, status int) error {
	if status >= 500 {
		return fmt.Errorf("%s: %w: status %d", op, errs.ErrTransientNetwork, status)
	}
	return fmt.Errorf("%s: unexpected status %d", op, status)
}
