// service/httpclient.go
package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type DefaultHTTPClient struct{ *http.Client }

func NewHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{Client: &http.Client{Timeout: timeout}}
}

// FetchResult is a fully-read response. Body is nil for 304 and error statuses.
type FetchResult struct {
	Status int
	ETag   string
	Header http.Header
	Body   []byte
}

type Request struct {
	Method   string
	URL      string
	ETag     string // sent as If-None-Match when non-empty
	Header   map[string]string
	Body     io.Reader
	Timeout  time.Duration // per-call deadline; zero keeps the parent context
	MaxBytes int64         // larger bodies fail with errs.ErrBodyTooLarge; zero means unlimited
}

// Fetch performs req under its own timeout and reads the body for 2xx
// responses. Non-2xx statuses are returned, not turned into errors, so that
// callers can tell "not modified" from "rate limited" from "failed".
func Fetch(ctx context.Context, c HTTPClient, r Request) (FetchResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	parsedURL, err := utils.ParseSecureURL(r.URL)
	if err != nil {
		return FetchResult{}, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	body := r.Body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	if r.ETag != "" {
		req.Header.Set("If-None-Match", r.ETag)
	}

	resp, err := c.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to perform request: %w", err)
	}
	defer utils.Try(resp.Body.Close)

	res := FetchResult{
		Status: resp.StatusCode,
		ETag:   resp.Header.Get("ETag"),
		Header: resp.Header,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return res, nil
	}

	var src io.Reader = resp.Body
	if r.MaxBytes > 0 {
		src = io.LimitReader(resp.Body, r.MaxBytes+1)
	}
	res.Body, err = io.ReadAll(src)
	if err != nil {
		return res, fmt.Errorf("failed to read body: %w", err)
	}
	if r.MaxBytes > 0 && int64(len(res.Body)) > r.MaxBytes {
		res.Body = nil
		return res, fmt.Errorf("%s: %w (limit %d bytes)", parsedURL.Redacted(), errs.ErrBodyTooLarge, r.MaxBytes)
	}
	return res, nil
}
