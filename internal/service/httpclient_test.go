package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_ConditionalNotModified(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	res, err := Fetch(context.Background(), srv.Client(), Request{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "payload", string(res.Body))

	res, err = Fetch(context.Background(), srv.Client(), Request{URL: srv.URL, ETag: `"v1"`, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, res.Status)
	assert.Nil(t, res.Body)
}

func TestFetch_RejectsInsecureURL(t *testing.T) {
	_, err := Fetch(context.Background(), http.DefaultClient, Request{URL: "http://example.com"})
	assert.Error(t, err)
}

func TestFetch_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, errs.KindTransientNetwork, errs.Classify(err))
	assert.True(t, errs.IsTimeout(err))
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	res, err := Fetch(context.Background(), srv.Client(), Request{URL: srv.URL, MaxBytes: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrBodyTooLarge)
	assert.Nil(t, res.Body, "an oversized body is never returned truncated")

	res, err = Fetch(context.Background(), srv.Client(), Request{URL: srv.URL, MaxBytes: 10})
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(res.Body), "a body exactly at the limit is accepted")
}
