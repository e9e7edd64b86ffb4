// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package evalclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/ports"
)

func TestUpload_PostsRawBytes(t *testing.T) {
	payload := []byte("mp4-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/captures", r.URL.Path)
		assert.Equal(t, ports.ContentTypeMP4, r.Header.Get("Content-Type"))
		assert.Equal(t, "sess-9", r.Header.Get(sessionHeader))
		assert.Empty(t, r.Header.Get(sideHeader), "face takes have no side")
		assert.Equal(t, "up-key", r.Header.Get(apiKeyHeader))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, payload, body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	up := NewUploader(Config{APIKey: "up-key", Timeout: 2 * time.Second})
	err := up.Upload(context.Background(), ports.UploadRequest{
		SessionID:   "sess-9",
		URL:         srv.URL + "/captures",
		Side:        model.SideNone,
		Data:        payload,
		ContentType: ports.ContentTypeMP4,
	})
	require.NoError(t, err)
}

func TestUpload_SideHeader(t *testing.T) {
	var side atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		side.Store(r.Header.Get(sideHeader))
	}))
	defer srv.Close()

	up := NewUploader(Config{})
	require.NoError(t, up.Upload(context.Background(), ports.UploadRequest{
		SessionID: "s", URL: srv.URL, Side: model.SideBack, Data: []byte{1}, ContentType: ports.ContentTypeJPEG,
	}))
	assert.Equal(t, "back", side.Load())
}

func TestUpload_RejectsUnsafeTargetWithoutRequest(t *testing.T) {
	up := NewUploader(Config{})
	for _, target := range []string{"", "ftp://upload.example.com/x", "https://user:pw@upload.example.com/x"} {
		err := up.Upload(context.Background(), ports.UploadRequest{SessionID: "s", URL: target, Data: []byte{1}})
		require.ErrorIs(t, err, ErrInvalidURL, "target %q", target)
		assert.NotContains(t, err.Error(), "pw")
	}
}

func TestUpload_ServerErrorKeepsBodySnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	up := NewUploader(Config{})
	err := up.Upload(context.Background(), ports.UploadRequest{SessionID: "s", URL: srv.URL, Data: []byte{1}})
	require.ErrorIs(t, err, ErrServer)

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.Status)
	assert.Contains(t, re.Error(), "storage offline")
	assert.Equal(t, "server_error", kind(err))
}

func TestUpload_CancelledContext(t *testing.T) {
	entered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-r.Context().Done()
	}))
	defer srv.Close()

	up := NewUploader(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()
	err := up.Upload(ctx, ports.UploadRequest{SessionID: "s", URL: srv.URL, Data: []byte{1}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "cancelled", kind(err))
}
