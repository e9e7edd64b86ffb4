// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/capflow/internal/capture/model"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		doc, err := openapi3.NewLoader().LoadFromData(OpenAPISpec)
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

type contractHarness struct {
	t       *testing.T
	handler http.Handler
	router  routers.Router
}

func newContractHarness(t *testing.T) *contractHarness {
	t.Helper()
	cfg := testConfig()
	hub, _ := newTestHub(t, cfg)
	srv := NewServer(ServerOptions{Config: staticConfig{cfg}, Hub: hub, Version: "test"})

	router, err := legacy.NewRouter(loadOpenAPIDoc(t))
	require.NoError(t, err, "openapi router init")
	return &contractHarness{t: t, handler: srv.Handler(), router: router}
}

// call validates the request against the contract, serves it and validates
// the response.
func (h *contractHarness) call(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(h.t, err)
	}
	newReq := func() *http.Request {
		req := httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer test-token")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req
	}

	req := newReq()
	route, pathParams, err := h.router.FindRoute(req)
	require.NoError(h.t, err, "openapi route lookup for %s %s", method, path)
	reqInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
	}
	require.NoError(h.t, openapi3filter.ValidateRequest(context.Background(), reqInput), "openapi request validation")

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, newReq())

	respInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 rr.Code,
		Header:                 rr.Header(),
		Options:                &openapi3filter.Options{IncludeResponseStatus: true},
	}
	respInput.SetBodyBytes(rr.Body.Bytes())
	require.NoError(h.t, openapi3filter.ValidateResponse(context.Background(), respInput),
		"openapi response validation for %s %s (status %d)", method, path, rr.Code)
	return rr
}

func TestContract_SessionLifecycle(t *testing.T) {
	h := newContractHarness(t)

	h.call(http.MethodGet, "/healthz", nil)

	rr := h.call(http.MethodPost, "/v1/sessions", CreateRequest{Flow: model.FlowDocument})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	base := "/v1/sessions/" + created.ID

	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/v1/sessions", nil).Code)
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, base, nil).Code)
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, base+"/snapshot", nil).Code)
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, base+"/events", eventRequest{Type: "loaded"}).Code)
	require.Equal(t, http.StatusOK, h.call(http.MethodPost, base+"/events", eventRequest{Type: "appeared"}).Code)

	batch := model.DetectionBatch{Seq: 1, Results: []model.Detection{{
		Category:   model.CategoryDocument,
		Bounds:     model.Rect{Width: 100, Height: 60},
		Confidence: 0.9,
		FrontScore: 0.8,
	}}}
	require.Equal(t, http.StatusAccepted, h.call(http.MethodPost, base+"/detections", batch).Code)

	cmd := h.call(http.MethodGet, base+"/commands?wait=200ms", nil)
	require.Contains(t, []int{http.StatusOK, http.StatusNoContent}, cmd.Code)

	require.Equal(t, http.StatusNoContent, h.call(http.MethodDelete, base, nil).Code)
}

func TestContract_Errors(t *testing.T) {
	h := newContractHarness(t)

	require.Equal(t, http.StatusNotFound, h.call(http.MethodGet, "/v1/sessions/missing", nil).Code)
	require.Equal(t, http.StatusNotFound, h.call(http.MethodDelete, "/v1/sessions/missing", nil).Code)
	require.Equal(t, http.StatusNotFound,
		h.call(http.MethodPost, "/v1/sessions/missing/commands/c-1/reply", map[string]string{"error": "camera_busy"}).Code)
}

func TestOpenAPIServed(t *testing.T) {
	cfg := testConfig()
	hub, _ := newTestHub(t, cfg)
	srv := NewServer(ServerOptions{Config: staticConfig{cfg}, Hub: hub})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, OpenAPISpec, rr.Body.Bytes())
}
