// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	_ "embed"
	"net/http"
)

// OpenAPISpec is the contract of the session API.
//
//go:embed openapi.yaml
var OpenAPISpec []byte

func handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(OpenAPISpec)
}
