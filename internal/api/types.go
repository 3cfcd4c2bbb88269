package api

import "github.com/mattjoyce/hookbox/internal/webhook"

// ServiceName is reported by GET /.
const ServiceName = "Webhook API"

// RootResponse is returned by GET /.
type RootResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// StatusResponse is returned by GET /health/live.
type StatusResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is returned by GET /health/ready. Reason is set only when
// the service is not ready.
type ReadyResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields []webhook.Violation `json:"fields,omitempty"`
}
