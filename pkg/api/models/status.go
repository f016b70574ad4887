// Package models defines the HTTP API payloads.
package models

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness probe payload.
type ReadyResponse struct {
	Ready bool `json:"ready"`
}

// StatusResponse is the detailed status payload.
type StatusResponse struct {
	// Service is the configured service name.
	Service string `json:"service"`

	// Version is the build version, Commit the git revision.
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`

	// GoVersion is the Go runtime that built the binary.
	GoVersion string `json:"go_version,omitempty"`

	// UptimeSeconds counts from process start.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Healthy reports whether the signal dispatcher is running.
	Healthy bool `json:"healthy"`

	// Subscribers maps signal kind names to live subscriber counts.
	Subscribers map[string]int `json:"subscribers"`

	// SupportedKinds lists the kinds this platform can watch.
	SupportedKinds []string `json:"supported_kinds"`
}
