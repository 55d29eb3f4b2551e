package models

// ErrorResponse is the JSON error response used by API-style endpoints
// such as the health check.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ActiveUploads  int    `json:"active_uploads"`
	DeletedUploads int    `json:"deleted_uploads"`
}
