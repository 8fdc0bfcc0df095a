package models

import "time"

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// QueueHealthResponse represents the broker connection state
// @Description Broker health check response
type QueueHealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"`
	Connected bool      `json:"connected" example:"true"`
}

// WebhookResponse acknowledges a webhook delivery
// @Description Webhook acknowledgement
type WebhookResponse struct {
	Status string `json:"status" example:"received"`
	Error  string `json:"error,omitempty" example:""`
}

// JobRequest asks for a maintenance job to be launched
// @Description Maintenance job request
type JobRequest struct {
	Kind string `json:"kind" example:"batch-analysis"` // batch-analysis or update-embeddings
}

// JobResponse reports a launched job or its status
// @Description Maintenance job response
type JobResponse struct {
	Success bool       `json:"success" example:"true"`
	JobName string     `json:"job_name,omitempty" example:"batch-analysis-1700000000"`
	Status  *JobStatus `json:"status,omitempty"`
	Message string     `json:"message,omitempty" example:"Job started"`
	Error   string     `json:"error,omitempty" example:""`
}

// JobStatus is the observed state of a Kubernetes job
type JobStatus struct {
	Status         string     `json:"status" example:"running"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	Active         int32      `json:"active"`
	Succeeded      int32      `json:"succeeded"`
	Failed         int32      `json:"failed"`
}
