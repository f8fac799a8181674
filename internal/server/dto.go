package server

import (
	"time"

	"hireline/internal/domain"
)

// Request payloads

type CreateJobOrderRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Department  string `json:"department,omitempty"`
	Level       string `json:"level,omitempty"`
	Quantity    int    `json:"quantity,omitempty" minimum:"0"`
}

type StatusRequest struct {
	Status string `json:"status" doc:"Target status"`
}

type IngestCandidateRequest struct {
	CandidateID    string     `json:"candidate_id,omitempty" doc:"Link an existing candidate instead of creating one"`
	FullName       string     `json:"full_name,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Source         string     `json:"source,omitempty"`
	JobOrderID     string     `json:"job_order_id"`
	MatchScore     *float64   `json:"match_score,omitempty"`
	EmploymentType string     `json:"employment_type,omitempty"`
	Remarks        string     `json:"remarks,omitempty"`
	AppliedAt      *time.Time `json:"applied_at,omitempty"`
}

type PoolApplicationRequest struct {
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type ActivateRequest struct {
	JobOrderID string `json:"job_order_id" minLength:"1" doc:"Job order the candidate joins; not the one still holding the pooled application"`
	Status     string `json:"status,omitempty" doc:"Defaults to hr_interview"`
	Notes      string `json:"notes,omitempty"`
}

type UpdatePooledRequest struct {
	Disposition string  `json:"disposition,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type BulkActionRequest struct {
	IDs         []string `json:"ids" minItems:"1"`
	Disposition string   `json:"disposition"`
	Notes       *string  `json:"notes,omitempty"`
}

// Response payloads

type JobOrderList struct {
	Items []domain.JobOrder `json:"items"`
}

type ApplicationList struct {
	Items []domain.Application `json:"items"`
}

type TimelineList struct {
	Items []domain.TimelineEntry `json:"items"`
}

type PooledCandidateList struct {
	Items []domain.PooledCandidate `json:"items"`
}

type PoolSummary struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type ActivityList struct {
	Items []domain.Activity `json:"items"`
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
