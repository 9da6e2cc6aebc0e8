package dto

import "time"

type ReportSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Source       string    `json:"source"`
	Model        string    `json:"model"`
	Summary      string    `json:"summary"`
	Failed       bool      `json:"failed"`
	MessageCount int       `json:"messageCount"`
	Path         string    `json:"path"`
}

type StatusResponse struct {
	Version    string         `json:"version"`
	Source     string         `json:"source"`
	Model      string         `json:"model"`
	StartedAt  time.Time      `json:"startedAt"`
	LastReport *ReportSummary `json:"lastReport,omitempty"`
}

type ReportFile struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

type ReportListResponse struct {
	Reports []ReportFile `json:"reports"`
	Total   int          `json:"total"`
}
