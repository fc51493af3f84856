package dto

import (
	"encoding/json"
	"time"

	"notion-sync-backend/internal/sync/domain"
)

// SyncInfo is returned when a sync has been accepted
type SyncInfo struct {
	JobID            string        `json:"jobId"`
	TotalAssignments int           `json:"totalAssignments"`
	TotalCourses     int           `json:"totalCourses"`
	SyncStatus       domain.Status `json:"syncStatus"`
	StartedAt        time.Time     `json:"startedAt"`
}

// StatusView renders the stored status with its derived message added.
func StatusView(status domain.SyncStatus) (map[string]interface{}, error) {
	raw, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	view := map[string]interface{}{}
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, err
	}
	view["message"] = status.Message()
	return view, nil
}

// SyncRunResponse is one entry of the sync history
type SyncRunResponse struct {
	ID                    string        `json:"id"`
	PageID                string        `json:"pageId"`
	Status                domain.Status `json:"status"`
	TotalCourses          int           `json:"totalCourses"`
	TotalAssignments      int           `json:"totalAssignments"`
	CoursesCreated        int           `json:"coursesCreated"`
	NewAssignmentsCreated int           `json:"newAssignmentsCreated"`
	SkippedAssignments    int           `json:"skippedAssignments"`
	FailedAssignments     int           `json:"failedAssignments"`
	Error                 string        `json:"error,omitempty"`
	StartedAt             time.Time     `json:"startedAt"`
	CompletedAt           *time.Time    `json:"completedAt,omitempty"`
}

func NewSyncRunResponse(run *domain.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:                    run.ID,
		PageID:                run.PageID,
		Status:                run.Status,
		TotalCourses:          run.TotalCourses,
		TotalAssignments:      run.TotalAssignments,
		CoursesCreated:        run.CoursesCreated,
		NewAssignmentsCreated: run.NewAssignmentsCreated,
		SkippedAssignments:    run.SkippedAssignments,
		FailedAssignments:     run.FailedAssignments,
		Error:                 run.Error,
		StartedAt:             run.StartedAt,
		CompletedAt:           run.CompletedAt,
	}
}
