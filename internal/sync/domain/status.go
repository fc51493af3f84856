package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the state of the most recent sync run of a user.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// SyncResults is the aggregate stored with a completed run.
type SyncResults struct {
	CoursesCreated        int `json:"coursesCreated"`
	TotalAssignments      int `json:"totalAssignments"`
	NewAssignmentsCreated int `json:"newAssignmentsCreated"`
	SkippedAssignments    int `json:"skippedAssignments"`
	FailedAssignments     int `json:"failedAssignments"`
}

// SyncStatus is stored under users/{uid}/syncStatus. Each state carries its own fields:
//
//	pending:  status, startedAt, totalAssignments, totalCourses
//	complete: status, results, completedAt
//	error:    status, error, errorAt
type SyncStatus struct {
	Status           Status       `json:"status"`
	StartedAt        *time.Time   `json:"startedAt,omitempty"`
	TotalAssignments int          `json:"totalAssignments,omitempty"`
	TotalCourses     int          `json:"totalCourses,omitempty"`
	Results          *SyncResults `json:"results,omitempty"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
	Error            string       `json:"error,omitempty"`
	ErrorAt          *time.Time   `json:"errorAt,omitempty"`
}

func NewPendingStatus(startedAt time.Time, totalAssignments, totalCourses int) SyncStatus {
	return SyncStatus{
		Status:           StatusPending,
		StartedAt:        &startedAt,
		TotalAssignments: totalAssignments,
		TotalCourses:     totalCourses,
	}
}

func NewCompleteStatus(completedAt time.Time, results SyncResults) SyncStatus {
	return SyncStatus{
		Status:      StatusComplete,
		Results:     &results,
		CompletedAt: &completedAt,
	}
}

func NewErrorStatus(errorAt time.Time, message string) SyncStatus {
	return SyncStatus{
		Status:  StatusError,
		Error:   message,
		ErrorAt: &errorAt,
	}
}

// IsPendingRun reports whether s is the pending record of the run started at startedAt.
// Timestamps are compared at microsecond precision, the resolution Postgres keeps.
func (s SyncStatus) IsPendingRun(startedAt time.Time) bool {
	return s.Status == StatusPending && s.StartedAt != nil &&
		s.StartedAt.Truncate(time.Microsecond).Equal(startedAt.Truncate(time.Microsecond))
}

// MarshalJSON writes only the fields belonging to the current state, so zero
// counts of a pending run are still present.
func (s SyncStatus) MarshalJSON() ([]byte, error) {
	switch s.Status {
	case StatusPending:
		return json.Marshal(struct {
			Status           Status     `json:"status"`
			StartedAt        *time.Time `json:"startedAt"`
			TotalAssignments int        `json:"totalAssignments"`
			TotalCourses     int        `json:"totalCourses"`
		}{s.Status, s.StartedAt, s.TotalAssignments, s.TotalCourses})
	case StatusComplete:
		results := SyncResults{}
		if s.Results != nil {
			results = *s.Results
		}
		return json.Marshal(struct {
			Status      Status      `json:"status"`
			Results     SyncResults `json:"results"`
			CompletedAt *time.Time  `json:"completedAt"`
		}{s.Status, results, s.CompletedAt})
	case StatusError:
		return json.Marshal(struct {
			Status  Status     `json:"status"`
			Error   string     `json:"error"`
			ErrorAt *time.Time `json:"errorAt"`
		}{s.Status, s.Error, s.ErrorAt})
	default:
		type plain SyncStatus
		return json.Marshal(plain(s))
	}
}

// Message derives the text shown to the user from the stored status.
func (s SyncStatus) Message() string {
	switch s.Status {
	case StatusPending:
		return fmt.Sprintf("Sync in progress: %d assignments across %d courses", s.TotalAssignments, s.TotalCourses)
	case StatusComplete:
		if s.Results == nil {
			return "Sync completed"
		}
		r := s.Results
		msg := fmt.Sprintf("Sync completed: %d new assignments created, %d skipped, %d new courses",
			r.NewAssignmentsCreated, r.SkippedAssignments, r.CoursesCreated)
		if r.FailedAssignments > 0 {
			msg += fmt.Sprintf(", %d failed", r.FailedAssignments)
		}
		return msg
	case StatusError:
		if s.Error == "" {
			return "Sync failed: an unknown error occurred"
		}
		return "Sync failed: " + s.Error
	default:
		return "Unknown sync status"
	}
}
