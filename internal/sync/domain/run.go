package domain

import "time"

// SyncRun is one row of sync history
type SyncRun struct {
	ID                    string     `json:"id" gorm:"primaryKey"`
	UserID                string     `json:"user_id" gorm:"index;not null"`
	PageID                string     `json:"page_id" gorm:"not null"`
	Status                Status     `json:"status" gorm:"index"`
	TotalCourses          int        `json:"total_courses"`
	TotalAssignments      int        `json:"total_assignments"`
	CoursesCreated        int        `json:"courses_created"`
	NewAssignmentsCreated int        `json:"new_assignments_created"`
	SkippedAssignments    int        `json:"skipped_assignments"`
	FailedAssignments     int        `json:"failed_assignments"`
	Error                 string     `json:"error,omitempty"`
	StartedAt             time.Time  `json:"started_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
