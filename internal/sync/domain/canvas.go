package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// CanvasID accepts both string and numeric ids as sent by the Canvas API.
type CanvasID string

func (id *CanvasID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CanvasID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = CanvasID(n.String())
	return nil
}

// Course is a Canvas course. Its name is the identity used against Notion.
type Course struct {
	ID   CanvasID `json:"id"`
	Name string   `json:"name"`
}

// Assignment is a Canvas assignment. Its trimmed html_url is the identity used against Notion.
type Assignment struct {
	Name           string   `json:"name"`
	DueAt          *string  `json:"due_at"`
	PointsPossible *float64 `json:"points_possible"`
	HTMLURL        string   `json:"html_url"`
	CourseID       CanvasID `json:"courseId"`
}

// URLKey is the normalized identity of the assignment.
func (a Assignment) URLKey() string {
	return strings.TrimSpace(a.HTMLURL)
}

// Points returns points_possible, defaulting to zero.
func (a Assignment) Points() float64 {
	if a.PointsPossible == nil {
		return 0
	}
	return *a.PointsPossible
}

// SyncRequest is the payload accepted by the sync and compare endpoints.
type SyncRequest struct {
	Email       string       `json:"email"`
	PageID      string       `json:"pageId"`
	Courses     []Course     `json:"courses"`
	Assignments []Assignment `json:"assignments"`
}

// SyncJob is the unit of background work: the original request plus the resolved user.
type SyncJob struct {
	ID        string    `json:"jobId"`
	UserID    string    `json:"userId"`
	StartedAt time.Time `json:"startedAt"` // identifies the pending status this run owns
	SyncRequest
}
