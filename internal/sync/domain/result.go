package domain

// ItemOutcome is what happened to a single assignment during a run.
type ItemOutcome string

const (
	OutcomeCreated ItemOutcome = "created"
	OutcomeSkipped ItemOutcome = "skipped"
	OutcomeFailed  ItemOutcome = "failed"
)

const ErrRelatedCourseNotFound = "Related course not found"

// ItemResult records the outcome of one assignment.
type ItemResult struct {
	Name    string      `json:"name"`
	URL     string      `json:"url"`
	Outcome ItemOutcome `json:"outcome"`
	Success bool        `json:"success"`
	PageID  string      `json:"pageId,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Created(a Assignment, pageID string) ItemResult {
	return ItemResult{Name: a.Name, URL: a.URLKey(), Outcome: OutcomeCreated, Success: true, PageID: pageID}
}

func Skipped(a Assignment) ItemResult {
	return ItemResult{Name: a.Name, URL: a.URLKey(), Outcome: OutcomeSkipped, Success: true}
}

func Failed(a Assignment, reason string) ItemResult {
	return ItemResult{Name: a.Name, URL: a.URLKey(), Outcome: OutcomeFailed, Success: false, Error: reason}
}

// SyncResult is the full output of one reconciliation run.
type SyncResult struct {
	CoursesDatabaseID     string            `json:"coursesDatabaseId"`
	AssignmentsDatabaseID string            `json:"assignmentsDatabaseId"`
	CoursePages           map[string]string `json:"coursePages"`
	CoursesCreated        int               `json:"coursesCreated"`
	Items                 []ItemResult      `json:"items"`
}

// Add appends an item result.
func (r *SyncResult) Add(item ItemResult) {
	r.Items = append(r.Items, item)
}

// Summary aggregates the per-item results into the stored counters.
func (r *SyncResult) Summary() SyncResults {
	summary := SyncResults{
		CoursesCreated:   r.CoursesCreated,
		TotalAssignments: len(r.Items),
	}
	for _, item := range r.Items {
		switch item.Outcome {
		case OutcomeCreated:
			summary.NewAssignmentsCreated++
		case OutcomeSkipped:
			summary.SkippedAssignments++
		case OutcomeFailed:
			summary.FailedAssignments++
		}
	}
	return summary
}

// CourseComparison lists the assignments of a course that are missing from Notion.
type CourseComparison struct {
	OnlyInCanvas []Assignment `json:"onlyInCanvas"`
}

// Comparison is keyed by course name.
type Comparison map[string]*CourseComparison
