package usecase

import (
	"fmt"
	"strings"
	"time"

	"notion-sync-backend/internal/sync/domain"

	"github.com/jomei/notionapi"
)

const (
	CoursesDatabaseTitle     = "Courses"
	AssignmentsDatabaseTitle = "Assignments"

	PropName    = "Name"
	PropDueDate = "DueDate"
	PropPoints  = "Points"
	PropURL     = "URL"
	PropStatus  = "Status"
	PropCourse  = "Course"

	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

func coursesSchema() notionapi.PropertyConfigs {
	return notionapi.PropertyConfigs{
		PropName: &notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle},
	}
}

func assignmentsSchema(coursesDatabaseID string) notionapi.PropertyConfigs {
	return notionapi.PropertyConfigs{
		PropName:    &notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle},
		PropDueDate: &notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate},
		PropPoints: &notionapi.NumberPropertyConfig{
			Type:   notionapi.PropertyConfigTypeNumber,
			Number: notionapi.NumberFormat{Format: notionapi.FormatNumber},
		},
		PropURL: &notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL},
		PropStatus: &notionapi.SelectPropertyConfig{
			Type: notionapi.PropertyConfigTypeSelect,
			Select: notionapi.Select{Options: []notionapi.Option{
				{Name: StatusNotStarted, Color: notionapi.ColorRed},
				{Name: StatusInProgress, Color: notionapi.ColorYellow},
				{Name: StatusDone, Color: notionapi.ColorGreen},
			}},
		},
		PropCourse: &notionapi.RelationPropertyConfig{
			Type: notionapi.PropertyConfigTypeRelation,
			Relation: notionapi.RelationConfig{
				DatabaseID:     notionapi.DatabaseID(coursesDatabaseID),
				Type:           notionapi.RelationSingleProperty,
				SingleProperty: &notionapi.SingleProperty{},
			},
		},
	}
}

func titleValue(text string) *notionapi.TitleProperty {
	return &notionapi.TitleProperty{
		Title: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

func courseProperties(name string) notionapi.Properties {
	return notionapi.Properties{
		PropName: titleValue(name),
	}
}

// assignmentProperties builds a new Assignments row. A missing due date leaves DueDate empty.
func assignmentProperties(a domain.Assignment, coursePageID string) (notionapi.Properties, error) {
	props := notionapi.Properties{
		PropName:   titleValue(a.Name),
		PropPoints: &notionapi.NumberProperty{Number: a.Points()},
		PropURL:    &notionapi.URLProperty{URL: a.URLKey()},
		PropStatus: &notionapi.SelectProperty{Select: notionapi.Option{Name: StatusNotStarted}},
		PropCourse: &notionapi.RelationProperty{
			Relation: []notionapi.Relation{{ID: notionapi.PageID(coursePageID)}},
		},
	}

	if a.DueAt != nil && strings.TrimSpace(*a.DueAt) != "" {
		due, err := parseDueDate(*a.DueAt)
		if err != nil {
			return nil, err
		}
		start := notionapi.Date(due)
		props[PropDueDate] = &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
	}
	return props, nil
}

func parseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", value)
}

func titleEquals(name string) notionapi.Filter {
	return &notionapi.PropertyFilter{
		Property: PropName,
		RichText: &notionapi.TextFilterCondition{Equals: name},
	}
}
