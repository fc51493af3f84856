package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	authrepo "notion-sync-backend/internal/auth/repository"
	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/pkg/notion"

	"github.com/jomei/notionapi"
)

// UnknownCourse groups compared assignments whose course is not part of the request.
const UnknownCourse = "Unknown Course"

// ContentAPI is the subset of the Notion client the engine depends on
type ContentAPI interface {
	RetrievePage(ctx context.Context, pageID string) (*notion.Resource, error)
	ListChildren(ctx context.Context, blockID string) ([]notion.Resource, error)
	CreateDatabase(ctx context.Context, parentPageID, title string, properties notionapi.PropertyConfigs) (string, error)
	QueryDatabase(ctx context.Context, databaseID string, filter notionapi.Filter) ([]notion.Record, error)
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (string, error)
}

// ContentAPIFactory builds a client for a user's access token
type ContentAPIFactory func(accessToken string) ContentAPI

// Engine reconciles Canvas courses and assignments with the two Notion databases
// under a parent page. Calls are issued sequentially in input order.
type Engine struct {
	userRepo  authrepo.UserRepository
	newClient ContentAPIFactory
}

// NewEngine creates a new Engine
func NewEngine(userRepo authrepo.UserRepository, newClient ContentAPIFactory) *Engine {
	return &Engine{
		userRepo:  userRepo,
		newClient: newClient,
	}
}

func (e *Engine) clientFor(ctx context.Context, email string) (ContentAPI, error) {
	user, err := e.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no user with email %s", domain.ErrNotConnected, email)
	}
	if !user.Connected() {
		return nil, domain.ErrNotConnected
	}
	return e.newClient(user.AccessToken), nil
}

// findDatabases returns the ids of child databases keyed by exact title. The first
// database with a given title wins.
func findDatabases(children []notion.Resource) map[string]string {
	found := map[string]string{}
	for _, child := range children {
		if child.Kind != notion.KindDatabase {
			continue
		}
		if _, seen := found[child.Title]; !seen {
			found[child.Title] = child.ID
		}
	}
	return found
}

// Sync creates the containers if needed and adds every missing course and assignment.
func (e *Engine) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	client, err := e.clientFor(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if _, err := client.RetrievePage(ctx, req.PageID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoPageAccess, err)
	}

	children, err := client.ListChildren(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	databases := findDatabases(children)

	result := &domain.SyncResult{
		CoursePages: map[string]string{},
		Items:       make([]domain.ItemResult, 0, len(req.Assignments)),
	}

	result.CoursesDatabaseID = databases[CoursesDatabaseTitle]
	if result.CoursesDatabaseID == "" {
		id, err := client.CreateDatabase(ctx, req.PageID, CoursesDatabaseTitle, coursesSchema())
		if err != nil {
			return nil, err
		}
		log.Printf("[Sync] Created %s database %s under %s", CoursesDatabaseTitle, id, req.PageID)
		result.CoursesDatabaseID = id
	}

	result.AssignmentsDatabaseID = databases[AssignmentsDatabaseTitle]
	if result.AssignmentsDatabaseID == "" {
		id, err := client.CreateDatabase(ctx, req.PageID, AssignmentsDatabaseTitle, assignmentsSchema(result.CoursesDatabaseID))
		if err != nil {
			return nil, err
		}
		log.Printf("[Sync] Created %s database %s under %s", AssignmentsDatabaseTitle, id, req.PageID)
		result.AssignmentsDatabaseID = id
	}

	if err := e.syncCourses(ctx, client, req.Courses, result); err != nil {
		return nil, err
	}
	if err := e.syncAssignments(ctx, client, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) syncCourses(ctx context.Context, client ContentAPI, courses []domain.Course, result *domain.SyncResult) error {
	existing, err := client.QueryDatabase(ctx, result.CoursesDatabaseID, nil)
	if err != nil {
		return err
	}
	existingNames := make(map[string]bool, len(existing))
	for _, rec := range existing {
		existingNames[strings.TrimSpace(rec.Title)] = true
	}

	for _, course := range courses {
		if _, done := result.CoursePages[course.Name]; done {
			continue
		}

		if existingNames[course.Name] {
			matches, err := client.QueryDatabase(ctx, result.CoursesDatabaseID, titleEquals(course.Name))
			if err != nil {
				return fmt.Errorf("failed to look up course %q: %w", course.Name, err)
			}
			if len(matches) == 0 {
				// Listed a moment ago but not found by title; its assignments will report
				// the missing relation.
				log.Printf("[Sync] Course %q disappeared between list and lookup", course.Name)
				continue
			}
			result.CoursePages[course.Name] = matches[0].ID
			continue
		}

		id, err := client.CreatePage(ctx, result.CoursesDatabaseID, courseProperties(course.Name))
		if err != nil {
			return fmt.Errorf("failed to create course %q: %w", course.Name, err)
		}
		result.CoursePages[course.Name] = id
		result.CoursesCreated++
	}
	return nil
}

func (e *Engine) syncAssignments(ctx context.Context, client ContentAPI, req domain.SyncRequest, result *domain.SyncResult) error {
	existing, err := client.QueryDatabase(ctx, result.AssignmentsDatabaseID, nil)
	if err != nil {
		return err
	}
	existingURLs := urlSet(existing)
	courseNames := courseNamesByID(req.Courses)

	for _, a := range req.Assignments {
		if existingURLs[a.URLKey()] {
			result.Add(domain.Skipped(a))
			continue
		}

		coursePageID, ok := result.CoursePages[courseNames[a.CourseID]]
		if !ok {
			result.Add(domain.Failed(a, domain.ErrRelatedCourseNotFound))
			continue
		}

		props, err := assignmentProperties(a, coursePageID)
		if err != nil {
			result.Add(domain.Failed(a, err.Error()))
			continue
		}

		id, err := client.CreatePage(ctx, result.AssignmentsDatabaseID, props)
		if err != nil {
			log.Printf("[Sync] Failed to create assignment %q: %v", a.Name, err)
			result.Add(domain.Failed(a, err.Error()))
			continue
		}
		result.Add(domain.Created(a, id))
	}
	return nil
}

// Compare reports, per course name, the assignments that are not yet in Notion.
// It never writes.
func (e *Engine) Compare(ctx context.Context, req domain.SyncRequest) (domain.Comparison, error) {
	client, err := e.clientFor(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	children, err := client.ListChildren(ctx, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoPageAccess, err)
	}

	existingURLs := map[string]bool{}
	if databaseID := findDatabases(children)[AssignmentsDatabaseTitle]; databaseID != "" {
		existing, err := client.QueryDatabase(ctx, databaseID, nil)
		if err != nil {
			return nil, err
		}
		existingURLs = urlSet(existing)
	}

	courseNames := courseNamesByID(req.Courses)
	comparison := domain.Comparison{}
	for _, course := range req.Courses {
		if _, ok := comparison[course.Name]; !ok {
			comparison[course.Name] = &domain.CourseComparison{OnlyInCanvas: []domain.Assignment{}}
		}
	}

	for _, a := range req.Assignments {
		if existingURLs[a.URLKey()] {
			continue
		}
		name, ok := courseNames[a.CourseID]
		if !ok {
			name = UnknownCourse
		}
		group, ok := comparison[name]
		if !ok {
			group = &domain.CourseComparison{OnlyInCanvas: []domain.Assignment{}}
			comparison[name] = group
		}
		group.OnlyInCanvas = append(group.OnlyInCanvas, a)
	}
	return comparison, nil
}

func urlSet(records []notion.Record) map[string]bool {
	urls := make(map[string]bool, len(records))
	for _, rec := range records {
		if u := strings.TrimSpace(rec.Props[PropURL]); u != "" {
			urls[u] = true
		}
	}
	return urls
}

func courseNamesByID(courses []domain.Course) map[domain.CanvasID]string {
	names := make(map[domain.CanvasID]string, len(courses))
	for _, c := range courses {
		if _, ok := names[c.ID]; !ok {
			names[c.ID] = c.Name
		}
	}
	return names
}
