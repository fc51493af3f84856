package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	authdomain "notion-sync-backend/internal/auth/domain"
	"notion-sync-backend/pkg/database"
)

const usersPath = "users"

// UserRepository defines the interface for user record operations
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	// FindByEmail returns the first user whose email matches, or nil.
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
	// EnsureUser creates the record on first sign-in and returns it.
	EnsureUser(ctx context.Context, id, email string) (*authdomain.User, error)
	UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) error
	SaveNotionConnection(ctx context.Context, id string, conn authdomain.NotionConnection) error
	ClearAccessToken(ctx context.Context, id string) error
	SavePageIDs(ctx context.Context, id string, pages []authdomain.PageRef) error
}

// userRepository implements UserRepository on the document store
type userRepository struct {
	store database.Store
	now   func() time.Time
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(store database.Store) UserRepository {
	return &userRepository{
		store: store,
		now:   time.Now,
	}
}

func userPath(id string) string {
	return usersPath + "/" + id
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	var user authdomain.User
	found, err := r.store.Get(ctx, userPath(id), &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	user.ID = id
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	var user authdomain.User
	key, found, err := r.store.FindByChild(ctx, usersPath, "email", email, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	user.ID = key
	return &user, nil
}

func (r *userRepository) EnsureUser(ctx context.Context, id, email string) (*authdomain.User, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()

	if existing != nil {
		if email != "" && existing.Email != email {
			if err := r.store.Update(ctx, userPath(id), map[string]interface{}{
				"email":     email,
				"updatedAt": now,
			}); err != nil {
				return nil, err
			}
			existing.Email = email
		}
		return existing, nil
	}

	user := &authdomain.User{
		ID:        id,
		Email:     email,
		Profile:   map[string]interface{}{},
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if err := r.store.Set(ctx, userPath(id), user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for key, value := range fields {
		if strings.Contains(key, "/") || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid profile field %q", key)
		}
		updates["profile/"+key] = value
	}
	updates["updatedAt"] = r.now().UTC()
	return r.store.Update(ctx, userPath(id), updates)
}

func (r *userRepository) SaveNotionConnection(ctx context.Context, id string, conn authdomain.NotionConnection) error {
	return r.store.Update(ctx, userPath(id), map[string]interface{}{
		"accessToken":   conn.AccessToken,
		"workspaceId":   conn.WorkspaceID,
		"workspaceName": conn.WorkspaceName,
		"updatedAt":     r.now().UTC(),
	})
}

func (r *userRepository) ClearAccessToken(ctx context.Context, id string) error {
	return r.store.Remove(ctx, userPath(id)+"/accessToken")
}

func (r *userRepository) SavePageIDs(ctx context.Context, id string, pages []authdomain.PageRef) error {
	if pages == nil {
		pages = []authdomain.PageRef{}
	}
	return r.store.Set(ctx, userPath(id)+"/pageIDs", pages)
}
