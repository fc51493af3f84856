package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	authdomain "notion-sync-backend/internal/auth/domain"
	authrepo "notion-sync-backend/internal/auth/repository"
	"notion-sync-backend/pkg/notion"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidState = errors.New("invalid or expired oauth state")
	ErrUserNotFound = errors.New("user not found")
	ErrNotConnected = errors.New("notion is not connected")
	ErrMissingEmail = errors.New("email is required")
)

// Endpoint is Notion's public OAuth endpoint
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://api.notion.com/v1/oauth/authorize",
	TokenURL:  "https://api.notion.com/v1/oauth/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// NotionUsecase defines the interface for managing a user's Notion workspace connection
type NotionUsecase interface {
	// AuthURL returns the Notion consent URL for the user
	AuthURL(userID string) (string, error)
	// HandleCallback exchanges the authorization code and stores the connection
	HandleCallback(ctx context.Context, code, state string) error
	IsConnected(ctx context.Context, email string) (bool, error)
	Disconnect(ctx context.Context, email string) error
	// RefreshPages re-reads the pages shared with the integration into the user's pageIDs cache
	RefreshPages(ctx context.Context, userID string) ([]authdomain.PageRef, error)
}

// ResourceSearcher lists the pages and databases a token can see
type ResourceSearcher interface {
	SearchResources(ctx context.Context) ([]notion.Resource, error)
}

// SearcherFactory builds a searcher for an access token
type SearcherFactory func(accessToken string) ResourceSearcher

// notionUsecase implements NotionUsecase interface
type notionUsecase struct {
	userRepo    authrepo.UserRepository
	oauthConfig *oauth2.Config
	stateSecret []byte
	stateExpiry time.Duration
	newSearcher SearcherFactory
}

// NewOAuthConfig creates the OAuth client configuration for the public integration
func NewOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     Endpoint,
	}
}

// NewNotionUsecase creates a new instance of notionUsecase
func NewNotionUsecase(userRepo authrepo.UserRepository, oauthConfig *oauth2.Config, stateSecret string, stateExpiry time.Duration, newSearcher SearcherFactory) NotionUsecase {
	return &notionUsecase{
		userRepo:    userRepo,
		oauthConfig: oauthConfig,
		stateSecret: []byte(stateSecret),
		stateExpiry: stateExpiry,
		newSearcher: newSearcher,
	}
}

func (u *notionUsecase) AuthURL(userID string) (string, error) {
	state, err := u.signState(userID)
	if err != nil {
		return "", err
	}
	return u.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("owner", "user")), nil
}

func (u *notionUsecase) signState(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"nonce":   uuid.New().String(),
		"exp":     time.Now().Add(u.stateExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.stateSecret)
}

func (u *notionUsecase) parseState(state string) (string, error) {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		return u.stateSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidState
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidState
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidState
	}
	return userID, nil
}

func extraString(token *oauth2.Token, key string) string {
	if v, ok := token.Extra(key).(string); ok {
		return v
	}
	return ""
}

func (u *notionUsecase) HandleCallback(ctx context.Context, code, state string) error {
	userID, err := u.parseState(state)
	if err != nil {
		return err
	}

	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	token, err := u.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange notion authorization code: %w", err)
	}

	conn := authdomain.NotionConnection{
		AccessToken:   token.AccessToken,
		WorkspaceID:   extraString(token, "workspace_id"),
		WorkspaceName: extraString(token, "workspace_name"),
	}
	if err := u.userRepo.SaveNotionConnection(ctx, userID, conn); err != nil {
		return fmt.Errorf("failed to store notion connection: %w", err)
	}
	log.Printf("[Notion] Connected workspace %q for user %s", conn.WorkspaceName, userID)

	// The page cache is best effort; the connection itself already succeeded.
	if _, err := u.RefreshPages(ctx, userID); err != nil {
		log.Printf("[Notion] Failed to cache shared pages for user %s: %v", userID, err)
	}
	return nil
}

func (u *notionUsecase) findByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	return u.userRepo.FindByEmail(ctx, email)
}

func (u *notionUsecase) IsConnected(ctx context.Context, email string) (bool, error) {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return user.Connected(), nil
}

func (u *notionUsecase) Disconnect(ctx context.Context, email string) error {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := u.userRepo.ClearAccessToken(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to clear notion token: %w", err)
	}
	log.Printf("[Notion] Disconnected user %s", user.ID)
	return nil
}

func (u *notionUsecase) RefreshPages(ctx context.Context, userID string) ([]authdomain.PageRef, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.Connected() {
		return nil, ErrNotConnected
	}

	resources, err := u.newSearcher(user.AccessToken).SearchResources(ctx)
	if err != nil {
		return nil, err
	}

	pages := make([]authdomain.PageRef, 0, len(resources))
	for _, r := range resources {
		pages = append(pages, authdomain.PageRef{
			ID:    r.ID,
			Type:  string(r.Kind),
			Title: r.Title,
			Icon:  r.Icon,
		})
	}
	if err := u.userRepo.SavePageIDs(ctx, userID, pages); err != nil {
		return nil, fmt.Errorf("failed to store shared pages: %w", err)
	}
	return pages, nil
}
