package firebase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// NewApp initializes a Firebase app using the provided credentials file.
// An empty credentials file falls back to Application Default Credentials.
func NewApp(ctx context.Context, credentialsFile, databaseURL string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var conf *firebase.Config
	if databaseURL != "" {
		conf = &firebase.Config{DatabaseURL: databaseURL}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	log.Println("[Firebase] App initialized successfully")
	return app, nil
}

// NewDatabase returns the Realtime Database client for the app
func NewDatabase(ctx context.Context, app *firebase.App) (*db.Client, error) {
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}
	return client, nil
}

// Identity is the verified caller behind a Firebase credential.
type Identity struct {
	UID   string
	Email string
}

// TokenVerifier validates Firebase ID tokens and session cookies.
type TokenVerifier struct {
	authClient *auth.Client
}

// NewTokenVerifier creates a TokenVerifier backed by Firebase Authentication
func NewTokenVerifier(ctx context.Context, app *firebase.App) (*TokenVerifier, error) {
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}
	return &TokenVerifier{authClient: authClient}, nil
}

// VerifyIDToken validates a bearer ID token issued by Firebase Authentication.
func (v *TokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return identityFromToken(token), nil
}

// CreateSessionCookie exchanges an ID token for a session cookie valid for expiresIn.
func (v *TokenVerifier) CreateSessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return v.authClient.SessionCookie(ctx, idToken, expiresIn)
}

func (v *TokenVerifier) VerifySessionCookie(ctx context.Context, cookie string) (*Identity, error) {
	token, err := v.authClient.VerifySessionCookie(ctx, cookie)
	if err != nil {
		return nil, err
	}
	return identityFromToken(token), nil
}

func identityFromToken(token *auth.Token) *Identity {
	identity := &Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	return identity
}

// DisabledVerifier rejects every credential. It stands in for TokenVerifier when Firebase is not configured.
type DisabledVerifier struct{}

var errAuthDisabled = errors.New("firebase authentication is not configured")

func (DisabledVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	return nil, errAuthDisabled
}

func (DisabledVerifier) CreateSessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return "", errAuthDisabled
}

func (DisabledVerifier) VerifySessionCookie(ctx context.Context, cookie string) (*Identity, error) {
	return nil, errAuthDisabled
}
