package domain

import (
	"strings"
	"time"
)

// PageRef is a cached entry of the Notion resources the user shared with the integration.
// It is a best-effort cache for the page picker and never used to decide what to sync.
type PageRef struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// User is stored under users/{uid}. The uid comes from Firebase Authentication.
type User struct {
	ID            string                 `json:"-"`
	Email         string                 `json:"email"`
	AccessToken   string                 `json:"accessToken,omitempty"`
	WorkspaceID   string                 `json:"workspaceId,omitempty"`
	WorkspaceName string                 `json:"workspaceName,omitempty"`
	PageIDs       []PageRef              `json:"pageIDs,omitempty"`
	Profile       map[string]interface{} `json:"profile,omitempty"`
	CreatedAt     *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time             `json:"updatedAt,omitempty"`
}

// Connected reports whether the user has a stored Notion credential.
func (u *User) Connected() bool {
	return u != nil && strings.TrimSpace(u.AccessToken) != ""
}

// NotionConnection is the result of a completed Notion OAuth exchange.
type NotionConnection struct {
	AccessToken   string
	WorkspaceID   string
	WorkspaceName string
}
