package dto

import authdomain "notion-sync-backend/internal/auth/domain"

type SessionRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"deviceInfo"`
}

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Connected     bool   `json:"connected"`
	WorkspaceName string `json:"workspaceName,omitempty"`
}

func NewUserResponse(user *authdomain.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Connected:     user.Connected(),
		WorkspaceName: user.WorkspaceName,
	}
}
