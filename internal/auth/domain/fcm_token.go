package domain

import "time"

// FCMToken represents a Firebase Cloud Messaging device token for push notifications
type FCMToken struct {
	ID         string    `json:"-"`
	Token      string    `json:"token"`
	DeviceInfo string    `json:"deviceInfo,omitempty"` // Browser/extension metadata
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
