package models

import "time"

// LocalizedText carries the English and Arabic variants of a notification string.
type LocalizedText struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

// PushAudience targets either explicit users or whole segments.
type PushAudience struct {
	ExternalIDs []string `json:"externalIds,omitempty"`
	Segments    []string `json:"segments,omitempty"`
}

// PushNotification is the job handed to the push provider worker.
type PushNotification struct {
	ID        string         `json:"id"`
	Template  string         `json:"template"`
	Audience  PushAudience   `json:"audience"`
	Headings  LocalizedText  `json:"headings"`
	Contents  LocalizedText  `json:"contents"`
	LargeIcon string         `json:"largeIcon,omitempty"`
	Image     string         `json:"image,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// IsBroadcast reports whether the notification targets segments instead of users.
func (p PushNotification) IsBroadcast() bool {
	return len(p.Audience.Segments) > 0
}
