// Package types contains view types shared by the service and its adapters.
package types

import (
	"time"

	"github.com/okian/circle/internal/domain/model"
	"github.com/okian/circle/internal/domain/scoring"
)

// ContactView is a contact decorated with its relationship badge and
// staleness. It is derived on every read and never stored.
type ContactView struct {
	model.Contact

	Score           int               `json:"score"`
	Label           scoring.Label     `json:"label"`
	Color           scoring.Color     `json:"color"`
	Breakdown       scoring.Breakdown `json:"breakdown"`
	LastInteraction *time.Time        `json:"lastInteraction,omitempty"`
	DaysSince       *int              `json:"daysSince,omitempty"`
}

// DashboardStats are the headline counts of the dashboard.
type DashboardStats struct {
	TotalContacts       int `json:"totalContacts"`
	RecentInteractions  int `json:"recentInteractions"`
	ContactsToReconnect int `json:"contactsToReconnect"`
}

// DashboardView is the response of the dashboard endpoint.
type DashboardView struct {
	Stats     DashboardStats `json:"stats"`
	Reconnect []ContactView  `json:"reconnect"`
}
