// Package reconnect orders contacts by how long it has been since the user
// last interacted with them. It is independent of the relationship score.
package reconnect

import (
	"slices"
	"time"

	"github.com/okian/circle/internal/domain/model"
	"github.com/okian/circle/internal/domain/scoring"
)

// Item is a contact together with its staleness.
type Item struct {
	Contact model.Contact
	// LastInteraction is nil when the contact has no interactions.
	LastInteraction *time.Time
	// DaysSince is nil when the contact has no interactions.
	DaysSince *int
}

// Build derives reconnect items for contacts, preserving their order.
func Build(contacts []model.Contact, now time.Time) []Item {
	items := make([]Item, len(contacts))
	for i, c := range contacts {
		items[i] = Item{Contact: c}
		if last, ok := c.LastInteraction(); ok {
			days, _ := scoring.DaysSince([]time.Time{last}, now)
			items[i].LastInteraction = &last
			items[i].DaysSince = &days
		}
	}
	return items
}

// Sort orders items in place: contacts without interactions first, then by
// ascending last interaction. Equal keys keep their input order.
func Sort(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		return Compare(a.LastInteraction, b.LastInteraction)
	})
}

// Compare orders two last-interaction timestamps with nil first.
func Compare(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// Rank builds, sorts and truncates to limit. A non-positive limit keeps all.
func Rank(contacts []model.Contact, now time.Time, limit int) []Item {
	items := Build(contacts, now)
	Sort(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
