package seed

import (
	"time"

	"github.com/okian/circle/internal/domain/model"
)

// Demo account.
const (
	DemoEmail = "demo@circle.app"
	DemoName  = "Demo User"
)

type tagSeed struct {
	name  string
	extra string // group colour or activity emoji
}

type contactSeed struct {
	name       string
	email      string
	phone      string
	location   string
	job        string
	company    string
	howWeMet   string
	notes      string
	birthday   string
	socials    map[string]string
	groups     []string
	activities []string
}

type interactionSeed struct {
	contact string
	daysAgo int
	kind    model.InteractionType
	note    string
}

var groupSeeds = []tagSeed{ //nolint:gochecknoglobals // fixed demo data
	{"Family", "#ef4444"},
	{"Work", "#3b82f6"},
	{"College Friends", "#22c55e"},
	{"Gym Buddies", "#f59e0b"},
	{"Neighbors", "#8b5cf6"},
}

var activitySeeds = []tagSeed{ //nolint:gochecknoglobals // fixed demo data
	{"Coffee", "☕"},
	{"Hiking", "🥾"},
	{"Board Games", "🎲"},
	{"Movies", "🎬"},
	{"Tennis", "🎾"},
	{"Dinner", "🍽️"},
}

var contactSeeds = []contactSeed{ //nolint:gochecknoglobals // fixed demo data
	{
		name:       "Sarah Chen",
		email:      "sarah@example.com",
		phone:      "+1 555-0101",
		location:   "San Francisco, CA",
		job:        "Product Manager",
		company:    "TechCorp",
		howWeMet:   "College roommate",
		birthday:   "1992-03-15",
		notes:      "Loves Thai food and indie music",
		socials:    map[string]string{"instagram": "@sarahc", "linkedin": "sarahchen"},
		groups:     []string{"College Friends", "Work"},
		activities: []string{"Coffee", "Movies"},
	},
	{
		name:       "Marcus Johnson",
		email:      "marcus.j@example.com",
		phone:      "+1 555-0102",
		location:   "Oakland, CA",
		job:        "Software Engineer",
		company:    "StartupXYZ",
		howWeMet:   "Work colleague at previous job",
		birthday:   "1990-07-22",
		notes:      "Great at explaining complex topics. Into woodworking.",
		groups:     []string{"Work", "Gym Buddies"},
		activities: []string{"Board Games", "Tennis"},
	},
	{
		name:       "Emily Rodriguez",
		phone:      "+1 555-0103",
		location:   "Berkeley, CA",
		howWeMet:   "Met at a hiking meetup",
		notes:      "Training for a marathon",
		groups:     []string{"Gym Buddies"},
		activities: []string{"Hiking"},
	},
	{
		name:       "James Park",
		email:      "jpark@example.com",
		location:   "San Jose, CA",
		job:        "Data Scientist",
		company:    "BigData Inc",
		howWeMet:   "Friend of Sarah",
		birthday:   "1988-11-30",
		groups:     []string{"College Friends"},
		activities: []string{"Coffee", "Board Games"},
	},
	{
		name:     "Mom",
		phone:    "+1 555-0199",
		birthday: "1965-05-12",
		notes:    "Call every Sunday!",
		groups:   []string{"Family"},
	},
	{
		name:       "Alex Thompson",
		email:      "alex.t@example.com",
		location:   "Seattle, WA",
		job:        "Designer",
		howWeMet:   "Design conference 2023",
		notes:      "Moving to SF next year",
		groups:     []string{"Work"},
		activities: []string{"Coffee", "Dinner"},
	},
}

var interactionSeeds = []interactionSeed{ //nolint:gochecknoglobals // fixed demo data
	{"Sarah Chen", 3, model.InteractionMetUp, "Coffee at Blue Bottle"},
	{"Marcus Johnson", 7, model.InteractionMetUp, "Tennis at the park"},
	{"Emily Rodriguez", 45, model.InteractionText, "Planned hiking trip but had to cancel"},
	{"Mom", 1, model.InteractionCall, "Weekly Sunday call"},
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func birthday(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic("seed: bad birthday " + s)
	}
	return &t
}
