// Package scoring computes the relationship score of a contact from its
// profile completeness and interaction history.
//
// Every function here is pure: the current instant is passed in explicitly,
// inputs are never mutated and there is no failure mode.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/okian/circle/internal/domain/model"
)

// Sub-score budgets and policy constants.
const (
	CompletenessMax = 50.0
	RecencyMax      = 30.0
	FrequencyMax    = 20.0

	// ProfileFields is the number of profile fields counted for completeness.
	ProfileFields = 10

	// RecencyHorizonDays is the age at which the recency sub-score reaches zero.
	RecencyHorizonDays = 180

	// FrequencyWindowMonths is the calendar window counted for frequency.
	FrequencyWindowMonths = 6

	// FrequencyCap is the interaction count at which frequency saturates.
	FrequencyCap = 10

	minScore = 0
	maxScore = 100
	day      = 24 * time.Hour
)

// Label is the qualitative band of a score.
type Label string

// Labels, highest band first.
const (
	LabelClose        Label = "Close"
	LabelGood         Label = "Good"
	LabelModerate     Label = "Moderate"
	LabelAcquaintance Label = "Acquaintance"
	LabelDistant      Label = "Distant"
)

// Color is the presentation token of a score band.
type Color string

// Colors, aligned with the labels.
const (
	ColorClose        Color = "text-green-600"
	ColorGood         Color = "text-blue-600"
	ColorModerate     Color = "text-yellow-600"
	ColorAcquaintance Color = "text-orange-600"
	ColorDistant      Color = "text-gray-500"
)

// band thresholds are inclusive lower bounds evaluated highest first.
type band struct {
	min   int
	label Label
	color Color
}

var bands = [...]band{ //nolint:gochecknoglobals // immutable lookup table
	{80, LabelClose, ColorClose},
	{60, LabelGood, ColorGood},
	{40, LabelModerate, ColorModerate},
	{20, LabelAcquaintance, ColorAcquaintance},
}

// Breakdown exposes the real-valued sub-scores behind a total.
type Breakdown struct {
	Completeness float64 `json:"completeness"`
	Recency      float64 `json:"recency"`
	Frequency    float64 `json:"frequency"`
	Total        int     `json:"total"`
}

// Score returns the relationship score in [0, 100].
func Score(p model.Profile, history []time.Time, now time.Time) int {
	return Compute(p, history, now).Total
}

// Compute returns the score together with its sub-scores. The three
// sub-scores are summed as reals and rounded once.
func Compute(p model.Profile, history []time.Time, now time.Time) Breakdown {
	b := Breakdown{
		Completeness: Completeness(p),
		Recency:      Recency(history, now),
		Frequency:    Frequency(history, now),
	}
	total := int(math.Round(b.Completeness + b.Recency + b.Frequency))
	b.Total = max(minScore, min(maxScore, total))
	return b
}

// Completeness returns filled/10 * 50.
func Completeness(p model.Profile) float64 {
	filled := 0
	for _, s := range []*string{p.Name, p.Phone, p.Email, p.Location, p.Job, p.Company, p.PhotoURL, p.HowWeMet, p.Notes} {
		if present(s) {
			filled++
		}
	}
	if p.Birthday != nil && !p.Birthday.IsZero() {
		filled++
	}
	return float64(filled) * CompletenessMax / ProfileFields
}

// present treats nil and whitespace-only strings as absent.
func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// DaysSince returns whole days between the most recent timestamp in history
// and now. ok is false for an empty history. Future timestamps yield a
// non-positive value.
func DaysSince(history []time.Time, now time.Time) (days int, ok bool) {
	if len(history) == 0 {
		return 0, false
	}
	latest := history[0]
	for _, ts := range history[1:] {
		if ts.After(latest) {
			latest = ts
		}
	}
	return int(math.Floor(float64(now.Sub(latest)) / float64(day))), true
}

// Recency decays linearly from 30 at zero days to 0 at 180 days.
func Recency(history []time.Time, now time.Time) float64 {
	days, ok := DaysSince(history, now)
	switch {
	case !ok:
		return 0
	case days <= 0:
		return RecencyMax
	case days >= RecencyHorizonDays:
		return 0
	default:
		return RecencyMax * float64(RecencyHorizonDays-days) / RecencyHorizonDays
	}
}

// Frequency counts interactions at or after now minus six calendar months,
// saturating at ten.
func Frequency(history []time.Time, now time.Time) float64 {
	since := now.AddDate(0, -FrequencyWindowMonths, 0)
	count := 0
	for _, ts := range history {
		if !ts.Before(since) {
			count++
		}
	}
	return float64(min(count, FrequencyCap)) * FrequencyMax / FrequencyCap
}

// LabelFor maps a score to its qualitative label.
func LabelFor(score int) Label {
	for _, b := range bands {
		if score >= b.min {
			return b.label
		}
	}
	return LabelDistant
}

// ColorFor maps a score to its presentation token.
func ColorFor(score int) Color {
	for _, b := range bands {
		if score >= b.min {
			return b.color
		}
	}
	return ColorDistant
}
