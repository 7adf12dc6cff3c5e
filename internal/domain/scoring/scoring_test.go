package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/circle/internal/domain/model"
	scoring "github.com/okian/circle/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2025, time.March, 15, 18, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func fullProfile() model.Profile {
	return model.Profile{
		Name:     ptr("Sarah Chen"),
		Birthday: ptr(time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC)),
		Phone:    ptr("+1-555-0101"),
		Email:    ptr("sarah@example.com"),
		Location: ptr("San Francisco, CA"),
		Job:      ptr("Product Designer"),
		Company:  ptr("Figma"),
		PhotoURL: ptr("https://example.com/sarah.jpg"),
		HowWeMet: ptr("College roommate"),
		Notes:    ptr("Loves hiking"),
	}
}

func daysAgo(days ...int) []time.Time {
	out := make([]time.Time, len(days))
	for i, d := range days {
		out[i] = now.AddDate(0, 0, -d)
	}
	return out
}

func TestCompleteness(t *testing.T) {
	Convey("Given profiles with varying fields", t, func() {
		Convey("When every field is filled", func() {
			Convey("Then completeness is 50", func() {
				So(scoring.Completeness(fullProfile()), ShouldEqual, 50.0)
			})
		})

		Convey("When the profile is empty", func() {
			Convey("Then completeness is 0", func() {
				So(scoring.Completeness(model.Profile{}), ShouldEqual, 0.0)
			})
		})

		Convey("When fields are empty or whitespace", func() {
			p := model.Profile{
				Name:     ptr("Mom"),
				Phone:    ptr(""),
				Email:    ptr("   "),
				Birthday: ptr(time.Time{}),
			}
			Convey("Then they count as absent", func() {
				So(scoring.Completeness(p), ShouldEqual, 5.0)
			})
		})

		Convey("When three fields are filled", func() {
			p := model.Profile{Name: ptr("James Park"), Phone: ptr("555"), Job: ptr("Engineer")}
			Convey("Then completeness is 15", func() {
				So(scoring.Completeness(p), ShouldEqual, 15.0)
			})
		})
	})
}

func TestRecency(t *testing.T) {
	Convey("Given interaction histories", t, func() {
		Convey("When the history is empty", func() {
			So(scoring.Recency(nil, now), ShouldEqual, 0.0)
		})

		Convey("When the latest interaction is today", func() {
			So(scoring.Recency(daysAgo(0), now), ShouldEqual, 30.0)
			So(scoring.Recency([]time.Time{now.Add(-23 * time.Hour)}, now), ShouldEqual, 30.0)
		})

		Convey("When the latest interaction is in the future", func() {
			So(scoring.Recency([]time.Time{now.AddDate(0, 0, 3)}, now), ShouldEqual, 30.0)
		})

		Convey("When the latest interaction is exactly 180 days old", func() {
			So(scoring.Recency(daysAgo(180), now), ShouldEqual, 0.0)
			So(scoring.Recency(daysAgo(400), now), ShouldEqual, 0.0)
		})

		Convey("When the latest interaction is 90 days old", func() {
			So(scoring.Recency(daysAgo(90), now), ShouldEqual, 15.0)
		})

		Convey("When the history is unordered", func() {
			Convey("Then the maximum timestamp is used", func() {
				So(scoring.Recency(daysAgo(120, 90, 150), now), ShouldEqual, 15.0)
			})
		})

		Convey("When days since decreases", func() {
			Convey("Then recency never decreases", func() {
				prev := -1.0
				for d := 200; d >= -2; d-- {
					r := scoring.Recency(daysAgo(d), now)
					So(r, ShouldBeGreaterThanOrEqualTo, prev)
					prev = r
				}
			})
		})
	})
}

func TestFrequency(t *testing.T) {
	Convey("Given interaction histories", t, func() {
		Convey("When counting within six calendar months", func() {
			Convey("Then the lower bound is inclusive", func() {
				edge := now.AddDate(0, -6, 0)
				So(scoring.Frequency([]time.Time{edge}, now), ShouldEqual, 2.0)
				So(scoring.Frequency([]time.Time{edge.Add(-time.Second)}, now), ShouldEqual, 0.0)
			})

			Convey("Then future interactions are counted", func() {
				So(scoring.Frequency([]time.Time{now.AddDate(0, 0, 1)}, now), ShouldEqual, 2.0)
			})
		})

		Convey("When the count grows", func() {
			Convey("Then frequency is monotone and flat from ten", func() {
				prev := -1.0
				for n := 0; n <= 15; n++ {
					days := make([]int, n)
					for i := range days {
						days[i] = i * 3
					}
					f := scoring.Frequency(daysAgo(days...), now)
					So(f, ShouldBeGreaterThanOrEqualTo, prev)
					if n >= 10 {
						So(f, ShouldEqual, 20.0)
					}
					prev = f
				}
			})
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given the scorer", t, func() {
		Convey("When there is no history", func() {
			p := model.Profile{Name: ptr("Alex"), Email: ptr("alex@example.com"), Job: ptr("Chef")}
			Convey("Then the total equals the completeness sub-score", func() {
				b := scoring.Compute(p, nil, now)
				So(b.Recency, ShouldEqual, 0.0)
				So(b.Frequency, ShouldEqual, 0.0)
				So(b.Total, ShouldEqual, 15)
			})
		})

		Convey("When the profile is empty and there is no history", func() {
			s := scoring.Score(model.Profile{}, nil, now)
			Convey("Then the score is 0 and Distant", func() {
				So(s, ShouldEqual, 0)
				So(scoring.LabelFor(s), ShouldEqual, scoring.LabelDistant)
				So(scoring.ColorFor(s), ShouldEqual, scoring.ColorDistant)
			})
		})

		Convey("When the profile is full with ten recent interactions", func() {
			s := scoring.Score(fullProfile(), daysAgo(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), now)
			Convey("Then the score is 100 and Close", func() {
				So(s, ShouldEqual, 100)
				So(scoring.LabelFor(s), ShouldEqual, scoring.LabelClose)
			})
		})

		Convey("When sub-scores are fractional", func() {
			// 25 + 30*(1-45/180) + 2 = 49.5
			p := model.Profile{Name: ptr("Emily"), Phone: ptr("1"), Email: ptr("e@x"), Location: ptr("LA"), Job: ptr("Teacher")}
			b := scoring.Compute(p, daysAgo(45), now)
			Convey("Then they are summed before a single rounding", func() {
				So(b.Recency, ShouldEqual, 22.5)
				So(b.Total, ShouldEqual, 50)
			})
		})

		Convey("When called twice with identical input", func() {
			h := daysAgo(3, 40, 90)
			first := scoring.Compute(fullProfile(), h, now)
			second := scoring.Compute(fullProfile(), h, now)
			Convey("Then the output is identical and the input untouched", func() {
				So(second, ShouldResemble, first)
				So(h, ShouldResemble, daysAgo(3, 40, 90))
			})
		})
	})
}

func TestLabelBoundaries(t *testing.T) {
	Convey("Given scores at the label boundaries", t, func() {
		cases := []struct {
			score int
			label scoring.Label
			color scoring.Color
		}{
			{100, scoring.LabelClose, scoring.ColorClose},
			{80, scoring.LabelClose, scoring.ColorClose},
			{79, scoring.LabelGood, scoring.ColorGood},
			{60, scoring.LabelGood, scoring.ColorGood},
			{59, scoring.LabelModerate, scoring.ColorModerate},
			{40, scoring.LabelModerate, scoring.ColorModerate},
			{39, scoring.LabelAcquaintance, scoring.ColorAcquaintance},
			{20, scoring.LabelAcquaintance, scoring.ColorAcquaintance},
			{19, scoring.LabelDistant, scoring.ColorDistant},
			{0, scoring.LabelDistant, scoring.ColorDistant},
		}
		for _, tc := range cases {
			So(scoring.LabelFor(tc.score), ShouldEqual, tc.label)
			So(scoring.ColorFor(tc.score), ShouldEqual, tc.color)
		}
	})
}
