package model_test

import (
	"testing"
	"time"

	"github.com/okian/circle/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseInteractionType(t *testing.T) {
	Convey("Given interaction type strings", t, func() {
		Convey("When parsing canonical and loose spellings", func() {
			cases := map[string]model.InteractionType{
				"CALL":   model.InteractionCall,
				"text":   model.InteractionText,
				"met up": model.InteractionMetUp,
				"Met-Up": model.InteractionMetUp,
				" other": model.InteractionOther,
			}
			Convey("Then each maps to its type", func() {
				for in, want := range cases {
					got, err := model.ParseInteractionType(in)
					So(err, ShouldBeNil)
					So(got, ShouldEqual, want)
				}
			})
		})

		Convey("When parsing an unknown type", func() {
			_, err := model.ParseInteractionType("EMAIL")
			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestContactProjections(t *testing.T) {
	Convey("Given a contact with a few interactions", t, func() {
		phone := "555-0101"
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		c := model.Contact{
			Name:  "Sarah Chen",
			Phone: &phone,
			Interactions: []model.Interaction{
				{Date: now.AddDate(0, 0, -10)},
				{Date: now.AddDate(0, 0, -2)},
				{Date: now.AddDate(0, 0, -30)},
			},
		}

		Convey("Then Profile carries the scored fields", func() {
			p := c.Profile()
			So(*p.Name, ShouldEqual, "Sarah Chen")
			So(p.Phone, ShouldEqual, &phone)
			So(p.Email, ShouldBeNil)
		})

		Convey("Then LastInteraction finds the maximum regardless of order", func() {
			last, ok := c.LastInteraction()
			So(ok, ShouldBeTrue)
			So(last, ShouldEqual, now.AddDate(0, 0, -2))
			So(c.InteractionDates(), ShouldHaveLength, 3)
		})

		Convey("Then a contact without interactions has no last interaction", func() {
			_, ok := model.Contact{Name: "Mom"}.LastInteraction()
			So(ok, ShouldBeFalse)
		})
	})
}
