package reconnect_test

import (
	"testing"
	"time"

	"github.com/okian/circle/internal/domain/model"
	"github.com/okian/circle/internal/domain/reconnect"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)

func contact(name string, daysAgo ...int) model.Contact {
	c := model.Contact{ID: name, Name: name}
	for _, d := range daysAgo {
		c.Interactions = append(c.Interactions, model.Interaction{Date: now.AddDate(0, 0, -d)})
	}
	return c
}

func names(items []reconnect.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Contact.Name
	}
	return out
}

func TestReconnectOrdering(t *testing.T) {
	Convey("Given contacts A (none), B (45 days) and C (3 days)", t, func() {
		contacts := []model.Contact{contact("C", 3), contact("A"), contact("B", 45)}

		Convey("When ranking for reconnection", func() {
			items := reconnect.Rank(contacts, now, 0)

			Convey("Then the order is A, B, C", func() {
				So(names(items), ShouldResemble, []string{"A", "B", "C"})
			})

			Convey("Then staleness is reported", func() {
				So(items[0].LastInteraction, ShouldBeNil)
				So(items[0].DaysSince, ShouldBeNil)
				So(*items[1].DaysSince, ShouldEqual, 45)
				So(*items[2].DaysSince, ShouldEqual, 3)
			})
		})

		Convey("When a limit is applied", func() {
			items := reconnect.Rank(contacts, now, 2)
			Convey("Then only the most overdue remain", func() {
				So(names(items), ShouldResemble, []string{"A", "B"})
			})
		})
	})

	Convey("Given several contacts without interactions", t, func() {
		contacts := []model.Contact{contact("Zed"), contact("Amy", 1), contact("Bob"), contact("Cat")}

		Convey("When sorting", func() {
			items := reconnect.Build(contacts, now)
			reconnect.Sort(items)

			Convey("Then their input order is kept", func() {
				So(names(items), ShouldResemble, []string{"Zed", "Bob", "Cat", "Amy"})
			})
		})
	})

	Convey("Given a contact with unordered interactions", t, func() {
		items := reconnect.Build([]model.Contact{contact("Mom", 30, 1, 12)}, now)

		Convey("Then the most recent one is used", func() {
			So(*items[0].DaysSince, ShouldEqual, 1)
		})
	})
}
