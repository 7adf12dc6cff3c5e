package seed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/circle/internal/adapters/repository"
	service "github.com/okian/circle/internal/app"
	"github.com/okian/circle/pkg/logger"
)

var now = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

func TestSeeder_Run(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(func() time.Time { return now }))
		s := New(store, WithClock(func() time.Time { return now }), WithWorkers(3))

		Convey("When seeding", func() {
			res, err := s.Run(ctx)
			So(err, ShouldBeNil)

			Convey("Then the demo data set is stored", func() {
				So(res.Skipped, ShouldBeFalse)
				So(len(res.Groups), ShouldEqual, 5)
				So(len(res.Activities), ShouldEqual, 6)
				So(len(res.Contacts), ShouldEqual, 6)
				So(res.Interactions, ShouldEqual, 4)

				u, err := store.GetUser(ctx, res.UserID)
				So(err, ShouldBeNil)
				So(u.Email, ShouldEqual, DemoEmail)
			})

			Convey("Then group and activity links are in place", func() {
				work, err := store.GetGroup(ctx, res.UserID, res.Groups["Work"])
				So(err, ShouldBeNil)
				So(work.ContactCount, ShouldEqual, 3)

				coffee, err := store.GetActivity(ctx, res.UserID, res.Activities["Coffee"])
				So(err, ShouldBeNil)
				So(coffee.ContactCount, ShouldEqual, 3)

				neighbors, err := store.GetGroup(ctx, res.UserID, res.Groups["Neighbors"])
				So(err, ShouldBeNil)
				So(neighbors.ContactCount, ShouldEqual, 0)
			})

			Convey("Then the reconnect ordering follows interaction staleness", func() {
				svc := service.New(
					service.WithStore(store),
					service.WithClock(func() time.Time { return now }),
					service.WithLogger(logger.NewNop()),
				)
				So(svc.Start(ctx), ShouldBeNil)

				views, err := svc.ListContacts(ctx, repository.ContactFilter{UserID: res.UserID}, true, 0)
				So(err, ShouldBeNil)
				names := make([]string, len(views))
				for i, v := range views {
					names[i] = v.Name
				}
				So(names, ShouldResemble, []string{
					"Alex Thompson", "James Park", "Emily Rodriguez", "Marcus Johnson", "Sarah Chen", "Mom",
				})
				So(*views[2].DaysSince, ShouldEqual, 45)
			})

			Convey("Then a second run leaves the data alone", func() {
				again, err := s.Run(ctx)
				So(err, ShouldBeNil)
				So(again.Skipped, ShouldBeTrue)
				So(again.UserID, ShouldEqual, res.UserID)

				n, err := store.Count(ctx, res.UserID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 6)
			})
		})
	})
}

func TestSeeder_RunSQLite(t *testing.T) {
	Convey("Given an empty sqlite file store", t, func() {
		ctx := context.Background()
		clock := func() time.Time { return now }
		store, err := repository.OpenSQLStore(ctx, repository.DriverSQLite,
			filepath.Join(t.TempDir(), "circle.db"), repository.WithClock(clock))
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		Convey("When seeding with several workers", func() {
			res, err := New(store, WithClock(clock), WithWorkers(4)).Run(ctx)

			Convey("Then every insert lands", func() {
				So(err, ShouldBeNil)
				So(len(res.Contacts), ShouldEqual, 6)
				So(res.Interactions, ShouldEqual, 4)

				n, err := store.Count(ctx, res.UserID)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 6)

				work, err := store.GetGroup(ctx, res.UserID, res.Groups["Work"])
				So(err, ShouldBeNil)
				So(work.ContactCount, ShouldEqual, 3)
			})
		})
	})
}

func TestBirthday(t *testing.T) {
	Convey("Given seed birthdays", t, func() {
		So(birthday(""), ShouldBeNil)
		So(birthday("1992-03-15").Equal(time.Date(1992, time.March, 15, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		So(func() { birthday("15/03/1992") }, ShouldPanic)
	})
}
