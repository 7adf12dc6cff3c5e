package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/circle/internal/adapters/http/api"
	"github.com/okian/circle/internal/adapters/repository"
	service "github.com/okian/circle/internal/app"
	"github.com/okian/circle/internal/domain/types"
	"github.com/okian/circle/pkg/logger"
)

var now = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	svc    *service.Service
	userID string
}

func newTestServer(opts ...api.Option) testServer {
	ctx := context.Background()
	store := repository.NewMemoryStore(repository.WithClock(func() time.Time { return now }))
	svc := service.New(
		service.WithStore(store),
		service.WithClock(func() time.Time { return now }),
		service.WithLogger(logger.NewNop()),
		service.WithDashboardLimit(5),
	)
	So(svc.Start(ctx), ShouldBeNil)
	u, err := svc.RegisterUser(ctx, "demo@circle.app", "Demo User")
	So(err, ShouldBeNil)

	router := mux.NewRouter()
	api.NewServer(svc, svc, append([]api.Option{api.WithMaxListLimit(50)}, opts...)...).Register(router)
	return testServer{router: router, svc: svc, userID: u.ID}
}

// do sends a request as the fixture user unless a header overrides it.
func (ts testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		So(err, ShouldBeNil)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.UserHeader, ts.userID)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestServer_UserScoping(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer()

		Convey("When a request carries no user", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			Convey("Then it is rejected with 401", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decode[errorBody](w).Code, ShouldEqual, "unauthorized")
			})
		})

		Convey("When the user is given as a query parameter", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/contacts?userId="+ts.userID, nil)
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When another user reads a contact", func() {
			created := ts.do(http.MethodPost, "/api/contacts", map[string]any{"name": "Sarah Chen"})
			So(created.Code, ShouldEqual, http.StatusCreated)
			id := decode[types.ContactView](created).ID

			other, err := ts.svc.RegisterUser(context.Background(), "other@circle.app", "Other")
			So(err, ShouldBeNil)
			w := ts.do(http.MethodGet, "/api/contacts/"+id, nil, api.UserHeader, other.ID)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Users(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer()

		Convey("When registering a user", func() {
			w := ts.do(http.MethodPost, "/api/users", map[string]any{"email": "alex@example.com", "name": "Alex"})

			Convey("Then the user can be read back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var u struct {
					ID    string `json:"id"`
					Email string `json:"email"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &u), ShouldBeNil)
				So(u.Email, ShouldEqual, "alex@example.com")

				got := ts.do(http.MethodGet, "/api/users/"+u.ID, nil)
				So(got.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the email is invalid", func() {
			w := ts.do(http.MethodPost, "/api/users", map[string]any{"email": "nope"})

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestServer_Contacts(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer()

		Convey("When creating a contact with a name and phone", func() {
			w := ts.do(http.MethodPost, "/api/contacts", map[string]any{"name": "Mom", "phone": "555-0100"})
			So(w.Code, ShouldEqual, http.StatusCreated)
			view := decode[types.ContactView](w)

			Convey("Then it is scored from its profile alone", func() {
				So(view.Score, ShouldEqual, 10)
				So(string(view.Label), ShouldEqual, "Distant")
				So(string(view.Color), ShouldEqual, "text-gray-500")
				So(view.DaysSince, ShouldBeNil)
			})

			Convey("Then patching a field raises the score", func() {
				p := ts.do(http.MethodPatch, "/api/contacts/"+view.ID, map[string]any{"job": "Teacher"})
				So(p.Code, ShouldEqual, http.StatusOK)
				So(decode[types.ContactView](p).Score, ShouldEqual, 15)
			})

			Convey("Then it can be fetched and listed", func() {
				So(ts.do(http.MethodGet, "/api/contacts/"+view.ID, nil).Code, ShouldEqual, http.StatusOK)
				list := decode[[]types.ContactView](ts.do(http.MethodGet, "/api/contacts?search=mo", nil))
				So(len(list), ShouldEqual, 1)
			})

			Convey("Then deleting it makes it unknown", func() {
				d := ts.do(http.MethodDelete, "/api/contacts/"+view.ID, nil)
				So(d.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(d.Body.String()), ShouldEqual, `{"success":true}`)
				So(ts.do(http.MethodGet, "/api/contacts/"+view.ID, nil).Code, ShouldEqual, http.StatusNotFound)
				So(ts.do(http.MethodDelete, "/api/contacts/"+view.ID, nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the body is invalid", func() {
			cases := []any{
				map[string]any{"phone": "555"},
				map[string]any{"name": "X", "email": "not-an-email"},
				map[string]any{"name": "X", "unknown": true},
				map[string]any{"name": "X", "birthday": "yesterday"},
				"{not json",
			}

			Convey("Then each is a bad request", func() {
				for _, body := range cases {
					w := ts.do(http.MethodPost, "/api/contacts", body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
				}
			})
		})

		Convey("When the limit is not a number", func() {
			w := ts.do(http.MethodGet, "/api/contacts?limit=abc", nil)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unsupported method is used", func() {
			w := ts.do(http.MethodPut, "/api/contacts", nil)

			Convey("Then the router rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

// seedABC creates contacts A (never contacted), B (45 days ago) and C
// (3 days ago) through the API.
func seedABC(ts testServer) map[string]string {
	ids := map[string]string{}
	for _, name := range []string{"A", "B", "C"} {
		w := ts.do(http.MethodPost, "/api/contacts", map[string]any{"name": name})
		So(w.Code, ShouldEqual, http.StatusCreated)
		ids[name] = decode[types.ContactView](w).ID
	}
	for name, days := range map[string]int{"B": 45, "C": 3} {
		w := ts.do(http.MethodPost, "/api/interactions", map[string]any{
			"contactIds": []string{ids[name]},
			"date":       now.AddDate(0, 0, -days).Format(time.RFC3339),
			"type":       "CALL",
		})
		So(w.Code, ShouldEqual, http.StatusCreated)
	}
	return ids
}

func TestServer_Reconnect(t *testing.T) {
	Convey("Given contacts with different staleness", t, func() {
		ts := newTestServer()
		ids := seedABC(ts)

		Convey("When listing in reconnect order with a limit", func() {
			w := ts.do(http.MethodGet, "/api/contacts?reconnect=true&limit=2", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			list := decode[[]types.ContactView](w)

			Convey("Then the never-contacted and stalest contacts come first", func() {
				So(len(list), ShouldEqual, 2)
				So(list[0].ID, ShouldEqual, ids["A"])
				So(list[1].ID, ShouldEqual, ids["B"])
				So(*list[1].DaysSince, ShouldEqual, 45)
				So(list[1].Score, ShouldEqual, 30)
			})
		})

		Convey("When reading the dashboard", func() {
			w := ts.do(http.MethodGet, "/api/dashboard", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			view := decode[types.DashboardView](w)

			Convey("Then counts and the reconnect list are returned", func() {
				So(view.Stats.TotalContacts, ShouldEqual, 3)
				So(view.Stats.RecentInteractions, ShouldEqual, 2)
				So(view.Stats.ContactsToReconnect, ShouldEqual, 1)
				So(len(view.Reconnect), ShouldEqual, 3)
				So(view.Reconnect[0].ID, ShouldEqual, ids["A"])
				So(view.Reconnect[2].ID, ShouldEqual, ids["C"])
				So(view.Reconnect[2].Score, ShouldEqual, 37)
			})
		})

		Convey("When the dashboard limit is given", func() {
			view := decode[types.DashboardView](ts.do(http.MethodGet, "/api/dashboard?limit=1", nil))

			Convey("Then the reconnect list is truncated", func() {
				So(len(view.Reconnect), ShouldEqual, 1)
			})
		})
	})
}

func TestServer_Interactions(t *testing.T) {
	Convey("Given a contact", t, func() {
		ts := newTestServer()
		created := ts.do(http.MethodPost, "/api/contacts", map[string]any{"name": "Marcus Johnson"})
		So(created.Code, ShouldEqual, http.StatusCreated)
		id := decode[types.ContactView](created).ID

		Convey("When logging an interaction without contacts", func() {
			w := ts.do(http.MethodPost, "/api/interactions", map[string]any{
				"contactIds": []string{},
				"date":       now.Format(time.RFC3339),
				"type":       "CALL",
			})

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Message, ShouldContainSubstring, "at least one contact is required")
			})
		})

		Convey("When the type is unknown", func() {
			w := ts.do(http.MethodPost, "/api/interactions", map[string]any{
				"contactIds": []string{id},
				"date":       "2025-05-30",
				"type":       "FAX",
			})

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When no date is given", func() {
			w := ts.do(http.MethodPost, "/api/interactions", map[string]any{
				"contactIds": []string{id},
				"type":       "CALL",
			})

			Convey("Then it is logged at the current time", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var it struct {
					Date time.Time `json:"date"`
					Type string    `json:"type"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &it), ShouldBeNil)
				So(it.Date.Equal(now), ShouldBeTrue)
				So(it.Type, ShouldEqual, "CALL")

				got := decode[types.ContactView](ts.do(http.MethodGet, "/api/contacts/"+id, nil))
				So(*got.DaysSince, ShouldEqual, 0)
			})
		})

		Convey("When the date is malformed", func() {
			w := ts.do(http.MethodPost, "/api/interactions", map[string]any{
				"contactIds": []string{id},
				"date":       "30/05/2025",
			})

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Message, ShouldContainSubstring, "date")
			})
		})

		Convey("When the same idempotency key is submitted twice", func() {
			body := map[string]any{
				"contactIds": []string{id},
				"date":       "2025-05-30",
				"type":       "met up",
				"note":       "Tennis at the park",
			}
			first := ts.do(http.MethodPost, "/api/interactions", body, api.IdempotencyHeader, "k-1")
			second := ts.do(http.MethodPost, "/api/interactions", body, api.IdempotencyHeader, "k-1")

			Convey("Then only one interaction is stored", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)

				var a, b struct {
					ID        string `json:"id"`
					Type      string `json:"type"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.Unmarshal(first.Body.Bytes(), &a), ShouldBeNil)
				So(json.Unmarshal(second.Body.Bytes(), &b), ShouldBeNil)
				So(a.Type, ShouldEqual, "MET_UP")
				So(a.Duplicate, ShouldBeFalse)
				So(b.Duplicate, ShouldBeTrue)
				So(b.ID, ShouldEqual, a.ID)

				list := ts.do(http.MethodGet, "/api/interactions?contactId="+id, nil)
				So(list.Code, ShouldEqual, http.StatusOK)
				So(len(decode[[]map[string]any](list)), ShouldEqual, 1)
			})
		})

		Convey("When filtering by type and date range", func() {
			for _, typ := range []string{"CALL", "TEXT"} {
				w := ts.do(http.MethodPost, "/api/interactions", map[string]any{
					"contactIds": []string{id},
					"date":       "2025-05-20T09:00:00Z",
					"type":       typ,
				})
				So(w.Code, ShouldEqual, http.StatusCreated)
			}

			Convey("Then only matching interactions are returned", func() {
				calls := decode[[]map[string]any](ts.do(http.MethodGet, "/api/interactions?type=call", nil))
				So(len(calls), ShouldEqual, 1)

				inRange := decode[[]map[string]any](ts.do(http.MethodGet,
					"/api/interactions?startDate=2025-05-01&endDate=2025-05-31", nil))
				So(len(inRange), ShouldEqual, 2)

				outOfRange := decode[[]map[string]any](ts.do(http.MethodGet,
					"/api/interactions?startDate=2025-01-01&endDate=2025-01-31", nil))
				So(len(outOfRange), ShouldEqual, 0)
			})
		})
	})
}

func TestServer_GroupsAndActivities(t *testing.T) {
	Convey("Given an API server", t, func() {
		ts := newTestServer()

		Convey("When creating a group and a member", func() {
			g := ts.do(http.MethodPost, "/api/groups", map[string]any{"name": "Family", "color": "#ef4444"})
			So(g.Code, ShouldEqual, http.StatusCreated)
			var group struct {
				ID           string `json:"id"`
				ContactCount int    `json:"contactCount"`
			}
			So(json.Unmarshal(g.Body.Bytes(), &group), ShouldBeNil)

			c := ts.do(http.MethodPost, "/api/contacts", map[string]any{"name": "Mom", "groupIds": []string{group.ID}})
			So(c.Code, ShouldEqual, http.StatusCreated)

			Convey("Then the group reports its member", func() {
				got := ts.do(http.MethodGet, "/api/groups/"+group.ID, nil)
				So(got.Code, ShouldEqual, http.StatusOK)
				So(json.Unmarshal(got.Body.Bytes(), &group), ShouldBeNil)
				So(group.ContactCount, ShouldEqual, 1)

				filtered := decode[[]types.ContactView](ts.do(http.MethodGet, "/api/contacts?groupId="+group.ID, nil))
				So(len(filtered), ShouldEqual, 1)
			})

			Convey("Then the group can be renamed and deleted", func() {
				So(ts.do(http.MethodPatch, "/api/groups/"+group.ID, map[string]any{"name": "Kin"}).Code, ShouldEqual, http.StatusOK)
				So(ts.do(http.MethodDelete, "/api/groups/"+group.ID, nil).Code, ShouldEqual, http.StatusOK)
				So(ts.do(http.MethodGet, "/api/groups/"+group.ID, nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the group colour is not hex", func() {
			w := ts.do(http.MethodPost, "/api/groups", map[string]any{"name": "Work", "color": "blue"})

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When managing activities", func() {
			a := ts.do(http.MethodPost, "/api/activities", map[string]any{"name": "Hiking", "emoji": "🥾"})
			So(a.Code, ShouldEqual, http.StatusCreated)
			var act struct {
				ID    string `json:"id"`
				Emoji string `json:"emoji"`
			}
			So(json.Unmarshal(a.Body.Bytes(), &act), ShouldBeNil)

			Convey("Then they are listed, updated and deleted", func() {
				So(act.Emoji, ShouldEqual, "🥾")
				So(len(decode[[]map[string]any](ts.do(http.MethodGet, "/api/activities", nil))), ShouldEqual, 1)
				So(ts.do(http.MethodPatch, "/api/activities/"+act.ID, map[string]any{"emoji": "⛰️"}).Code, ShouldEqual, http.StatusOK)
				So(ts.do(http.MethodGet, "/api/activities/"+act.ID, nil).Code, ShouldEqual, http.StatusOK)
				So(ts.do(http.MethodDelete, "/api/activities/"+act.ID, nil).Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(ts.do(http.MethodGet, "/api/activities", nil).Body.String()), ShouldEqual, "[]")
			})
		})
	})
}

func TestServer_RateLimit(t *testing.T) {
	Convey("Given a server allowing one write per caller", t, func() {
		ts := newTestServer(api.WithRateLimit(0.001, 1))

		Convey("When two writes arrive back to back", func() {
			first := ts.do(http.MethodPost, "/api/groups", map[string]any{"name": "Gym Buddies"})
			second := ts.do(http.MethodPost, "/api/groups", map[string]any{"name": "Neighbors"})

			Convey("Then the second is throttled", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldNotBeEmpty)
				So(decode[errorBody](second).Code, ShouldEqual, "rate_limited")
			})

			Convey("Then reads are not throttled", func() {
				So(ts.do(http.MethodGet, "/api/groups", nil).Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestServer_HealthAndStats(t *testing.T) {
	Convey("Given an API server that has served a request", t, func() {
		ts := newTestServer()
		ts.do(http.MethodGet, "/api/contacts", nil)

		Convey("When scraping /healthz", func() {
			w := ts.do(http.MethodGet, "/healthz", nil)

			Convey("Then service metrics are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "circle_http_requests_total")
			})
		})

		Convey("When reading /stats", func() {
			w := ts.do(http.MethodGet, "/stats", nil)

			Convey("Then the service reports it is started", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				stats := decode[map[string]any](w)
				So(stats["started"], ShouldEqual, true)
			})
		})
	})
}
