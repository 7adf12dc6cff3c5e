// Package site renders the HTML reconnect dashboard served at the root path.
package site

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/circle/internal/domain/types"
	"github.com/okian/circle/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("dashboard render failed")
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"days": formatDays,
}).ParseFS(templateFS, "templates/dashboard.html"))

// Dashboarder provides the data behind the page.
type Dashboarder interface {
	Dashboard(ctx context.Context, userID string, limit int) (types.DashboardView, error)
}

// Handler renders the dashboard for the user given by ?userId.
type Handler struct {
	deps   Dashboarder
	now    func() time.Time
	logger logger.Logger
}

// NewHandler creates a dashboard page handler.
func NewHandler(deps Dashboarder, l logger.Logger) *Handler {
	if l == nil {
		l = logger.NewNop()
	}
	return &Handler{deps: deps, now: time.Now, logger: l}
}

// Register attaches the dashboard page to router at "/".
func Register(router *mux.Router, h *Handler) {
	if router == nil {
		panic("router is nil")
	}
	router.HandleFunc("/", h.HandleRoot).Methods(http.MethodGet)
}

type pageData struct {
	UserID string
	Now    time.Time
	View   types.DashboardView
}

// HandleRoot handles GET / requests. Without a userId it renders a form
// asking for one.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	data := pageData{UserID: strings.TrimSpace(r.URL.Query().Get("userId")), Now: h.now().UTC()}
	if data.UserID != "" {
		view, err := h.deps.Dashboard(r.Context(), data.UserID, 0)
		if err != nil {
			h.logger.Warn(r.Context(), "dashboard unavailable", logger.String("userId", data.UserID), logger.Error(err))
			http.Error(w, "dashboard unavailable", http.StatusServiceUnavailable)
			return
		}
		data.View = view
	}

	var buf strings.Builder
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		h.logger.Error(r.Context(), "render dashboard", logger.Error(fmt.Errorf("%w: %w", ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(buf.String()))
}

func formatDays(d *int) string {
	switch {
	case d == nil:
		return "never"
	case *d <= 0:
		return "today"
	case *d == 1:
		return "yesterday"
	}
	return strconv.Itoa(*d) + " days ago"
}
