package dashboard

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"trcinventory/internal/auth"
	"trcinventory/internal/data"
	"trcinventory/internal/logger"
	"trcinventory/internal/middleware"
	"trcinventory/internal/security"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Pre-parse templates at startup
var pageTmpl = template.Must(template.New("pages").Funcs(template.FuncMap{
	"count":   formatCount,
	"dateAge": dateAge,
}).ParseFS(templateFS, "templates/*.tmpl"))

type DashboardPageData struct {
	Username           string
	Summary            Summary
	ProcessingDuration string
}

type LoginPageData struct {
	CSRFToken string
	Username  string
	Error     string
}

// Pages serves the browser login form and dashboard.
type Pages struct {
	dashboard *Service
	auth      *auth.Service
}

func NewPages(dashboard *Service, authService *auth.Service) *Pages {
	return &Pages{dashboard: dashboard, auth: authService}
}

// SummaryHandler handles GET /api/dashboard
func (s *Service) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
		return
	}
	middleware.WriteAPISuccess(w, r, s.Summary(r.Context()))
}

// DashboardHandler handles GET /dashboard (guarded)
func (p *Pages) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)
	startTime := time.Now()

	session, _ := security.SessionFrom(r.Context())
	pageData := DashboardPageData{
		Username: session.Username,
		Summary:  p.dashboard.Summary(r.Context()),
	}
	pageData.ProcessingDuration = time.Since(startTime).String()

	p.render(w, r, http.StatusOK, "dashboard.tmpl", pageData)
}

// LoginHandler handles GET and POST /login
func (p *Pages) LoginHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	switch r.Method {
	case http.MethodGet:
		p.render(w, r, http.StatusOK, "login.tmpl", LoginPageData{CSRFToken: security.GenerateCSRFToken()})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			logger.LogHTTPError(r, http.StatusBadRequest, err)
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		username := r.PostFormValue("username")
		retry := LoginPageData{CSRFToken: security.GenerateCSRFToken(), Username: username}

		if !security.ValidateCSRFToken(r.PostFormValue("csrf_token")) {
			retry.Error = "Your login form expired, please try again."
			p.render(w, r, http.StatusForbidden, "login.tmpl", retry)
			return
		}

		session, err := p.auth.Login(r.Context(), username, r.PostFormValue("password"), logger.GetClientIP(r))
		if err != nil {
			status := http.StatusUnauthorized
			retry.Error = "Invalid username or password."
			if errors.Is(err, auth.ErrThrottled) {
				status = http.StatusTooManyRequests
				retry.Error = "Too many failed attempts, please wait and try again."
			}
			p.render(w, r, status, "login.tmpl", retry)
			return
		}

		auth.SetSessionCookie(w, session)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// LogoutHandler handles POST /logout (guarded)
func (p *Pages) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if session, ok := security.SessionFrom(r.Context()); ok {
		p.auth.Logout(r.Context(), session)
	}
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// render executes into a buffer first so a template error can still produce a clean 500.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, pageData interface{}) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, name, pageData); err != nil {
		logger.LogHTTPError(r, http.StatusInternalServerError, err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func formatCount(n *int) string {
	if n == nil {
		return "unavailable"
	}
	return humanize.Comma(int64(*n))
}

// dateAge renders a YYYY-MM-DD date relative to now, e.g. "3 days ago".
func dateAge(date string) string {
	t, err := time.ParseInLocation(data.DateLayout, date, time.Local)
	if err != nil {
		return date
	}
	if time.Since(t) < 24*time.Hour && time.Since(t) >= 0 {
		return "today"
	}
	return humanize.Time(t)
}
