package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/logging"
	"github.com/JonMunkholm/farmerimport/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

const dashboardHistory = 10

// render writes a page with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	refs, err := s.service.ReferenceData(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	recent, err := s.service.RecentImports(r.Context(), dashboardHistory)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render(w, r, http.StatusOK, templates.Dashboard(templates.DashboardData{
		Organizations: refs.Organizations,
		Recent:        recent,
		Sessions:      s.service.SessionCount(),
		Limiter:       s.service.Limiter().Status(),
	}))
}

func (s *Server) handleCreateImportForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, r, errBadRequest("invalid form"))
		return
	}
	sess, err := s.service.CreateSession(r.Context(), strings.TrimSpace(r.PostFormValue("defaultOrganization")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	http.Redirect(w, r, "/imports/"+sess.ID, http.StatusSeeOther)
}

func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.renderReview(w, r, http.StatusOK, sess, nil)
}

// renderReview shows the session, with alert above it when an action failed.
func (s *Server) renderReview(w http.ResponseWriter, r *http.Request, status int, sess *core.ImportSession, alert error) {
	data := templates.ReviewData{
		Snapshot: sess.Snapshot(),
		Accept:   strings.Join(core.AcceptedMediaTypes, ","),
	}
	// A failed parse already shows through the snapshot error.
	if alert != nil && data.Snapshot.Error == "" {
		msg := core.MapError(alert)
		data.Alert = templates.ErrorAlert(msg.Message, msg.Action, msg.Code)
	}
	render(w, r, status, templates.Review(data))
}

// handleUploadForm is the page flavour of handleUpload: it always lands back
// on the review page.
func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.service.Session(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	file, err := s.readFileInput(w, r)
	if err == nil {
		_, err = s.service.Upload(r.Context(), id, file)
	}
	if err != nil {
		logging.ForSession(r.Context(), id).Warn("upload rejected", "error", err)
		s.renderReview(w, r, statusFor(err), sess, err)
		return
	}
	http.Redirect(w, r, "/imports/"+id, http.StatusSeeOther)
}

func (s *Server) handleRemoveFileForm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := sess.RemoveFile(); err != nil {
		s.renderReview(w, r, statusFor(err), sess, err)
		return
	}
	http.Redirect(w, r, "/imports/"+sess.ID, http.StatusSeeOther)
}

func (s *Server) handleCommitForm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	_, err = s.service.Commit(withRequestMetadata(r.Context(), r), sess.ID)
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		respondError(w, r, err)
	case err != nil:
		s.renderReview(w, r, statusFor(err), sess, err)
	default:
		http.Redirect(w, r, "/imports/"+sess.ID, http.StatusSeeOther)
	}
}
