package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doc-chat/internal/app"
	"doc-chat/internal/extract"
	"doc-chat/internal/httputil"
	"doc-chat/internal/render"
	"doc-chat/internal/session"
)

// indexHandler opens a fresh session and sends the browser to its chat page.
func indexHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Start(r.Context())
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to start session", err, http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, chatPath(s.ID), http.StatusSeeOther)
	}
}

func chatPageHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := chatSession(deps, w, r)
		if !ok {
			return
		}
		renderChat(deps, w, http.StatusOK, render.Page{Session: s})
	}
}

func chatUploadHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := chatSession(deps, w, r)
		if !ok {
			return
		}
		filename, content, err := readUpload(w, r, deps.Config.MaxUploadSize)
		if err != nil {
			deps.Log.Warn("upload rejected", "session_id", s.ID, "err", err)
			renderChat(deps, w, http.StatusBadRequest, render.Page{Session: s, Error: err.Error()})
			return
		}
		if _, err := deps.Sessions.LoadDocument(r.Context(), s.ID, filename, content); err != nil {
			if errors.Is(err, extract.ErrDocumentFormat) {
				renderChat(deps, w, http.StatusBadRequest, render.Page{
					Session: s,
					Error:   "Error processing the PDF: " + err.Error(),
				})
				return
			}
			chatFail(deps, w, r, s.ID, err)
			return
		}
		http.Redirect(w, r, chatPath(s.ID), http.StatusSeeOther)
	}
}

func chatAskHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := chatSession(deps, w, r)
		if !ok {
			return
		}
		if _, err := deps.Sessions.Ask(r.Context(), s.ID, r.PostFormValue("question")); err != nil {
			if errors.Is(err, session.ErrNoDocument) {
				renderChat(deps, w, http.StatusConflict, render.Page{Session: s, Error: render.NoDocument})
				return
			}
			chatFail(deps, w, r, s.ID, err)
			return
		}
		http.Redirect(w, r, chatPath(s.ID), http.StatusSeeOther)
	}
}

// chatSession loads the session named in the URL. Unknown or expired sessions send
// the browser back to "/", which starts a new one.
func chatSession(deps app.Deps, w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return session.Session{}, false
	}
	s, err := deps.Sessions.Get(r.Context(), id)
	if err != nil {
		chatFail(deps, w, r, id, err)
		return session.Session{}, false
	}
	return s, true
}

func chatFail(deps app.Deps, w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		deps.Log.Info("chat session gone, starting over", "session_id", id)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	httputil.Fail(deps.Log.With("session_id", id), w, "internal error", err, http.StatusInternalServerError)
}

func renderChat(deps app.Deps, w http.ResponseWriter, status int, p render.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := render.HTML(w, p); err != nil {
		deps.Log.Error("failed to render chat page", "session_id", p.Session.ID, "err", err)
	}
}

func chatPath(id uuid.UUID) string {
	return "/chat/" + id.String()
}
