package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/fpconsole/internal/api"
	"github.com/wolfeidau/fpconsole/internal/models"
	"github.com/wolfeidau/fpconsole/internal/router"
	"github.com/wolfeidau/fpconsole/internal/session"
)

// SessionView is the JSON view of a workspace session.
type SessionView struct {
	Authenticated bool         `json:"authenticated"`
	Admin         bool         `json:"admin"`
	User          *models.User `json:"user,omitempty"`
	Message       string       `json:"message,omitempty"`
	Redirect      string       `json:"redirect,omitempty"`
}

func sessionView(sess *session.Session) SessionView {
	return SessionView{
		Authenticated: sess.IsAuthenticated(),
		Admin:         sess.IsAdmin(),
		User:          sess.User,
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"workspaces": s.workspaces.len(),
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionView(ws.sessions.Snapshot(r.Context())))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())

	var creds models.Credentials
	if err := decodeBody(r, &creds); err != nil {
		badRequest(w, r, err)
		return
	}

	user, err := ws.sessions.Login(r.Context(), creds)
	if err != nil {
		status, body := errorResponse(err)
		body.Message = session.FailureMessage(err, session.MsgLoginFailed)
		body.Redirect = ""
		writeErrorBody(w, r, err, status, body)
		return
	}

	view := sessionView(&session.Session{User: user})
	view.Redirect = router.LandingPath
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())

	var reg models.Registration
	if err := decodeBody(r, &reg); err != nil {
		badRequest(w, r, err)
		return
	}

	if err := ws.sessions.Register(r.Context(), reg); err != nil {
		status, body := errorResponse(err)
		body.Message = session.FailureMessage(err, session.MsgRegisterFailed)
		body.Redirect = ""
		writeErrorBody(w, r, err, status, body)
		return
	}

	writeJSON(w, http.StatusCreated, SessionView{Message: session.MsgRegistered, Redirect: router.LoginPath})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())

	if err := ws.sessions.Logout(r.Context()); err != nil {
		status, body := errorResponse(err)
		body.Message = session.MsgLogoutFailed
		body.Redirect = router.LoginPath
		writeErrorBody(w, r, err, status, body)
		return
	}

	writeJSON(w, http.StatusOK, SessionView{Message: session.MsgLoggedOut, Redirect: router.LoginPath})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())

	user, err := ws.sessions.Refresh(r.Context())
	if err != nil {
		status, body := errorResponse(err)
		body.Redirect = router.LoginPath
		writeErrorBody(w, r, err, status, body)
		return
	}

	writeJSON(w, http.StatusOK, sessionView(&session.Session{User: user}))
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	writeJSON(w, http.StatusOK, ws.guard.Evaluate(r.Context(), r.URL.Query().Get("path")))
}

func (s *Server) routeTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": router.Routes()})
}

func (s *Server) logActionTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": api.LogActionTypes()})
}

// passthrough forwards /api/... to the backend through the workspace client, so
// the call gets the retry, normalization and session handling of every other call.
func (s *Server) passthrough(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())

	payload, err := readBody(w, r)
	if err != nil {
		badRequest(w, r, err)
		return
	}

	var body any
	if len(payload) > 0 {
		body = json.RawMessage(payload)
	}

	path := strings.TrimPrefix(r.URL.Path, "/api")

	var out json.RawMessage
	if err := ws.client.Do(r.Context(), r.Method, path, r.URL.Query(), body, &out); err != nil {
		writeError(w, r, err)
		return
	}

	if len(out) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to write response")
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }} | Fingerprint Console</title>
</head>
<body data-route="{{ .Route.Path }}" data-route-name="{{ .Route.Name }}">
<div id="app" data-username="{{ .Username }}" data-admin="{{ .Admin }}"></div>
</body>
</html>
`))

type pageData struct {
	Title    string
	Route    router.Route
	Username string
	Admin    bool
}

// page serves the console pages behind the route guard.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	ws := workspaceFromContext(r.Context())

	d := ws.guard.Evaluate(r.Context(), r.URL.Path)
	switch {
	case d.Reason == router.ReasonNotFound:
		http.NotFound(w, r)
		return
	case d.Redirect != "":
		http.Redirect(w, r, d.Redirect, http.StatusFound)
		return
	}

	sess := ws.sessions.Snapshot(r.Context())
	data := pageData{
		Title:    d.Route.Name,
		Route:    d.Route,
		Username: sess.Username(),
		Admin:    sess.IsAdmin(),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && !json.Valid(data) {
		return nil, errors.New("request body is not valid JSON")
	}

	return data, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
