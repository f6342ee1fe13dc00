package main

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/session"
)

type loginRequest struct {
	AccessCode string `json:"access_code"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	GateEnabled   bool       `json:"gate_enabled"`
	Expired       bool       `json:"expired,omitempty"`
	LoginTime     *time.Time `json:"login_time,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func authenticated(st session.State, ttl time.Duration) sessionResponse {
	login := st.LoginTime
	expires := st.ExpiresAt(ttl)
	return sessionResponse{Authenticated: true, GateEnabled: true, LoginTime: &login, ExpiresAt: &expires}
}

func loginHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Gate.Enabled() {
			httputil.WriteJSON(w, http.StatusOK, sessionResponse{Authenticated: true})
			return
		}

		code, err := readAccessCode(r)
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}

		st, err := deps.Gate.Login(r.Context(), httputil.ClientKey(r), code)
		switch {
		case errors.Is(err, session.ErrThrottled):
			w.Header().Set("Retry-After", "60")
			httputil.Fail(deps.Log, w, session.ErrThrottled.Error(), nil, http.StatusTooManyRequests)
			return
		case errors.Is(err, session.ErrInvalidCode):
			httputil.Fail(deps.Log, w, session.ErrInvalidCode.Error(), nil, http.StatusUnauthorized)
			return
		case err != nil:
			httputil.Fail(deps.Log, w, "login failed", err, http.StatusInternalServerError)
			return
		}

		httputil.SetSessionCookie(w, r, st, int(deps.Gate.TTL().Seconds()))
		deps.Log.Info("login succeeded", "client", httputil.ClientKey(r))
		httputil.WriteJSON(w, http.StatusOK, authenticated(st, deps.Gate.TTL()))
	}
}

// readAccessCode accepts the code as a JSON body or as a form field.
func readAccessCode(r *http.Request) (string, error) {
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4096)).Decode(&req); err != nil {
			return "", err
		}
		return req.AccessCode, nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return "", err
	}
	return r.FormValue("access_code"), nil
}

func logoutHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(httputil.SessionCookie); err == nil && deps.Gate.Enabled() {
			if err := deps.Gate.Logout(r.Context(), c.Value); err != nil {
				httputil.Fail(deps.Log, w, "logout failed", err, http.StatusInternalServerError)
				return
			}
		}
		httputil.ClearSessionCookie(w)
		httputil.WriteJSON(w, http.StatusOK, sessionResponse{GateEnabled: deps.Gate.Enabled()})
	}
}

func sessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Gate.Enabled() {
			httputil.WriteJSON(w, http.StatusOK, sessionResponse{Authenticated: true})
			return
		}
		var id string
		if c, err := r.Cookie(httputil.SessionCookie); err == nil {
			id = c.Value
		}
		st, err := deps.Gate.Check(r.Context(), id)
		switch {
		case err == nil:
			httputil.WriteJSON(w, http.StatusOK, authenticated(st, deps.Gate.TTL()))
		case errors.Is(err, session.ErrExpired):
			httputil.ClearSessionCookie(w)
			httputil.WriteJSON(w, http.StatusOK, sessionResponse{GateEnabled: true, Expired: true})
		case errors.Is(err, session.ErrUnauthenticated):
			httputil.WriteJSON(w, http.StatusOK, sessionResponse{GateEnabled: true})
		default:
			httputil.Fail(deps.Log, w, "session lookup failed", err, http.StatusInternalServerError)
		}
	}
}
