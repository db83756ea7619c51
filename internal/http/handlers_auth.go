package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"homeinspect/internal/core"
	"homeinspect/internal/identity"
	"homeinspect/internal/log"
)

type sessionContextKey struct{}

func sessionFrom(ctx context.Context) (core.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(core.Session)
	return s, ok
}

// requireSession resolves the bearer token and rejects anonymous requests.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.identity.GetSession(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldOwnerID, sess.UserID)
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		ctx = log.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func decodeCredentials(r *http.Request) (credentials, error) {
	var c credentials
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return credentials{}, fmt.Errorf("%w: %w", identity.ErrInvalidSignup, err)
	}
	return c, nil
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.identity.SignUp(r.Context(), c.Email, c.Password, core.Role(c.Role))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User signed up", log.FieldOwnerID, u.ID, "role", u.Role)
	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "email": u.Email, "role": string(u.Role)})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.identity.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if err := s.identity.SignOut(r.Context(), sess.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	sess.Token = ""
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}
