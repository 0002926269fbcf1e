package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"froidapi/email"
	"froidapi/users"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordChange struct {
	credentials
	NewPassword string `json:"new_password"`
}

// userError maps a user store or request error to an HTTP response.
func (s *Server) userError(w http.ResponseWriter, err error, username string) {
	switch {
	case isQueryError(err), users.IsValidationError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrUserExists),
		errors.Is(err, users.ErrEmailExists),
		errors.Is(err, users.ErrSamePassword):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrTokenExists):
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("User %q already has a token.", username))
	case errors.Is(err, users.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, users.ErrUserNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, users.ErrTokenNotFound):
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("User %q has no token.", username))
	default:
		s.logger.Error("User request failed", "username", username, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// authenticate reads credentials from the body into v and checks them.
func (s *Server) authenticate(r *http.Request, v any, creds *credentials) (*users.User, error) {
	if err := decodeBody(r, v); err != nil {
		return nil, err
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, invalid("username and password are required")
	}
	return s.users.Authenticate(r.Context(), creds.Username, creds.Password)
}

// notify sends an account email. Failures are logged, never returned.
func (s *Server) notify(r *http.Request, user *users.User, kind string,
	send func(context.Context, email.Recipient, email.Client) error,
) {
	to := email.Recipient{Username: user.Username, Email: user.Email}
	client := email.Client{IP: s.clientIP(r), UserAgent: r.UserAgent()}
	if err := send(r.Context(), to, client); err != nil {
		s.logger.Warn("Failed to send account email", "kind", kind, "user_id", user.ID, "error", err)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registration
	if err := decodeBody(r, &req); err != nil {
		s.userError(w, err, "")
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.userError(w, err, req.Username)
		return
	}

	if s.emailer != nil {
		s.notify(r, user, "welcome", s.emailer.SendWelcome)
	}
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	user, err := s.authenticate(r, &creds, &creds)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	user, err := s.authenticate(r, &creds, &creds)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}
	if err := s.users.Delete(r.Context(), user); err != nil {
		s.userError(w, err, creds.Username)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChange
	user, err := s.authenticate(r, &req, &req.credentials)
	if err != nil {
		s.userError(w, err, req.Username)
		return
	}

	user, err = s.users.ChangePassword(r.Context(), user, req.NewPassword)
	if err != nil {
		s.userError(w, err, req.Username)
		return
	}

	if s.emailer != nil {
		s.notify(r, user, "password_changed", s.emailer.SendPasswordChanged)
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	user, err := s.authenticate(r, &creds, &creds)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}

	token, err := s.users.Token(r.Context(), user)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}
	s.writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleNewToken(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	user, err := s.authenticate(r, &creds, &creds)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}

	token, err := s.users.CreateToken(r.Context(), user)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}

	if s.emailer != nil {
		s.notify(r, user, "token_created", s.emailer.SendTokenCreated)
	}
	s.writeJSON(w, http.StatusCreated, token)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	user, err := s.authenticate(r, &creds, &creds)
	if err != nil {
		s.userError(w, err, creds.Username)
		return
	}

	if err := s.users.RevokeToken(r.Context(), user); err != nil {
		s.userError(w, err, creds.Username)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
