// -------------------------------------------------------------------------------
// HTTP Server - Auth Handlers
//
// Project: Streamlo
//
// Signup and login endpoints. Login failures never reveal whether the email or
// the password was wrong.
// -------------------------------------------------------------------------------

package server

import (
	"net/http"

	"github.com/dunguyenn/StreamloWebservice/internal/service"
)

// handleSignup creates a new account.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		UserURL     string `json:"userURL"`
		DisplayName string `json:"displayName"`
		City        string `json:"city"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.Users.Signup(r.Context(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		UserURL:     req.UserURL,
		DisplayName: req.DisplayName,
		City:        req.City,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogin verifies credentials and issues a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":  token,
		"userId": user.ID.Hex(),
	})
}
