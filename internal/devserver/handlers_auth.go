package devserver

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/jrsteele09/micromanager/internal/devserver/users"
	"github.com/rs/zerolog/log"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	User         loginUser `json:"user"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDomainError(w, apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode body"))
			return
		}
		req.FirstName = strings.TrimSpace(req.FirstName)
		email := users.NormaliseEmail(req.Email)

		if req.FirstName == "" {
			writeDomainError(w, apperrors.Wrapf(apperrors.ErrInvalidRequest, "first name is required"))
			return
		}
		if err := users.ValidateEmail(email); err != nil {
			writeDomainError(w, apperrors.Wrapf(apperrors.ErrInvalidRequest, "%v", err))
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeDomainError(w, apperrors.Wrapf(apperrors.ErrWeakPassword, "%v", err))
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		user := &users.User{Email: email, FirstName: req.FirstName, PasswordHash: hash, DateJoined: s.nowFunc()}
		if err := s.users.Insert(user); err != nil {
			writeDomainError(w, err)
			return
		}

		log.Info().Str("email", email).Msg("user registered")
		writeJSON(w, http.StatusCreated, map[string]string{"message": "user created"})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDomainError(w, apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode body"))
			return
		}

		user, err := s.users.GetByEmail(req.Email)
		if err != nil || !user.CheckPassword(req.Password) {
			s.metrics.login(false)
			writeDomainError(w, apperrors.ErrInvalidCredentials)
			return
		}

		access, err := s.tokens.CreateAccessToken(user)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		refresh, err := s.tokens.CreateRefreshToken(user.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := s.users.SetLastLogin(user.Email, s.nowFunc()); err != nil {
			log.Warn().Err(err).Str("email", user.Email).Msg("failed to record last login")
		}

		s.metrics.login(true)
		writeJSON(w, http.StatusOK, loginResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			User:         loginUser{Name: user.FirstName, Email: user.Email},
		})
	}
}
