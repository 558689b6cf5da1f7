package auth

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"crowdwatch/internal/api"
)

type Handler struct {
	Service  *Service
	Validate *validator.Validate
	Logger   logrus.FieldLogger
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ValidationMessage(err))
		return
	}
	user, token, err := h.Service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			api.Error(w, http.StatusBadRequest, "User already exists")
			return
		}
		api.ServerError(w, h.Logger, "Server error during registration", err)
		return
	}
	h.Logger.WithField("user_id", user.ID).Info("user registered")
	api.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ValidationMessage(err))
		return
	}
	user, token, err := h.Service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			api.Error(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		api.ServerError(w, h.Logger, "Server error during login", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}
