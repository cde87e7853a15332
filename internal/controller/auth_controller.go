package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"FallWatch.iot/internal/middleware"
	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/repository"
	"FallWatch.iot/internal/service"
	"FallWatch.iot/internal/utils"

	"go.uber.org/zap"
)

type AuthController struct {
	auth   *service.AuthService
	secure bool
	logger *zap.Logger
}

// NewAuthController builds the dashboard login endpoints. secure marks the
// session cookie Secure, for deployments behind TLS.
func NewAuthController(auth *service.AuthService, secure bool, logger *zap.Logger) *AuthController {
	return &AuthController{auth: auth, secure: secure, logger: logger}
}

func (c *AuthController) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, "Invalid request payload", nil, http.StatusBadRequest))
		return
	}

	user, err := c.auth.Signup(r.Context(), req)
	switch {
	case err == nil:
		c.logger.Info("User created", zap.Int("user_id", user.ID))
		utils.RespondWithMessage(w, http.StatusCreated, "User created")
	case errors.Is(err, service.ErrMissingField):
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMissingParameter, err.Error(), nil, http.StatusBadRequest))
	case errors.Is(err, repository.ErrDuplicateEmail):
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeDuplicateResource, "Email already exists", nil, http.StatusBadRequest))
	default:
		c.logger.Error("Signup failed", zap.Error(err))
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, "Database error", nil, http.StatusInternalServerError))
	}
}

func (c *AuthController) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, "Invalid request payload", nil, http.StatusBadRequest))
		return
	}

	sess, err := c.auth.Login(r.Context(), req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidCredentials, "Invalid credentials", nil, http.StatusUnauthorized))
		return
	}
	if err != nil {
		c.logger.Error("Login failed", zap.Error(err))
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, "Login failed", nil, http.StatusInternalServerError))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(c.auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged in",
		"user": map[string]string{
			"name":     sess.Name,
			"role":     sess.Role,
			"language": sess.Language,
		},
	})
}

// HandleMe reports whether the caller holds a live session.
func (c *AuthController) HandleMe(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookie)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	sess, err := c.auth.Authenticate(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, service.ErrNotAuthenticated) {
			c.logger.Error("Session lookup failed", zap.Error(err))
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          sess,
	})
}

func (c *AuthController) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil {
		if err := c.auth.Logout(r.Context(), cookie.Value); err != nil {
			c.logger.Error("Logout failed", zap.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
	})
	utils.RespondWithMessage(w, http.StatusOK, "Logged out")
}
