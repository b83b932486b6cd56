package handler

import (
	"context"
	"net/http"
	"time"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/pkg/apierror"
	"halaqa-points-api/pkg/response"
)

// TokenIssuer manages session tokens. *service.TokenService implements it.
type TokenIssuer interface {
	GenerateToken(ctx context.Context, p model.Profile) (string, *model.TokenData, error)
	RevokeToken(ctx context.Context, token string) error
	RefreshToken(ctx context.Context, token string) (*model.TokenData, error)
}

// Authenticator checks access keys. *service.ProfileService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, userID, accessKey string) (*model.Profile, error)
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	tokens   TokenIssuer
	profiles Authenticator
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokens TokenIssuer, profiles Authenticator) *AuthHandler {
	return &AuthHandler{tokens: tokens, profiles: profiles}
}

// TokenRequest represents the request body for token generation.
type TokenRequest struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	AccessKey string `json:"access_key" validate:"required"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string     `json:"token,omitempty"`
	UserID    string     `json:"user_id"`
	Role      model.Role `json:"role"`
	ExpiresAt time.Time  `json:"expires_at"`
	ExpiresIn int        `json:"expires_in"`
}

// GenerateToken handles POST /auth/token
func (h *AuthHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	profile, err := h.profiles.Authenticate(r.Context(), req.UserID, req.AccessKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, data, err := h.tokens.GenerateToken(r.Context(), *profile)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, tokenResponse(token, data))
}

// RevokeToken handles POST /auth/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	data, err := h.tokens.RefreshToken(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, tokenResponse("", data))
}

func tokenResponse(token string, data *model.TokenData) TokenResponse {
	return TokenResponse{
		Token:     token,
		UserID:    data.UserID,
		Role:      data.Role,
		ExpiresAt: data.ExpiresAt,
		ExpiresIn: int(time.Until(data.ExpiresAt).Seconds()),
	}
}

var (
	_ TokenIssuer   = (*service.TokenService)(nil)
	_ Authenticator = (*service.ProfileService)(nil)
)
