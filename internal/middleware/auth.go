package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"halaqa-points-api/internal/model"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/pkg/apierror"
)

// TokenDataKey is the key for storing token data in request context.
const TokenDataKey contextKey = "token_data"

// TokenValidator resolves session tokens. *service.TokenService implements it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenData, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Tokens  TokenValidator
	APIKeys []string
}

// NewAuthMiddleware authenticates requests by X-Token session token or, for
// service callers, by X-API-Key. API-key callers act as admin with no user
// of their own.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	apiKeys := cfg.APIKeys
	if len(apiKeys) == 0 {
		apiKeys = getAPIKeysFromEnv()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r) {
				next.ServeHTTP(w, r)
				return
			}

			if token := r.Header.Get("X-Token"); token != "" && cfg.Tokens != nil {
				data, err := cfg.Tokens.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}
				next.ServeHTTP(w, r.WithContext(WithTokenData(r.Context(), data)))
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or X-API-Key header."))
				return
			}
			if !isValidKey(apiKey, apiKeys) {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			caller := &model.TokenData{DisplayName: "api-key", Role: model.RoleAdmin}
			next.ServeHTTP(w, r.WithContext(WithTokenData(r.Context(), caller)))
		})
	}
}

// RequireAwarder rejects callers whose role may not award points or redeem rewards.
func RequireAwarder(next http.Handler) http.Handler {
	return requireRole(next, "Only teachers and admins can do this", func(role model.Role) bool {
		return role.CanAward()
	})
}

// RequireAdmin rejects every caller but admins.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, "Admin access required", func(role model.Role) bool {
		return role == model.RoleAdmin
	})
}

func requireRole(next http.Handler, denied string, allowed func(model.Role) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := GetTokenDataFromContext(r.Context())
		if data == nil {
			writeError(w, apierror.Unauthorized(""))
			return
		}
		if !allowed(data.Role) {
			writeError(w, apierror.Forbidden(denied))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(r *http.Request) bool {
	switch r.URL.Path {
	case "/api/v1/health", "/api/v1/ready":
		return true
	case "/api/v1/auth/token":
		return r.Method == http.MethodPost
	}
	return false
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// getAPIKeysFromEnv returns API keys from environment variables.
func getAPIKeysFromEnv() []string {
	keysEnv := os.Getenv("API_KEYS")
	if keysEnv == "" {
		if singleKey := os.Getenv("API_KEY"); singleKey != "" {
			return []string{singleKey}
		}
		return nil
	}

	keys := strings.Split(keysEnv, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return keys
}

func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if valid != "" && subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// WithTokenData stores the authenticated caller in ctx.
func WithTokenData(ctx context.Context, data *model.TokenData) context.Context {
	return context.WithValue(ctx, TokenDataKey, data)
}

// GetTokenDataFromContext retrieves token data from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}

// ContextAuth reads the current user from the request context.
type ContextAuth struct{}

// CurrentUserID returns the authenticated user, if the caller has one.
func (ContextAuth) CurrentUserID(ctx context.Context) (string, bool) {
	data := GetTokenDataFromContext(ctx)
	if data == nil || data.UserID == "" {
		return "", false
	}
	return data.UserID, true
}

var (
	_ service.Auth   = ContextAuth{}
	_ TokenValidator = (*service.TokenService)(nil)
)
