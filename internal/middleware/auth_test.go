package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"halaqa-points-api/internal/model"

	"github.com/stretchr/testify/assert"
)

type stubTokens map[string]model.TokenData

func (s stubTokens) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	data, ok := s[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &data, nil
}

func captureCaller(got **model.TokenData) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetTokenDataFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddleware(t *testing.T) {
	mw := NewAuthMiddleware(AuthConfig{
		Tokens:  stubTokens{"hqt_ok": {UserID: "u1", Role: model.RoleStudent}},
		APIKeys: []string{"key-1", "key-2"},
	})

	tests := []struct {
		name     string
		method   string
		path     string
		headers  map[string]string
		wantCode int
		wantRole model.Role
		wantUser string
	}{
		{"health is public", http.MethodGet, "/api/v1/health", nil, http.StatusNoContent, "", ""},
		{"token issue is public", http.MethodPost, "/api/v1/auth/token", nil, http.StatusNoContent, "", ""},
		{"token path GET is not public", http.MethodGet, "/api/v1/auth/token", nil, http.StatusUnauthorized, "", ""},
		{"no credentials", http.MethodGet, "/api/v1/ledger/me", nil, http.StatusUnauthorized, "", ""},
		{"session token", http.MethodGet, "/api/v1/ledger/me", map[string]string{"X-Token": "hqt_ok"}, http.StatusNoContent, model.RoleStudent, "u1"},
		{"bad session token", http.MethodGet, "/api/v1/ledger/me", map[string]string{"X-Token": "hqt_bad"}, http.StatusUnauthorized, "", ""},
		{"api key header", http.MethodGet, "/api/v1/leaderboard", map[string]string{"X-API-Key": "key-2"}, http.StatusNoContent, model.RoleAdmin, ""},
		{"bearer api key", http.MethodGet, "/api/v1/leaderboard", map[string]string{"Authorization": "Bearer key-1"}, http.StatusNoContent, model.RoleAdmin, ""},
		{"wrong api key", http.MethodGet, "/api/v1/leaderboard", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var caller *model.TokenData
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			mw(captureCaller(&caller)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantRole != "" {
				if assert.NotNil(t, caller) {
					assert.Equal(t, tt.wantRole, caller.Role)
					assert.Equal(t, tt.wantUser, caller.UserID)
				}
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	serve := func(h http.Handler, caller *model.TokenData) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if caller != nil {
			req = req.WithContext(WithTokenData(req.Context(), caller))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	student := &model.TokenData{UserID: "s", Role: model.RoleStudent}
	teacher := &model.TokenData{UserID: "t", Role: model.RoleTeacher}
	admin := &model.TokenData{Role: model.RoleAdmin}

	assert.Equal(t, http.StatusUnauthorized, serve(RequireAwarder(ok), nil))
	assert.Equal(t, http.StatusForbidden, serve(RequireAwarder(ok), student))
	assert.Equal(t, http.StatusOK, serve(RequireAwarder(ok), teacher))
	assert.Equal(t, http.StatusOK, serve(RequireAwarder(ok), admin))

	assert.Equal(t, http.StatusForbidden, serve(RequireAdmin(ok), teacher))
	assert.Equal(t, http.StatusOK, serve(RequireAdmin(ok), admin))
}

func TestContextAuth(t *testing.T) {
	ctx := context.Background()
	_, ok := ContextAuth{}.CurrentUserID(ctx)
	assert.False(t, ok)

	_, ok = ContextAuth{}.CurrentUserID(WithTokenData(ctx, &model.TokenData{Role: model.RoleAdmin}))
	assert.False(t, ok, "api-key callers have no user")

	id, ok := ContextAuth{}.CurrentUserID(WithTokenData(ctx, &model.TokenData{UserID: "u1"}))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}
