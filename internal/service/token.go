package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "hqt_"

	// TokenTTL is the default token lifetime (1 hour)
	TokenTTL = 1 * time.Hour

	// TokenRedisKeyPrefix is the Redis key prefix for tokens
	TokenRedisKeyPrefix = "halaqa:token:"
)

// ErrInvalidToken is returned for malformed, unknown or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues and validates session tokens stored in Redis.
type TokenService struct {
	redis redis.Cmdable
	ttl   time.Duration
	now   func() time.Time
}

// NewTokenService creates a new token service. redisClient is usually a
// *redis.Client.
func NewTokenService(redisClient redis.Cmdable) *TokenService {
	return &TokenService{
		redis: redisClient,
		ttl:   TokenTTL,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GenerateToken creates a session token for a profile.
func (s *TokenService) GenerateToken(ctx context.Context, p model.Profile) (string, *model.TokenData, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	now := s.now()
	data := model.TokenData{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.store(ctx, token, data); err != nil {
		return "", nil, err
	}

	logger.Info("[TokenService] Generated token for user_id=%s role=%s, expires=%v", data.UserID, data.Role, data.ExpiresAt)
	return token, &data, nil
}

// ValidateToken returns the session behind token.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrInvalidToken
	}

	data, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.now().After(data.ExpiresAt) {
		s.redis.Del(ctx, TokenRedisKeyPrefix+token)
		return nil, ErrInvalidToken
	}
	return data, nil
}

// RevokeToken deletes a token from Redis.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.redis.Del(ctx, TokenRedisKeyPrefix+token).Err()
}

// RefreshToken extends the lifetime of an existing token.
func (s *TokenService) RefreshToken(ctx context.Context, token string) (*model.TokenData, error) {
	data, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	data.ExpiresAt = s.now().Add(s.ttl)
	if err := s.store(ctx, token, *data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *TokenService) store(ctx context.Context, token string, data model.TokenData) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := s.redis.Set(ctx, TokenRedisKeyPrefix+token, jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *TokenService) load(ctx context.Context, token string) (*model.TokenData, error) {
	jsonData, err := s.redis.Get(ctx, TokenRedisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}
	return &data, nil
}
