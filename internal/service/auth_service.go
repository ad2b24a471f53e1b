package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

// AuthConfig defines how access tokens issued by the identity service are verified.
type AuthConfig struct {
	AccessTokenSecret string
	Issuer            string
	Audience          []string
	Leeway            time.Duration
}

// AuthService validates bearer tokens. Issuance and sessions live in the identity service.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	parser *jwt.Parser
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	for _, aud := range config.Audience {
		if aud != "" {
			opts = append(opts, jwt.WithAudience(aud))
			break
		}
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}
	return &AuthService{logger: logger, config: config, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}

	return claims, nil
}
