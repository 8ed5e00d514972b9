package session

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medflow/shift-timer/pkg/config"
	apperrors "github.com/medflow/shift-timer/pkg/errors"
)

// Claims represents the JWT claims issued by the login service
type Claims struct {
	jwt.RegisteredClaims
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
}

// Validator checks bearer tokens. It never issues them.
type Validator struct {
	config *config.JWTConfig
}

// NewValidator creates a new token validator
func NewValidator(cfg *config.JWTConfig) *Validator {
	return &Validator{config: cfg}
}

// Validate parses an access token and returns the session it describes
func (v *Validator) Validate(tokenString string) (Session, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(v.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, apperrors.TokenExpired()
		}
		return Session{}, apperrors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Session{}, apperrors.TokenInvalid()
	}

	userID := claims.UserID
	if userID == 0 {
		// Older tokens only carry the id as subject
		if id, err := strconv.Atoi(claims.Subject); err == nil {
			userID = id
		}
	}
	if userID == 0 {
		return Session{}, apperrors.TokenInvalid()
	}

	return Session{UserID: userID, Role: claims.Role, Token: tokenString}, nil
}
