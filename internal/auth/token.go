// Package auth issues and validates the bearer tokens that carry an admin's identity.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"armada/internal/config"
	"armada/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const audience = "armada-api"

// ActorClaims are the JWT claims of an admin session.
type ActorClaims struct {
	ActorID int64       `json:"actor_id"`
	Name    string      `json:"name"`
	Role    models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the explicit actor context used by settlement.
func (c *ActorClaims) Actor() models.ActorContext {
	return models.ActorContext{ID: c.ActorID, Name: c.Name, Role: c.Role}
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg config.APIAuthConfig) *TokenManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for actor. A zero ttl uses the configured lifetime.
// The System role is reserved for the scheduler and never issued.
func (m *TokenManager) Issue(actor models.ActorContext, ttl time.Duration) (string, error) {
	if !actor.Role.IsStaff() {
		return "", fmt.Errorf("cannot issue token for role %q", actor.Role)
	}
	if actor.ID <= 0 {
		return "", errors.New("actor id must be positive")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	now := m.now()
	claims := ActorClaims{
		ActorID: actor.ID,
		Name:    actor.Name,
		Role:    actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.ID, 10),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) Validate(tokenString string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	// роль могла быть удалена после выдачи токена
	if _, ok := models.ParseRole(string(claims.Role)); !ok || !claims.Role.IsStaff() {
		return nil, ErrInvalidToken
	}
	if claims.ActorID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
