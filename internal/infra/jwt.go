// README: HMAC token issue/verify used by HTTP auth and socket connect.
package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cookroute/internal/types"
)

var ErrInvalidToken = errors.New("invalid token")

// ActorClaims is the verified identity carried by every authenticated request
// and live connection. Role is bound at issue time and never trusted from
// request parameters.
type ActorClaims struct {
	UserID types.ID
	Role   string
}

type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

func (c *TokenCodec) Issue(claims ActorClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": string(claims.UserID),
		"role":   claims.Role,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	})
	return token.SignedString(c.secret)
}

func (c *TokenCodec) Verify(raw string) (ActorClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ActorClaims{}, ErrInvalidToken
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ActorClaims{}, ErrInvalidToken
	}
	uid, _ := mc["userId"].(string)
	role, _ := mc["role"].(string)
	if uid == "" || role == "" {
		return ActorClaims{}, ErrInvalidToken
	}
	return ActorClaims{UserID: types.ID(uid), Role: role}, nil
}
