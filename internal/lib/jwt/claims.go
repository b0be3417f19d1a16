// Package jwt реализует генерацию и парсинг JWT токенов доступа и обновления.
//
// Claims расширяет стандартные claims JWT, добавляя идентификатор пользователя.
// Токены доступа и обновления подписываются разными секретами и живут разное время.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims описывает данные, хранящиеся в токене.
// Subject стандартного блока содержит идентификатор пользователя.
type Claims struct {
	jwt.RegisteredClaims
}

// ErrInvalidToken возвращается при невалидной подписи, истекшем сроке
// или некорректном формате токена.
var ErrInvalidToken = errors.New("invalid token")

func (m *Maker) generate(userID, secret string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (m *Maker) parse(tokenStr, secret string) (*Claims, error) {
	const op = "jwt.parse"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
