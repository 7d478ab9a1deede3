package media

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Claims - полезная нагрузка медиа-токена
type Claims struct {
	Channel string                `json:"channel"`
	UID     string                `json:"uid"`
	Role    model.ParticipantRole `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer подписывает медиа-токены общим с медиа-сервером секретом (HS256)
type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTIssuer(secret, issuer string) (*JWTIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("media token: secret is empty")
	}
	return &JWTIssuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue выдаёт токен на канал для пользователя с заданной ролью
func (t *JWTIssuer) Issue(ctx context.Context, channel, uid string, role model.ParticipantRole, ttlSeconds int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if channel == "" {
		return "", errors.New("media token: channel is required")
	}
	if uid == "" {
		return "", errors.New("media token: uid is required")
	}
	if ttlSeconds <= 0 {
		return "", errors.New("media token: ttl must be positive")
	}

	now := t.now().UTC()
	claims := Claims{
		Channel: channel,
		UID:     uid,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify разбирает и проверяет токен; нужен медиа-серверу и тестам
func (t *JWTIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("media token: unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("media token: invalid claims")
}
