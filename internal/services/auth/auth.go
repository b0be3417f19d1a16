// Package auth реализует сценарии аутентификации: вход по email и паролю,
// обновление пары токенов, выход с занесением токенов в черный список
// и проверку токена доступа на каждом защищенном запросе.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Ошибки предметной области.
var (
	// ErrInvalidCredentials пара email-пароль не подошла. Причина
	// (неизвестный email или неверный пароль) наружу не сообщается.
	ErrInvalidCredentials = errors.New("wrong password or email")
	// ErrInvalidToken токен не прошел проверку подписи или срока.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked токен находится в черном списке после выхода.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUserNotFound владелец валидного токена больше не существует.
	ErrUserNotFound = errors.New("user not found")
)

// Горизонты хранения токенов в черном списке после выхода. Записи
// вычищаются пассивно TTL-индексом хранилища.
const (
	accessBlacklistTTL  = 24 * time.Hour
	refreshBlacklistTTL = 7 * 24 * time.Hour
)

// Authenticator проверяет учетные данные пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// UserRepository загружает пользователей по идентификатору.
type UserRepository interface {
	GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

// TokenRepository хранит черный список токенов.
type TokenRepository interface {
	BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

// TokenPair пара токенов, выдаваемая при входе и обновлении.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Service реализует сценарии аутентификации.
type Service struct {
	auth   Authenticator
	users  UserRepository
	tokens TokenRepository
	maker  *jwt.Maker
	log    *slog.Logger
}

// New создает новый экземпляр Service.
func New(auth Authenticator, users UserRepository, tokens TokenRepository, maker *jwt.Maker, log *slog.Logger) *Service {
	return &Service{auth: auth, users: users, tokens: tokens, maker: maker, log: log}
}

// Login проверяет учетные данные и выдает пару токенов.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	const op = "services.auth.Login"
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	u, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		log.Error("failed to authenticate user", sl.Err(err))
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u.ID.Hex())
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return nil, err
	}
	log.Info("user logged in", slog.String("user_id", u.ID.Hex()))
	return pair, nil
}

// Refresh проверяет refresh-токен и выдает новую пару токенов.
// Токен из черного списка отклоняется как отозванный.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "services.auth.Refresh"
	log := s.log.With(slog.String("op", op))

	claims, err := s.maker.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.tokens.IsTokenBlacklisted(ctx, refreshToken)
	if err != nil {
		log.Error("failed to check token blacklist", sl.Err(err))
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	userID, err := repository.ParseID(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.issuePair(u.ID.Hex())
}

// Logout заносит оба токена в черный список. Токен доступа хранится
// сутки, refresh-токен — семь дней; дальше записи удаляет TTL-индекс.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	const op = "services.auth.Logout"
	log := s.log.With(slog.String("op", op))

	now := time.Now().UTC()
	if err := s.tokens.BlacklistToken(ctx, accessToken, now.Add(accessBlacklistTTL)); err != nil {
		log.Error("failed to blacklist access token", sl.Err(err))
		return err
	}
	if refreshToken != "" {
		if err := s.tokens.BlacklistToken(ctx, refreshToken, now.Add(refreshBlacklistTTL)); err != nil {
			log.Error("failed to blacklist refresh token", sl.Err(err))
			return err
		}
	}
	log.Info("user logged out")
	return nil
}

// ValidateAccessToken проверяет подпись, срок и черный список, затем
// загружает владельца токена. Используется промежуточным слоем на
// каждом защищенном запросе.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "services.auth.ValidateAccessToken"
	log := s.log.With(slog.String("op", op))

	claims, err := s.maker.ParseAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.tokens.IsTokenBlacklisted(ctx, accessToken)
	if err != nil {
		log.Error("failed to check token blacklist", sl.Err(err))
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	userID, err := repository.ParseID(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) issuePair(userID string) (*TokenPair, error) {
	access, err := s.maker.GenerateAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.maker.GenerateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
