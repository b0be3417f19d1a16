package jwt

import "time"

// Maker генерирует и проверяет пары токенов доступа и обновления.
//
// Токен доступа подписывается accessSecret и живет accessTTL
// (по умолчанию 999 минут — унаследовано из исходной конфигурации,
// значение задается в конфиге). Refresh-токен подписывается
// refreshSecret и живет refreshTTL (7 дней).
type Maker struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewMaker создает новый экземпляр Maker с раздельными секретами и TTL.
func NewMaker(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Maker {
	return &Maker{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// GenerateAccessToken создает токен доступа для пользователя.
func (m *Maker) GenerateAccessToken(userID string) (string, error) {
	return m.generate(userID, m.accessSecret, m.accessTTL)
}

// GenerateRefreshToken создает refresh-токен для пользователя.
func (m *Maker) GenerateRefreshToken(userID string) (string, error) {
	return m.generate(userID, m.refreshSecret, m.refreshTTL)
}

// ParseAccessToken проверяет подпись и срок токена доступа.
func (m *Maker) ParseAccessToken(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.accessSecret)
}

// ParseRefreshToken проверяет подпись и срок refresh-токена.
func (m *Maker) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.refreshSecret)
}
