// Package jwt 签发与校验访问令牌
package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 角色
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// 时钟偏差容忍
const leeway = 30 * time.Second

// ValidRole 是否为已知角色
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Claims 令牌声明，Subject 为用户 ID
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Config JWT 配置
type Config struct {
	Secret           string
	AccessExpireTime time.Duration
	Issuer           string
}

// Manager 令牌管理器
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
}

var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenNotActive = errors.New("token not active yet")
	ErrUnknownRole    = errors.New("unknown role")
)

// NewManager 创建令牌管理器，配置了签发方时校验 iss
func NewManager(cfg *Config) *Manager {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		ttl:    cfg.AccessExpireTime,
		issuer: cfg.Issuer,
		parser: jwt.NewParser(opts...),
	}
}

// GenerateAccessToken 签发访问令牌，返回令牌和过期时间戳
func (m *Manager) GenerateAccessToken(userID int64, role string) (string, int64, error) {
	if !ValidRole(role) {
		return "", 0, ErrUnknownRole
	}
	now := time.Now()
	expireAt := now.Add(m.ttl)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expireAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return token, expireAt.Unix(), nil
}

// ParseToken 校验令牌并返回声明
// 过期的令牌即使在容忍窗口外也返回 ErrTokenExpired，便于客户端刷新
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotActive
	default:
		return nil, ErrTokenInvalid
	}

	if claims.UserID <= 0 || !ValidRole(claims.Role) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
