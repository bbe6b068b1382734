package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// Ошибки проверки токенов внешнего identity provider'а.
var (
	ErrTokenInvalid   = errors.New("невалидный токен")
	ErrTokenExpired   = errors.New("токен истек")
	ErrTokenMalformed = errors.New("токен поврежден")
)

// Claims - полезная нагрузка токена внешнего identity provider'а.
// Сервер не выпускает токены сам, только проверяет подпись.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier проверяет JWT токены.
type JWTVerifier struct {
	jwtSecret string
	logger    *zap.Logger
}

// NewJWTVerifier создает новый экземпляр JWTVerifier.
func NewJWTVerifier(jwtSecret string, logger *zap.Logger) (*JWTVerifier, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTVerifier{
		jwtSecret: jwtSecret,
		logger:    logger.Named("JWTVerifier"),
	}, nil
}

// VerifyToken проверяет подпись JWT, его валидность и извлекает claims.
func (v *JWTVerifier) VerifyToken(tokenString string) (*Claims, error) {
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Warn("Unexpected signing method", zap.Any("alg", token.Header["alg"]))
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.jwtSecret), nil
	})

	if err != nil {
		log.Warn("Failed to parse or verify token", zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Email == "" {
		log.Warn("Token missing email claim")
		return nil, fmt.Errorf("%w: email отсутствует", ErrTokenInvalid)
	}

	log.Debug("Token verified successfully", zap.String("email", claims.Email))
	return claims, nil
}

// tokenSnippet возвращает безопасную для логгирования часть токена.
func tokenSnippet(tokenString string) string {
	limit := 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}

const userContextKey = "currentUser"

// authMiddleware проверяет Bearer токен и кладет автора (find-or-create по
// email) в контекст запроса.
func (h *StoryHandler) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return c.JSON(http.StatusUnauthorized, APIError{Message: "Authorization header missing"})
		}
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			return c.JSON(http.StatusUnauthorized, APIError{Message: "Invalid Authorization header format"})
		}

		claims, err := h.verifier.VerifyToken(tokenString)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, APIError{Message: "Invalid or expired token"})
		}

		user, err := h.service.ResolveUser(c.Request().Context(), claims.Email, claims.Name)
		if err != nil {
			h.logger.Error("Ошибка поиска/создания пользователя", zap.String("email", claims.Email), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, APIError{Message: "Internal server error"})
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// currentUser извлекает автора, положенного authMiddleware.
func currentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, errors.New("пользователь не найден в контексте")
	}
	return user, nil
}
