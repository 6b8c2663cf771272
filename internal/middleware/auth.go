package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

// QueryAccessToken é o parâmetro aceito no lugar do header em conexões
// websocket, já que navegadores não enviam Authorization no upgrade
const QueryAccessToken = "access_token"

// AuthConfig contém a configuração do middleware de autenticação
type AuthConfig struct {
	// TokenAPI é comparado em tempo constante
	TokenAPI string
	// TokenAPIHash é um hash bcrypt; tem precedência sobre TokenAPI
	TokenAPIHash string
	Metrics      *metrics.Metrics
}

// HashToken gera o hash bcrypt de um token para TOKEN_API_HASH
func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(bytes), err
}

// verify confere o token recebido contra a configuração
func (cfg AuthConfig) verify(token string) bool {
	if cfg.TokenAPIHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.TokenAPIHash), []byte(token)) == nil
	}
	if cfg.TokenAPI == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.TokenAPI)) == 1
}

// BearerAuth retorna um middleware que valida o token Bearer
func BearerAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, reason := extractToken(c)
		if reason == "" && !cfg.verify(token) {
			reason = "token inválido"
		}

		if reason != "" {
			if cfg.Metrics != nil {
				cfg.Metrics.IncrementAuthFailure()
			}
			logger.Audit(c.Request.Context(), logger.AuditEvent{
				Action:   logger.AuditActionAuthFailed,
				Resource: "api",
				Path:     c.Request.URL.Path,
				Method:   c.Request.Method,
				ClientIP: c.ClientIP(),
				Error:    reason,
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
				Success: false,
				Error:   model.ErrUnauthorized.Error(),
				Code:    "UNAUTHORIZED",
				Details: reason,
			})
			return
		}

		c.Next()
	}
}

// extractToken lê o token do header Authorization ou, em upgrades websocket,
// do parâmetro access_token. reason explica a falha quando não há token.
func extractToken(c *gin.Context) (token string, reason string) {
	authHeader := c.GetHeader("Authorization")

	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if token := c.Query(QueryAccessToken); token != "" {
				return token, ""
			}
		}
		return "", "header Authorization ausente"
	}

	// Extrai o token do formato "Bearer {token}"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", "formato inválido, esperado: Bearer {token}"
	}

	return strings.TrimSpace(parts[1]), ""
}
