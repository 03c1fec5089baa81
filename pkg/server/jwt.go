package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures HS256 bearer verification.
// AllowedIssuer and AllowedAudience are checked when set; ClockSkew widens exp/nbf.
type JWTConfig struct {
	Secret          []byte
	AllowedIssuer   string
	AllowedAudience string
	ClockSkew       time.Duration
}

// ClaimsKey is the gin context key holding verified jwt.MapClaims.
const ClaimsKey = "mongorun.claims"

// RequireJWT returns a gin middleware that enforces a Bearer HS256 token.
func RequireJWT(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.Secret) == 0 {
			abort(c, http.StatusInternalServerError, "jwt secret not configured")
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			abort(c, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		tokStr := strings.TrimSpace(auth[len("Bearer "):])
		tok, err := jwt.Parse(tokStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return cfg.Secret, nil
		}, jwt.WithLeeway(cfg.ClockSkew), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tok.Valid {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid token claims")
			return
		}
		if err := validateClaims(claims, cfg); err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func validateClaims(c jwt.MapClaims, cfg JWTConfig) error {
	if cfg.AllowedIssuer != "" {
		if iss, _ := c.GetIssuer(); iss != cfg.AllowedIssuer {
			return errors.New("invalid iss")
		}
	}
	if cfg.AllowedAudience != "" {
		aud, _ := c.GetAudience()
		for _, a := range aud {
			if a == cfg.AllowedAudience {
				return nil
			}
		}
		return errors.New("invalid aud")
	}
	return nil
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
