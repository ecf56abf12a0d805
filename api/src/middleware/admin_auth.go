package middleware

import (
	"strings"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const AdminRole = "admin"

// AdminAuth accepts HS256 bearer tokens signed with secret whose role claim is admin.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			abortUnauthorized(c, "Autenticación de administrador no configurada")
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortUnauthorized(c, "Token requerido")
			return
		}

		tok, err := jwt.Parse([]byte(strings.TrimSpace(raw)),
			jwt.WithKey(jwa.HS256, secret),
			jwt.WithValidate(true),
		)
		if err != nil {
			abortUnauthorized(c, "Token inválido")
			return
		}
		role, _ := tok.Get("role")
		if role != AdminRole {
			abortUnauthorized(c, "Permisos insuficientes")
			return
		}

		c.Set("admin", tok.Subject())
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	_ = c.Error(apperror.Unauthorized(msg))
	c.Abort()
}
