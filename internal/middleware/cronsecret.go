package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/response"
)

// CronSecretHeader carries the shared secret for scheduler trigger endpoints.
const CronSecretHeader = "X-Cron-Secret"

// CronSecret guards endpoints meant for external cron triggers. An empty
// configured secret disables the check, which is only sensible in development.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(CronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
