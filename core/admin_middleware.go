package core

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminKeyRequired gates restricted endpoints behind the shared admin secret
// carried in the AdminKey header. An unset secret rejects everything.
func AdminKeyRequired(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("AdminKey")
		if cfg.AdminKey == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.AdminKey)) != 1 {
			c.Status(http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
