package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsContextKey = "session_claims"

// BearerVerifyMiddleware checks the Authorization bearer token for signature,
// expiry, issuer and audience, and stashes the claims. It does not consult
// the token ledger; /logout uses it so that revoking an unknown session can
// still answer 404.
func BearerVerifyMiddleware(signer *TokenSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := verifyBearer(c, signer)
		if !ok {
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// BearerAuthMiddleware verifies the bearer token like BearerVerifyMiddleware
// and additionally checks the revocation status of the embedded session id
// against the token ledger. Without the ledger check a logged-out token would
// keep working until its natural expiry.
func BearerAuthMiddleware(signer *TokenSigner, auth *AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := verifyBearer(c, signer)
		if !ok {
			return
		}

		// A token without a session id cannot be checked against the ledger;
		// it is let through so jti-dependent handlers can answer 400
		// themselves.
		if claims.ID != "" {
			valid, err := auth.IsJtiValid(c.Request.Context(), claims.ID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "server error")
				c.Abort()
				return
			}
			if !valid {
				respondError(c, http.StatusUnauthorized, "session revoked")
				c.Abort()
				return
			}
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func verifyBearer(c *gin.Context, signer *TokenSigner) (*SessionClaims, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		respondError(c, http.StatusUnauthorized, "missing bearer token")
		c.Abort()
		return nil, false
	}

	claims, err := signer.Verify(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid token")
		c.Abort()
		return nil, false
	}
	return claims, true
}

// sessionClaims extracts the verified claims stashed by BearerAuthMiddleware.
func sessionClaims(c *gin.Context) *SessionClaims {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*SessionClaims)
	return claims
}

// OriginMiddleware validates Origin/Referer against the allowed list and sets
// CORS headers. Requests without an Origin header (same-origin or non-browser
// clients) pass through.
func OriginMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "origin not allowed")
			c.Abort()
			return
		}

		if origin != "" {
			setCORSHeaders(c, origin)
		}

		// Preflight handling
		if c.Request.Method == http.MethodOptions && origin != "" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, AdminKey")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}
