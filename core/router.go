package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter constructs the Gin engine with routes wired. db may be nil in
// tests; only the /status handler reads it.
func NewRouter(cfg Config, auth *AuthService, users UserRepository, payments PaymentProcessor, signer *TokenSigner, db *pgxpool.Pool) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	r.Use(OriginMiddleware(cfg))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello, World!")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, CollectSystemStatus(db, startedAt))
	})

	r.POST("/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid json")
			return
		}

		token, err := auth.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
		if err != nil {
			var locked *LockedOutError
			switch {
			case errors.As(err, &locked):
				respondError(c, http.StatusUnauthorized, locked.Error())
			case errors.Is(err, ErrInvalidCredentials):
				respondError(c, http.StatusUnauthorized, ErrInvalidCredentials.Error())
			default:
				respondError(c, http.StatusInternalServerError, "server error")
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"access_token": token})
	})

	// Logout only needs proof of possession; checking revocation here would
	// shadow the 404 for unknown sessions behind a 401.
	r.POST("/logout", BearerVerifyMiddleware(signer), func(c *gin.Context) {
		claims := sessionClaims(c)
		if claims == nil || claims.ID == "" {
			respondError(c, http.StatusBadRequest, "Invalid token")
			return
		}

		ok, err := auth.Logout(c.Request.Context(), claims.ID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "server error")
			return
		}
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})

	r.POST("/payment", BearerAuthMiddleware(signer, auth), func(c *gin.Context) {
		claims := sessionClaims(c)
		if claims == nil {
			respondError(c, http.StatusBadRequest, "Invalid token claims")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid token claims")
			return
		}

		newBalance, err := payments.MakePayment(c.Request.Context(), userID, cfg.PaymentAmountCents)
		if err != nil {
			var insufficient *InsufficientFundsError
			switch {
			case errors.As(err, &insufficient):
				c.JSON(http.StatusBadRequest, gin.H{"message": insufficient.Error()})
			case errors.Is(err, ErrAccountNotFound):
				c.JSON(http.StatusBadRequest, gin.H{"message": ErrAccountNotFound.Error()})
			default:
				respondError(c, http.StatusInternalServerError, "server error")
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":     "Payment successful",
			"balance_usd": formatUSD(newBalance),
		})
	})

	// Account provisioning is a development convenience; production builds do
	// not register the route at all.
	if !cfg.IsProduction() {
		r.POST("/create-user", AdminKeyRequired(cfg), func(c *gin.Context) {
			var req struct {
				Username string `json:"username" binding:"required"`
				Password string `json:"password" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "invalid json")
				return
			}

			hash, err := HashPassword(req.Password)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "server error")
				return
			}

			id, err := users.Create(c.Request.Context(), req.Username, hash, cfg.StartingBalanceCents)
			if err != nil {
				if errors.Is(err, ErrDuplicateAccount) {
					c.JSON(http.StatusConflict, gin.H{"message": ErrDuplicateAccount.Error()})
					return
				}
				respondError(c, http.StatusInternalServerError, "server error")
				return
			}

			c.Header("Location", fmt.Sprintf("/users/%d", id))
			c.JSON(http.StatusCreated, gin.H{
				"username":    req.Username,
				"balance_usd": formatUSD(cfg.StartingBalanceCents),
			})
		})
	}

	return r
}
