package core

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// respondError sends the error payload {"error": message}.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// formatUSD renders a cent amount as decimal dollars with two fraction
// digits (e.g., 30 -> "0.30").
func formatUSD(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
