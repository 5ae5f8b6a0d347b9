package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WriteMessage writes {"message": message} with status 200
func WriteMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// WriteError writes {"error": message}. Webhook senders only look at the body,
// so errors keep status 200.
func WriteError(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"error": message})
}
