package middleware

import (
	apiError "collab-docs/internal/errors"
	"errors"
	"log"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			// if it's a raw error we didn't wrap, treat as Internal
			if !errors.As(err, &apiErr) {
				apiErr = apiError.Internal(err)
			}

			if apiErr.Status >= 500 {
				log.Printf("[ERROR] %v\n", apiErr.Internal)
			} else {
				log.Printf("[INFO] %s: %v\n", apiErr.Message, apiErr.Internal)
			}

			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
