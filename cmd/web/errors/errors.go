package errors

import (
	"github.com/gin-gonic/gin"

	"github.com/Eventual-Inc/modelfn/pkg/inference"
)

// NewError aborts the request with the status and body the handler error classifies to
func NewError(ctx *gin.Context, err error) {
	httpErr := inference.NewHTTPError(err)
	ctx.AbortWithStatusJSON(httpErr.Code, httpErr)
}
