package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/response"
)

// bindJSON decodes the request body and writes a 400 on failure. The caller
// should return immediately when false.
func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}
