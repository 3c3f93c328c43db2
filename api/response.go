package api

import "github.com/gin-gonic/gin"

// respondSuccess writes body with "status": "success" added.
func respondSuccess(c *gin.Context, httpStatus int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["status"] = "success"
	c.JSON(httpStatus, body)
}

// respondError writes {"status":"error","message":message}. A non-nil err is
// attached to the context for the request log only.
func respondError(c *gin.Context, httpStatus int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(httpStatus, gin.H{"status": "error", "message": message})
}
