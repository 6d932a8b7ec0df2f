package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Error codes shared across server and client.
const (
	CodeTokenInvalid           = "AUTH_TOKEN_INVALID"
	CodeInsufficientPermission = "AUTH_INSUFFICIENT_PERMISSION"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeRateLimited            = "RATE_LIMITED"
	CodeBadRequest             = "BAD_REQUEST"
	CodeNotFound               = "NOT_FOUND"
	CodeInternalError          = "INTERNAL_ERROR"
	CodeUnknownError           = "UNKNOWN_ERROR"
)

// Response is the wire envelope for every API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorData  `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ErrorData carries a machine code and a human message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Success writes a 200 envelope with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: now(),
	})
}

// Created writes a 201 envelope with data
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: now(),
	})
}

// Error writes an error envelope with the given status and code
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorData{
			Code:    code,
			Message: message,
		},
		Timestamp: now(),
	})
}

// AbortError writes an error envelope and aborts the middleware chain
func AbortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &ErrorData{
			Code:    code,
			Message: message,
		},
		Timestamp: now(),
	})
}

// InternalError writes a 500 envelope
func InternalError(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, CodeInternalError, err.Error())
}

// BadRequest writes a 400 envelope
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeBadRequest, message)
}

// NotFound writes a 404 envelope
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized writes a 401 envelope with the token-invalid code
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeTokenInvalid, message)
}
