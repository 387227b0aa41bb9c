package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in ErrorInfo.Code.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnhandled        = "UNHANDLED"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending input for validation errors.
	Field string `json:"field,omitempty"`
	// Status is the upstream HTTP status for upstream errors.
	Status int `json:"status,omitempty"`
	// Details is free-form upstream context (truncated body, vendor message).
	Details string `json:"details,omitempty"`
}

// Success sends a successful response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Created sends a 201 created response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, code, message string) {
	Fail(c, statusCode, &ErrorInfo{Code: code, Message: message})
}

// Fail sends an error response with a fully populated ErrorInfo and aborts
// the handler chain.
func Fail(c *gin.Context, statusCode int, info *ErrorInfo) {
	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error:   info,
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeBadRequest, message)
}

// ValidationFailed sends a 400 error response naming the offending field.
func ValidationFailed(c *gin.Context, field, message string) {
	Fail(c, http.StatusBadRequest, &ErrorInfo{
		Code:    CodeValidationFailed,
		Message: message,
		Field:   field,
	})
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, CodeConflict, message)
}

// Upstream sends a 502 error response describing a failed upstream call.
func Upstream(c *gin.Context, message string, status int, details string) {
	Fail(c, http.StatusBadGateway, &ErrorInfo{
		Code:    CodeUpstream,
		Message: message,
		Status:  status,
		Details: details,
	})
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeInternal, message)
}
