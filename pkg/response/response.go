package response

import (
	"errors"
	"net/http"
	"time"

	"ride-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// PageResponse wraps a list endpoint's items with paging metadata.
type PageResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// NoContent sends a 204 with an empty body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Page sends a 200 response with a paged list.
func Page(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	OK(c, PageResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// Error writes err as an ErrorResponse. Anything that is not an *apperror.AppError
// becomes a 500 and its detail stays in the logs.
func Error(c *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, apperror.CodeInternal, "Internal server error"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code, msg = appErr.HTTPStatus, appErr.Code, appErr.Message
	}

	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   msg,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID prefers the id set by the RequestID middleware.
func requestID(c *gin.Context) string {
	if s := c.GetString("request_id"); s != "" {
		return s
	}
	return uuid.New().String()
}
