package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/insight-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== QUERY STRUCTURES =====

// insightQuery is the query surface of the institution-scoped endpoints.
// The optional as_of override keeps responses reproducible for support
// and tests.
type insightQuery struct {
	InstitutionID string `form:"institution_id" json:"institution_id" validate:"required"`
	AsOf          string `form:"as_of" json:"as_of" validate:"omitempty,rfc3339"`
	Limit         int    `form:"limit" json:"limit" validate:"gte=0"`
	ClassID       *uint  `form:"class_id" json:"class_id"`
}

// studentQuery is the query surface of the per-student drill-down.
type studentQuery struct {
	AsOf string `form:"as_of" json:"as_of" validate:"omitempty,rfc3339"`
}

// resolveNow maps a validated as_of value to the computation timestamp.
func resolveNow(asOf string) time.Time {
	if asOf == "" {
		return time.Now().UTC()
	}
	parsed, _ := time.Parse(time.RFC3339, asOf)
	return parsed.UTC()
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging and request validation for all
// handlers
type BaseHandler struct {
	logger    utils.Logger
	validator *utils.Validator
}

func NewBaseHandler(logger utils.Logger, validator *utils.Validator) BaseHandler {
	return BaseHandler{
		logger:    logger,
		validator: validator,
	}
}

// LogError logs error details with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	}
	fields = append(fields, additionalFields...)
	h.logger.LogError(err, message, fields...)
}

// bindQuery binds and validates query parameters into dest. Writes the 400
// response itself and returns false when the request is malformed.
func (h *BaseHandler) bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return false
	}
	if err := h.validator.ValidateStruct(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: utils.FormatValidationDetails(err),
		})
		return false
	}
	return true
}
