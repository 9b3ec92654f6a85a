package utils

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	// MaxPage keeps (page-1)*limit inside an int32 offset.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// RespondWithError aborts the chain with an {"error": message} body.
func RespondWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// ClinicID returns the tenant of the authenticated session. On failure the
// response has already been written.
func ClinicID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("clinicId")
	if !exists {
		RespondWithError(c, http.StatusUnauthorized, "Clinic ID not found in context")
		return uuid.Nil, false
	}
	s, _ := raw.(string)
	id, err := uuid.Parse(s)
	if err != nil {
		RespondWithError(c, http.StatusUnauthorized, "Invalid clinic ID format")
		return uuid.Nil, false
	}
	return id, true
}

// UserID mirrors ClinicID for the session subject.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("userId")
	if !exists {
		RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return uuid.Nil, false
	}
	s, _ := raw.(string)
	id, err := uuid.Parse(s)
	if err != nil {
		RespondWithError(c, http.StatusUnauthorized, "Invalid user ID format")
		return uuid.Nil, false
	}
	return id, true
}

// ParamUUID parses a path parameter, answering 400 when it is malformed.
func ParamUUID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid "+label+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// PageParams reads ?page= and ?limit=, defaulting to 1 and 50.
func PageParams(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)))
	if err != nil || limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
