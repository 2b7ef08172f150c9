package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

// pathID parses a positive snowflake id path parameter and aborts the request
// with a validation error otherwise.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := parseSnowflakeID(c.Param(name))
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid "+name))
		return 0, false
	}
	return id, true
}

func parseSnowflakeID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid_snowflake_id")
	}
	return parsed, nil
}

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := parseSnowflakeID(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC3339 or a bare date, which is read as UTC midnight.
func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}
