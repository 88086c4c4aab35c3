package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"hvac_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRangeOrder  = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      List command audit log
// @Description  Writes sent to the device, oldest first. Filter by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'); a date-only 'to' covers the whole day.
// @Tags         logs
// @Produce      json
// @Param        from       query     string  false  "Start of range"  example(2025-08-01)
// @Param        to         query     string  false  "End of range. Date-only treated as end of day."  example(2025-08-31)
// @Param        operation  query     string  false  "Operation"  Enums(set_temperature_feed,set_hysteresis,set_mode,set_valve,set_valve_activated)
// @Success      200        {object}  map[string]interface{}  "count, events"
// @Failure      400        {string}  string
// @Failure      401        {string}  string
// @Failure      403        {string}  string
// @Failure      500        {string}  string
// @Router       /logs [get]
// @Security     BasicAuth
func (h *Handler) getLogs(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		from      time.Time
		to        time.Time
		operation = strings.TrimSpace(c.Query("operation"))
		err       error
	)
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.String(http.StatusBadRequest, errFromInvalid)
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.String(http.StatusBadRequest, errToInvalid)
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.String(http.StatusBadRequest, errRangeOrder)
		return
	}

	events, err := h.services.EventLog.List(ctx, service.LogFilter{
		From:      from,
		To:        to,
		Operation: operation,
	})
	if err != nil {
		h.fail(c, "logs_list_failed", err, "from", from, "to", to, "operation", operation)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
