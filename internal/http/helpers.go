package http

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
	"kpiboard/internal/outwriter"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// statusFor maps an error onto the status used by the JSON API and downloads.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindNone:
		return http.StatusOK
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConnection:
		return http.StatusBadGateway
	case core.KindSchema, core.KindInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// logActionError records a failed user action. Expected failures (missing
// table, bad input) are warnings; the rest are errors.
func logActionError(ctx context.Context, msg string, err error, op string, fields log.LogFields) {
	if fields == nil {
		fields = log.NewFields()
	}
	kind := core.KindOf(err)
	fields = fields.WithError(err, string(kind)).WithOperation(op)
	l := log.FromContext(ctx)
	switch kind {
	case core.KindNotFound, core.KindInvalidInput:
		l.WarnContext(ctx, msg, fields.ToSlice()...)
	default:
		l.ErrorContext(ctx, msg, fields.ToSlice()...)
	}
}

// formatFixed renders f with two decimals, the precision used on screen.
func formatFixed(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// statusClass turns an achievement percentage into a CSS class, e.g. "on-track".
func statusClass(achievementPct float64) string {
	return strings.ReplaceAll(strings.ToLower(outwriter.PlainLabel(achievementPct)), " ", "-")
}

// barWidth scales v against the largest value into a 0-100 percentage.
// Positive values get at least 2% so they stay visible.
func barWidth(v, max float64) int {
	if v <= 0 || max <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	w := int(math.Round(v / max * 100))
	if w < 2 {
		return 2
	}
	if w > 100 {
		return 100
	}
	return w
}
