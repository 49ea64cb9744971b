package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern builds a case-insensitive substring pattern; callers compare
// against LOWER(column) with ESCAPE '!'. Typed "%" and "_" match literally.
func likePattern(term string) string {
	return "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// prefixPattern is likePattern anchored at the start.
func prefixPattern(term string) string {
	return escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalisePostcode(postcode string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postcode), " "))
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
