// Package utils holds query-parameter and paging helpers shared by the
// handlers and services.
package utils

import (
	"strconv"
	"strings"
)

// IntOr parses s as a base-10 int after trimming spaces, returning def when
// s is blank or not a number.
func IntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}

// Window turns a 1-based page into a row offset and limit. Pages below 1 are
// the first page; a non-positive size falls back to defaultSize.
func Window(page, pageSize, defaultSize int) (offset, limit int) {
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	return (max(page, 1) - 1) * pageSize, pageSize
}
