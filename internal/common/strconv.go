package common

import (
	"strconv"
	"strings"
)

// ParseInt64 parses s as a base-10 integer, returning def when s is empty or
// malformed.
func ParseInt64(s string, def int64) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
