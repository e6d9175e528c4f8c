package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/strmangle"
)

// NowFunc is the clock used by services; tests replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

// Now returns NowFunc truncated to the second, the precision persisted timestamps keep.
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Second)
}

// NewID returns a new random entity ID.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id looks like an entity ID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// StringIn reports whether s is one of values.
func StringIn(s string, values ...string) bool {
	return strmangle.SetInclude(s, values)
}
