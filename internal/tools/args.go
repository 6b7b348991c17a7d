package tools

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Args is the decoded argument object of a function call.
type Args map[string]any

// String returns the trimmed string value of key, accepting numbers too.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Require returns the value of key or an invalid argument error.
func (a Args) Require(key string) (string, error) {
	v := a.String(key)
	if v == "" {
		return "", missingArg(key)
	}
	return v, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Date parses key as a date, read in loc when no offset is given.
func (a Args) Date(key string, loc *time.Location) (time.Time, error) {
	raw, err := a.Require(key)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s %q is not a date", ErrInvalidArgument, key, raw)
}
