package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/talgya/classroom/internal/engine"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// pageSizeConfig configures page size normalization.
type pageSizeConfig struct {
	Default int
	Max     int
}

var (
	eventPages    = pageSizeConfig{Default: 100, Max: 500}
	snapshotPages = pageSizeConfig{Default: 500, Max: 1000}
)

// clampPageSize applies defaults and limits for page sizes.
func clampPageSize(value int, cfg pageSizeConfig) int {
	if value <= 0 {
		value = cfg.Default
	}
	if cfg.Max > 0 && value > cfg.Max {
		value = cfg.Max
	}
	if value <= 0 {
		value = 1
	}
	return value
}

// queryTime parses an RFC 3339 timestamp or a bare day. Missing means zero.
func queryTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(engine.DayLayout, v); err == nil {
		return t, nil
	}
	return time.Time{}, badRequest("%s: want RFC 3339 time or YYYY-MM-DD, got %q", key, v)
}

// queryDay validates a YYYY-MM-DD parameter. Missing means empty.
func queryDay(q url.Values, key string) (string, error) {
	v := q.Get(key)
	if v == "" {
		return "", nil
	}
	if _, err := time.Parse(engine.DayLayout, v); err != nil {
		return "", badRequest("%s: want YYYY-MM-DD, got %q", key, v)
	}
	return v, nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s: not an integer: %q", key, v)
	}
	return n, nil
}

func queryInt64(q url.Values, key string) (int64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, badRequest("%s: not a cursor: %q", key, v)
	}
	return n, nil
}
