package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// timeLayouts are the accepted forms of a time bound, most specific first.
var timeLayouts = []string{ //nolint:gochecknoglobals // read-only
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseTimeQuery parses an optional RFC3339 or ISO8601 query bound. Times without a
// zone are taken as UTC.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.ValidationField(key, "'"+key+"' must be an RFC3339 or ISO8601 timestamp")
}

// pathID returns the named path value when it is a UUID. A malformed id cannot name
// any row, so it is reported as not found.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := r.PathValue(name)
	if _, err := uuid.Parse(raw); err != nil {
		WriteAppError(w, r, apperrors.NotFoundf("%s %q not found", name, raw))
		return "", false
	}
	return raw, true
}

// pathTenant returns the tenant path segment.
func pathTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := strings.TrimSpace(r.PathValue("tenant"))
	if tenant == "" {
		WriteAppError(w, r, apperrors.ValidationField("tenant", "tenant is required"))
		return "", false
	}
	return tenant, true
}
