package normalize

import (
	"encoding/json"
	"time"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"
)

// serverOwned columns are assigned by the remote store on insert
var serverOwned = []string{"id", "createdAt"}

// ToRow converts an entity, or a canonical patch map, into a remote row of
// plain JSON values. Empty ids and unset timestamps are left out so the
// store can fill them.
func ToRow(kind models.Kind, v any) remote.Row {
	fields := toMap(v)
	cols := columnsFor(kind)
	row := make(remote.Row, len(fields))
	for k, val := range fields {
		if unset(val) && isServerOwned(k) {
			continue
		}
		if s, ok := val.(string); ok && s == zeroTime {
			continue
		}
		if col, ok := cols[k]; ok {
			row[col] = val
			continue
		}
		row[k] = val
	}
	return row
}

// ToMap renders an entity in its canonical JSON field layout
func ToMap(v any) map[string]any {
	return toMap(v)
}

func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func isServerOwned(k string) bool {
	for _, c := range serverOwned {
		if c == k {
			return true
		}
	}
	return false
}

func unset(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == zeroTime
	case time.Time:
		return t.IsZero()
	}
	return false
}

var zeroTime = time.Time{}.Format(time.RFC3339Nano)
