package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is one source row, keyed by remote field name.
type Record map[string]interface{}

// Reserved marker keys. Every key with the InternalPrefix is stripped before
// a record reaches the gateway.
const (
	InternalPrefix  = "__"
	MarkerSourceRow = "__source_row__"
	MarkerAction    = "__action__"
	MarkerRemoteID  = "__remote_id__"

	ActionUpdate = "update"
)

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Payload returns a copy of r without internal marker keys.
func (r Record) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		if strings.HasPrefix(k, InternalPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// UpdateTarget returns the remote id of an update record. A record is an
// update only if it carries both the update action marker and a remote id.
func (r Record) UpdateTarget() (int64, bool) {
	if action, _ := r[MarkerAction].(string); action != ActionUpdate {
		return 0, false
	}
	return AsInt64(r[MarkerRemoteID])
}

// SourceRow returns the __source_row__ marker when present, otherwise fallback.
func (r Record) SourceRow(fallback int) int {
	if v, ok := AsInt64(r[MarkerSourceRow]); ok {
		return int(v)
	}
	return fallback
}

// AsUpdate returns a copy of r marked as an update of remoteID.
func (r Record) AsUpdate(remoteID int64) Record {
	out := r.Clone()
	out[MarkerAction] = ActionUpdate
	out[MarkerRemoteID] = remoteID
	return out
}

// AsInt64 converts the integral numeric representations produced by Go code,
// JSON decoding and YAML decoding. Fractional floats and booleans are not ids.
func AsInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
