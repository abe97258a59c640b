// Package serialization holds the JSON helpers shared by the persisted
// artifacts of the migration tool: batch state files, schema cache entries and
// the created-id columns of the SQL state store.
package serialization

import (
	"encoding/json"
	"sort"

	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	logger "github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const module = "serialization"

// MaskValue replaces sensitive values in masked copies.
const MaskValue = "********"

// MaskedCopy returns a shallow copy of params with every key listed in
// maskedKeys replaced by MaskValue. The input map is not modified.
func MaskedCopy(params map[string]interface{}, maskedKeys []string) map[string]interface{} {
	if len(params) == 0 {
		return map[string]interface{}{}
	}

	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		masked[k] = v
	}
	for _, key := range maskedKeys {
		if _, ok := masked[key]; ok {
			masked[key] = MaskValue
		}
	}
	return masked
}

// MarshalDocument serializes v as indented JSON. what names the artifact in
// log and error messages ("batch state", "schema cache entry").
func MarshalDocument(what string, v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Errorf("Failed to serialize %s: %v", what, err)
		return nil, exception.NewBatchErrorf(module, "failed to serialize %s", what, err)
	}
	return data, nil
}

// UnmarshalDocument deserializes data into v. Empty input and a JSON null
// leave v untouched and return false.
func UnmarshalDocument(what string, data []byte, v interface{}) (bool, error) {
	if len(data) == 0 || string(data) == "null" {
		logger.Debugf("%s is empty. Nothing to deserialize.", what)
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Errorf("Failed to deserialize %s: %v", what, err)
		return false, exception.NewBatchErrorf(module, "failed to deserialize %s", what, err)
	}
	return true, nil
}

// MarshalIDs serializes a list of remote record ids. A nil list becomes "[]".
func MarshalIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to serialize ids", err, false, false)
	}
	return data, nil
}

// UnmarshalIDs deserializes a list of remote record ids.
func UnmarshalIDs(data []byte) ([]int64, error) {
	if len(data) == 0 || string(data) == "null" {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, exception.NewBatchError(module, "failed to deserialize ids", err, false, false)
	}
	return ids, nil
}

// CanonicalPairs serializes (name, value) pairs as a JSON array of two-element
// arrays, sorted by name then value, so the output does not depend on input
// order.
func CanonicalPairs(pairs [][2]string) ([]byte, error) {
	sorted := make([][2]string, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})
	data, err := json.Marshal(sorted)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to serialize pairs", err, false, false)
	}
	return data, nil
}
