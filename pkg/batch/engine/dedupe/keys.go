package dedupe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// DefaultKeyFields are the identity keys of well-known models. Any other
// model is identified by "name".
var DefaultKeyFields = map[string][]string{
	"res.partner":      {"name", "phone"},
	"product.template": {"default_code"},
	"product.product":  {"default_code", "barcode"},
	"product.category": {"complete_name"},
	"account.account":  {"code"},
	"uom.uom":          {"name", "category_id"},
}

// KeyHash builds the composite key of r over keys: every non-empty value,
// trimmed and lower-cased unless caseSensitive, rendered "field:value",
// sorted by field name and joined with "|". An empty hash never matches.
func KeyHash(r model.Record, keys []string, caseSensitive bool) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := keyValue(r[k])
		if !ok {
			continue
		}
		if !caseSensitive {
			v = strings.ToLower(v)
		}
		parts = append(parts, k+":"+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// keyValue renders one key value. nil, false, blank strings and empty
// many-to-one pairs contribute nothing; a many-to-one [id, name] pair
// contributes its id.
func keyValue(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		if !x {
			return "", false
		}
		return "true", true
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case []interface{}:
		if len(x) == 0 {
			return "", false
		}
		return keyValue(x[0])
	}
	if id, ok := model.AsInt64(v); ok {
		return strconv.FormatInt(id, 10), true
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}

func keyValues(r model.Record, keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out[k] = r[k]
	}
	return out
}
