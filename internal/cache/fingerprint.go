package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Fingerprint derives the canonical cache key for a request: an
// order-independent serialization of (id, type, data, constraints) hashed
// with xxhash64. Two structurally-equal requests hash identically regardless
// of map key order.
func Fingerprint(req model.OptimizationRequest) string {
	var b strings.Builder
	b.WriteString("id=")
	b.WriteString(req.ID)
	b.WriteString(";type=")
	b.WriteString(string(req.Type))
	b.WriteString(";data=")
	writeCanonical(&b, req.Data)
	b.WriteString(";constraints=")
	writeCanonical(&b, req.Constraints)

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// writeCanonical renders v deterministically: map keys sorted recursively,
// slices in order, scalars via JSON encoding.
func writeCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			// Unmarshalable values cannot round-trip through the API anyway;
			// fall back to the fmt rendering so the key stays deterministic.
			fmt.Fprintf(b, "%v", t)
			return
		}
		b.Write(raw)
	}
}
