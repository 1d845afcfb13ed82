package idgen

import (
	"crypto/sha256"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// RecordID computes the content-addressed `_record_id` for a write payload:
// a sha256 digest over the sorted-key JSON encoding of the record, base36
// encoded to a fixed 32-character width via the same EncodeBase36 used for
// bd's short IDs. Two payloads that differ only in key order or in field
// insertion order produce the same id; this is what makes repeated writes
// of an identical payload idempotent rather than duplicative (see the
// versioned read path's "latest _version per _record_id" rule).
func RecordID(record map[string]interface{}) string {
	digest := sha256.Sum256(canonicalJSON(record))
	return EncodeBase36(digest[:], 32)
}

// canonicalJSON encodes a record with its keys sorted, recursively, so the
// digest is stable regardless of map iteration or construction order.
func canonicalJSON(v interface{}) []byte {
	normalized := normalize(v)
	b, err := json.Marshal(normalized)
	if err != nil {
		// record values are always JSON-serializable scalars/maps/slices
		// produced by the transport decoder; a marshal failure here would
		// indicate a transport bug, not bad caller input.
		panic(err)
	}
	return b
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]orderedEntry, 0, len(keys))
		for _, k := range keys {
			out = append(out, orderedEntry{Key: k, Value: normalize(t[k])})
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return t
	}
}

// orderedEntry marshals as a two-element array so map key order never
// depends on Go's randomized map iteration, while still round-tripping
// through encoding/json without a custom MarshalJSON on a generic map type.
type orderedEntry struct {
	Key   string
	Value interface{}
}

func (e orderedEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.Key, e.Value})
}

// NewRequestID returns a fresh request-scoped identifier for envelopes that
// arrive without one already assigned by the caller.
func NewRequestID() string {
	return uuid.NewString()
}
