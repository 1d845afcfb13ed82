package lakehouse

import (
	"encoding/json"
	"fmt"
)

// decodePayload re-marshals an envelope's loosely-typed payload map into a
// concrete request struct. The payload already passed through JSON
// decoding once at the transport boundary, so round-tripping through
// encoding/json here is just a type-directed reshape, not a new parse.
func decodePayload(payload map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lakehouse: encode payload: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("lakehouse: decode payload: %w", err)
	}
	return nil
}
