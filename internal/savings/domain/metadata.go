package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/segmentio/encoding/json"
)

// Metadata is a free-form JSON object column.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = out
	return nil
}

// With returns a copy of m with key set.
func (m Metadata) With(key string, value any) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// String returns the value at key when it is a string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Settled returns metadata with the in-flight marker removed, recording
// reverted when the broadcast transaction failed on-chain.
func (m Metadata) Settled(reverted string) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		if k == MetaSubmittedTxHash || k == MetaSubmittedOp {
			continue
		}
		out[k] = v
	}
	if reverted != "" {
		out[MetaRevertedTxHash] = reverted
	}
	return out
}
