package wire

import (
	"encoding/json"
	"fmt"
)

// EncodeLine marshals v as a single JSON line with trailing newline.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode line: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeLine parses one framed line as a JSON value. Objects decode to
// map[string]any, arrays to []any, numbers to float64.
func DecodeLine(line string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		return nil, fmt.Errorf("decode line: %w", err)
	}
	return v, nil
}
