package docstore

import (
	"encoding/json"
	"fmt"
)

// FromStruct はJSONタグに従って構造体をFieldsに変換する。
func FromStruct(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return fields, nil
}

// Decode はレコードのフィールドをJSONタグに従って構造体に読み込む。
func (r *Record) Decode(v any) error {
	raw, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}
	return nil
}
