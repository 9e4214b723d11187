package token

import "encoding/json"

// Metadata is the free-form key/value bag callers attach to a token
// (spec §3, C2). It is decoded straight from the JSON body of a request, so
// values may be any JSON type.
type Metadata map[string]any

// Clone returns a shallow copy of m. Store operations never hand out the
// map they hold internally; callers that mutate the result must not expect
// it to be reflected in the store.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge implements the key-overwrite merge of spec §3: keys present in
// overlay replace the matching key in base; keys absent from overlay are
// left untouched. base is not mutated.
//
// Grounded on original_source/src/token_server/token_store.rs's
// `meta.extend(metadata_update)`.
func Merge(base, overlay Metadata) Metadata {
	merged := base.Clone()
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// DecodeMetadata unmarshals raw JSON into a Metadata value, rejecting
// anything that isn't a JSON object (spec §9 open question (a): a missing
// or non-object meta is a 422, not a silently-defaulted {}).
func DecodeMetadata(raw json.RawMessage) (Metadata, error) {
	if len(raw) == 0 {
		return nil, ErrMetadataNotObject
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, ErrMetadataNotObject
	}
	if m == nil {
		// "null" decodes into a nil map without error; treat it the same
		// as any other non-object value.
		return nil, ErrMetadataNotObject
	}
	return m, nil
}
