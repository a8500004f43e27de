// Package codec centralizes record and journal-entry encoding.
//
// Codec selection is a breaking-change boundary: bytes persisted by one codec
// may not decode under another. Persistent formats store the codec name in
// their header and select the codec by name when reopening.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = CBOR{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "cbor":
		return CBOR{}, true
	default:
		return nil, false
	}
}
