package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Type identifies the biometric modality of a record.
type Type string

const (
	// TypeFace is a face embedding record.
	TypeFace Type = "face"
	// TypePalm is a palm (vein pattern) embedding record.
	TypePalm Type = "palm"
)

// Types lists all supported biometric types in a stable order.
func Types() []Type {
	return []Type{TypeFace, TypePalm}
}

// Valid reports whether t is a supported biometric type.
func (t Type) Valid() bool {
	return t == TypeFace || t == TypePalm
}

// Tag returns the uppercase type tag used as the record ID prefix
// (e.g. "FACE" for TypeFace). The tag is part of the external ID contract.
func (t Type) Tag() string {
	return strings.ToUpper(string(t))
}

func (t Type) String() string {
	return string(t)
}

// ParseType parses a biometric type from its string form.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown biometric type %q", s)
	}
	return t, nil
}

// Record is a persisted biometric entry.
//
// Records are immutable after creation: re-registration mints a new record,
// it never mutates an existing vector.
type Record struct {
	// ID has the contractual form {TYPE}-{RANDOM}, e.g. "FACE-7K2M9QX41BZD".
	ID string `cbor:"id" json:"id"`

	// Type is the biometric modality.
	Type Type `cbor:"type" json:"type"`

	// Vector is the feature vector produced by the extractor. Its length is
	// fixed per type by the extractor's output dimensionality.
	Vector []float32 `cbor:"vector" json:"vector,omitempty"`

	// Metadata holds caller-supplied attributes (e.g. owner name). It is
	// opaque to the matching engine.
	Metadata map[string]string `cbor:"metadata" json:"metadata,omitempty"`

	// CreatedAt is set once at registration time.
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

// Clone returns a deep copy of the record. Stores hand out clones so callers
// can never mutate persisted state through a returned pointer.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Vector = slices.Clone(r.Vector)
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	return &c
}

// Match is a scored candidate produced by a best-match scan.
type Match struct {
	// ID is the matched record's ID.
	ID string `json:"id"`
	// Score is the similarity in [0,1]; higher is more alike.
	Score float64 `json:"score"`
	// Record is the matched record (vector omitted from API responses).
	Record *Record `json:"-"`
}
