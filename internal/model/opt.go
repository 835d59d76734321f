package model

import (
	"encoding/json"
	"strings"
)

// Opt is an optional value. The zero value is absent.
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns a present Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// None returns an absent Opt.
func None[T any]() Opt[T] {
	return Opt[T]{}
}

// Text returns a present Opt for s after trimming, or None when s is blank.
func Text(s string) Opt[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return None[string]()
	}
	return Some(s)
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value is present.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value when present, otherwise def.
func (o Opt[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// IsZero lets encoding/json omit absent values via the omitzero tag.
func (o Opt[T]) IsZero() bool {
	return !o.set
}

// MarshalJSON encodes the value, or null when absent.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes a value; null leaves the Opt absent.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
