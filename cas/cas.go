// Package cas stores traces by content hash.
package cas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type CAS interface {
	Put(item Hashable) (Hash, error)
	Has(hash Hash) bool

	// Names map stable external identifiers (such as trace IDs) to hashes.
	Bind(name string, hash Hash) error
	Lookup(name string) (Hash, bool, error)
}

type Serde interface {
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
}

type Hashable interface {
	Serde
}

type directStore interface {
	getValue(h Hash) (bool, []byte, error)
}

type Hash uint64

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseHash reads the form produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing hash %q: %w", s, err)
	}
	return Hash(v), nil
}

var ErrNotFound = errors.New("hash not found in CAS")

// encode wraps item with its type tag. The hash of a stored item is the hash
// of these bytes.
func encode(item Hashable) ([]byte, error) {
	var data bytes.Buffer
	if err := item.Serialize(&data); err != nil {
		return nil, err
	}
	entry := &TypedEntry{TypeTag: getTypeTag(item), Data: data.Bytes()}
	var buf bytes.Buffer
	if err := entry.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serializing TypedEntry: %w", err)
	}
	return buf.Bytes(), nil
}

func Retrieve[T Hashable](c CAS, hash Hash) (T, error) {
	var t T
	v, ok := c.(directStore)
	if !ok {
		return t, errors.New("CAS does not support direct retrieval")
	}

	has, data, err := v.getValue(hash)
	if err != nil {
		return t, err
	}
	if !has {
		return t, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	typedEntry := &TypedEntry{}
	err = typedEntry.Deserialize(bytes.NewReader(data))
	if err != nil {
		return t, fmt.Errorf("deserializing TypedEntry: %w", err)
	}

	instance, err := createInstance(typedEntry.TypeTag)
	if err != nil {
		return t, fmt.Errorf("creating instance: %w", err)
	}

	err = instance.Deserialize(bytes.NewReader(typedEntry.Data))
	if err != nil {
		return t, fmt.Errorf("deserializing data: %w", err)
	}

	result, ok := instance.(T)
	if !ok {
		return t, fmt.Errorf("type mismatch: expected %T, got %T", t, instance)
	}
	return result, nil
}
