// Package snapshot reads reference tables from YAML or JSON documents and
// watches snapshot files for changes.
package snapshot

import (
	"bytes"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// Decode parses a snapshot document. JSON is accepted as a subset of YAML.
// Unknown keys are rejected so that misspelled columns do not silently
// produce empty fields.
func Decode(r io.Reader) (*substance.Tables, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var tables substance.Tables
	if err := dec.Decode(&tables); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrCodeSnapshotDecode, "snapshot is empty")
		}
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotDecode, "failed to decode snapshot")
	}
	return &tables, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (*substance.Tables, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes tables as YAML.
func Encode(w io.Writer, tables *substance.Tables) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tables); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode snapshot")
	}
	return enc.Close()
}
