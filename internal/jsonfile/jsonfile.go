// Package jsonfile reads and writes small JSON documents on disk.
//
// Numbers are decoded as json.Number so values round-trip verbatim, and
// writes go through a temporary file renamed into place.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// TempSuffix is appended to the path of a file while it is being replaced.
const TempSuffix = ".tmp"

// ErrDecode marks content that exists but is not valid JSON for the target.
var ErrDecode = errors.New("decode json")

// Read decodes the file at path into v.
func Read(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Decode(data, v)
}

// Decode decodes a single JSON value from data into v, keeping numbers as json.Number.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON value", ErrDecode)
	}
	return nil
}

// ReadObject reads a JSON object. A top-level value that is not an object is an ErrDecode.
func ReadObject(path string) (map[string]any, error) {
	var obj map[string]any
	if err := Read(path, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s does not contain an object", ErrDecode, path)
	}
	return obj, nil
}

// Write encodes v with two-space indentation and replaces path atomically.
func Write(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	data = append(data, '\n')

	tempPath := path + TempSuffix
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
