package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/nsoperations/depforge/version"
)

// ReadResolution parses a resolution file: a JSON object mapping
// dependency keys to pinned version tokens.
func ReadResolution(r io.Reader) (map[Dependency]version.Pinned, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing resolution file: %w", err)
	}

	resolved := make(map[Dependency]version.Pinned, len(raw))
	for key, pin := range raw {
		dep, err := ParseDependencyKey(key)
		if err != nil {
			return nil, err
		}
		resolved[dep] = version.NewPinned(pin)
	}
	return resolved, nil
}

// ReadResolutionFile reads a resolution file from a path.
func ReadResolutionFile(path string) (map[Dependency]version.Pinned, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadResolution(f)
}

// WriteResolution writes a resolution as JSON with keys in sorted order,
// so repeated identical resolutions produce byte-identical files.
func WriteResolution(w io.Writer, resolved map[Dependency]version.Pinned) error {
	keys := make([]string, 0, len(resolved))
	byKey := make(map[string]string, len(resolved))
	for dep, pin := range resolved {
		key := dep.Key()
		keys = append(keys, key)
		byKey[key] = pin.Commitish
	}
	sort.Strings(keys)

	// encoding/json sorts object keys for maps, but spelling the order
	// out keeps the file format independent of that detail.
	var buf []byte
	buf = append(buf, '{', '\n')
	for i, key := range keys {
		entry, err := json.Marshal(key)
		if err != nil {
			return err
		}
		value, err := json.Marshal(byKey[key])
		if err != nil {
			return err
		}
		buf = append(buf, "  "...)
		buf = append(buf, entry...)
		buf = append(buf, ": "...)
		buf = append(buf, value...)
		if i < len(keys)-1 {
			buf = append(buf, ',')
		}
		buf = append(buf, '\n')
	}
	buf = append(buf, '}', '\n')

	_, err := w.Write(buf)
	return err
}

// WriteResolutionFile writes a resolution to a path, creating or
// truncating it.
func WriteResolutionFile(path string, resolved map[Dependency]version.Pinned) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteResolution(f, resolved); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
