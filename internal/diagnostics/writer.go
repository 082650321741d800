package diagnostics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/lspwarm/internal/config"
)

// Encode serializes s in format (json, yaml, toml or msgpack).
func Encode(s Summary, format string) ([]byte, error) {
	if s == nil {
		s = Summary{}
	}
	switch format {
	case "", config.FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case config.FormatYAML:
		return yaml.Marshal(map[string]Entry(s))
	case config.FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(map[string]Entry(s)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case config.FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(map[string]Entry(s)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Decode parses data written by Encode.
func Decode(data []byte, format string) (Summary, error) {
	out := map[string]Entry{}
	var err error
	switch format {
	case "", config.FormatJSON:
		err = json.Unmarshal(data, &out)
	case config.FormatYAML:
		err = yaml.Unmarshal(data, &out)
	case config.FormatTOML:
		_, err = toml.Decode(string(data), &out)
	case config.FormatMsgpack:
		err = msgpack.Unmarshal(data, &out)
	default:
		err = fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]Entry{}
	}
	return Summary(out), nil
}

// WriteFile truncates path and writes data in a single write, creating the
// parent directory if needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ReadFile loads a summary file.
func ReadFile(path, format string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, format)
}
