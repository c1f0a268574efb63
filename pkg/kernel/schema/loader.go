package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDocumentFile reads a plan document from a .json, .yaml or .yml file.
func LoadDocumentFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return LoadDocument(f)
}

// LoadDocument reads a plan document from a reader. JSON is tried first
// since that is what planners emit; anything else is decoded as YAML.
func LoadDocument(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes a plan document from JSON or YAML bytes. The top
// level must be an object.
func ParseDocument(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("structural decode: empty plan")
	}

	var doc map[string]any
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("structural decode: %w", err)
		}
		return Document(doc), nil
	}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("structural decode: plan is not an object")
	}
	return Document(normalize(doc).(map[string]any)), nil
}

// normalize rewrites YAML-decoded values into the shapes encoding/json
// produces, so documents look the same whatever their source format.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalize(item)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case []any:
		for i, item := range x {
			x[i] = normalize(item)
		}
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return v
	}
}
