package ytdlp

import (
	"encoding/json"
	"strconv"
)

// Metadata is the loosely-typed document yt-dlp prints with --dump-json.
// Every field may be absent, null or of an unexpected type; the accessors
// treat all of those, plus zero and empty values, as missing.
type Metadata map[string]any

// String returns the first key that holds a non-empty string.
func (m Metadata) String(keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Number returns the first key that holds a non-zero number. Numeric strings
// are accepted since some extractors emit counts as text.
func (m Metadata) Number(keys ...string) (float64, bool) {
	for _, key := range keys {
		if n, ok := toNumber(m[key]); ok && n != 0 {
			return n, true
		}
	}
	return 0, false
}

func (m Metadata) Bool(key string) bool {
	b, _ := m[key].(bool)
	return b
}

// Format is one entry of the formats array.
type Format struct {
	ID  string
	Ext string
}

func (m Metadata) Formats() []Format {
	raw, ok := m["formats"].([]any)
	if !ok {
		return nil
	}
	formats := make([]Format, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			formats = append(formats, Format{})
			continue
		}
		f := Format{}
		f.ID, _ = obj["format_id"].(string)
		f.Ext, _ = obj["ext"].(string)
		formats = append(formats, f)
	}
	return formats
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseMetadata decodes one JSON document. Anything that is not a JSON object
// is rejected.
func ParseMetadata(data []byte) (Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errNotAnObject
	}
	return meta, nil
}
