package models

import (
	"database/sql/driver"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// CoverKeys is the ordered list of storage keys for an audiobook's cover
// images. It is stored as a JSON array in a TEXT column.
type CoverKeys []string

func (k CoverKeys) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(k))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return string(b), nil
}

func (k *CoverKeys) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*k = CoverKeys{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return errors.Errorf("cannot scan %T into CoverKeys", src)
	}
	keys, err := NormalizeCoverKeys(raw)
	if err != nil {
		return err
	}
	*k = keys
	return nil
}

// NormalizeCoverKeys parses a stored cover value. Besides the JSON array
// format it accepts the legacy single-path forms: a bare path or a JSON
// encoded string. Empty entries are dropped.
func NormalizeCoverKeys(raw string) (CoverKeys, error) {
	raw = strings.TrimSpace(raw)
	keys := CoverKeys{}
	switch {
	case raw == "", raw == "null":
		return keys, nil
	case strings.HasPrefix(raw, "["):
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, errors.Wrap(err, "invalid cover image list")
		}
		for _, key := range list {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
	case strings.HasPrefix(raw, `"`):
		var single string
		if err := json.Unmarshal([]byte(raw), &single); err != nil {
			return nil, errors.Wrap(err, "invalid cover image value")
		}
		if single = strings.TrimSpace(single); single != "" {
			keys = append(keys, single)
		}
	default:
		keys = append(keys, raw)
	}
	return keys, nil
}
