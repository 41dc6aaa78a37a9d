package vehicle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrMissingVIN is returned when a snapshot carries no VIN.
var ErrMissingVIN = errors.New("snapshot without vin")

// Decode builds a Vehicle from a raw snapshot document as produced by the
// koanf parsers or encoding/json. The VIN is normalised to upper case.
func Decode(raw map[string]any) (*Vehicle, error) {
	v := &Vehicle{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: tagName,
		Squash:  true,
		Result:  v,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode vehicle: %w", err)
	}
	v.VIN = strings.ToUpper(strings.TrimSpace(v.VIN))
	if v.VIN == "" {
		return nil, ErrMissingVIN
	}
	if v.Name == "" {
		v.Name = v.VIN
	}
	for i, s := range v.AvailableServices {
		v.AvailableServices[i] = Service(strings.ToUpper(string(s)))
	}
	return v, nil
}

// DecodeList decodes every element of items with Decode.
func DecodeList(items []any) ([]*Vehicle, error) {
	out := make([]*Vehicle, 0, len(items))
	for i, it := range items {
		raw, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("vehicle %d: unexpected %T", i, it)
		}
		v, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
