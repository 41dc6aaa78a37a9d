// Package snapshot reads vehicle snapshot documents from disk.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

// FileSource loads snapshots from a YAML or JSON document. The document
// either holds a "vehicles" list or a single vehicle at the top level.
type FileSource struct {
	Path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", ext)
	}
}

// Load reads the document. It is re-read on every call.
func (s *FileSource) Load(ctx context.Context) ([]*vehicle.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser, err := parserFor(s.Path)
	if err != nil {
		return nil, err
	}
	k := koanf.New("::")
	if err := k.Load(file.Provider(s.Path), parser); err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.Path, err)
	}
	raw := k.Raw()
	if items, ok := raw["vehicles"]; ok {
		list, ok := items.([]any)
		if !ok {
			return nil, fmt.Errorf("snapshot %s: vehicles must be a list", s.Path)
		}
		return vehicle.DecodeList(list)
	}
	v, err := vehicle.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.Path, err)
	}
	return []*vehicle.Vehicle{v}, nil
}
