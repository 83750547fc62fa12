package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BartekS5/cinesync/pkg/models"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

// LoadSchemas returns the target collection definition for every stream.
// Files named <stream>.json in dir replace the built-in definitions; an
// empty dir means built-ins only.
func LoadSchemas(dir string) (map[models.Stream]*models.SchemaDefinition, error) {
	out := make(map[models.Stream]*models.SchemaDefinition, len(models.AllStreams))
	for _, stream := range models.AllStreams {
		name := string(stream) + ".json"

		bytes, err := embeddedSchemas.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("missing built-in schema for %s: %w", stream, err)
		}
		source := "built-in " + name

		if dir != "" {
			path := filepath.Join(dir, name)
			custom, err := os.ReadFile(path)
			switch {
			case err == nil:
				bytes, source = custom, path
			case !os.IsNotExist(err):
				return nil, fmt.Errorf("failed to read schema file '%s': %w", path, err)
			}
		}

		def, err := models.LoadSchema(bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema '%s': %w", source, err)
		}
		if def.Stream != stream {
			return nil, fmt.Errorf("schema '%s' declares stream %q, expected %q", source, def.Stream, stream)
		}
		out[stream] = def
	}
	return out, nil
}
