// Package manifest stores lists of method descriptors. JSON is the canonical form;
// YAML, MessagePack and SQLite hold the same nodes.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

type Format string

const (
	JSON        Format = "json"
	YAML        Format = "yaml"
	MessagePack Format = "msgpack"
	SQLite      Format = "sqlite"
)

var ErrUnknownFormat = errors.New("unknown manifest format")

var extensions = map[string]Format{
	".json":    JSON,
	".yaml":    YAML,
	".yml":     YAML,
	".msgpack": MessagePack,
	".mp":      MessagePack,
	".db":      SQLite,
	".sqlite":  SQLite,
	".sqlite3": SQLite,
}

// ParseFormat accepts a format name as given on the command line or in configuration.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case JSON, YAML, MessagePack, SQLite:
		return f, nil
	case "yml":
		return YAML, nil
	case "mp":
		return MessagePack, nil
	case "db":
		return SQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatOf infers the format from the extension of path.
func FormatOf(path string) (Format, error) {
	if f, found := extensions[strings.ToLower(filepath.Ext(path))]; found {
		return f, nil
	}
	return "", fmt.Errorf("%w: cannot infer from %s", ErrUnknownFormat, path)
}

func resolve(path string, format Format) (Format, error) {
	if format == "" {
		return FormatOf(path)
	}
	return ParseFormat(string(format))
}
