package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"jitmanifest/internal/descriptor"
)

// Write stores nodes at path. An empty format is inferred from the extension.
// File formats replace the file; SQLite appends a new run identified by runID.
func Write(path string, format Format, runID string, nodes []descriptor.MethodNode) error {
	format, err := resolve(path, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if format == SQLite {
		return writeSQLite(path, runID, nodes)
	}

	data, err := Marshal(format, nodes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// Read loads the nodes stored at path. For SQLite the most recent run is returned.
func Read(path string, format Format) ([]descriptor.MethodNode, error) {
	format, err := resolve(path, format)
	if err != nil {
		return nil, err
	}
	if format == SQLite {
		return readLatestRun(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	nodes, err := Unmarshal(format, data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return nodes, nil
}

// Marshal encodes nodes in one of the file formats.
func Marshal(format Format, nodes []descriptor.MethodNode) ([]byte, error) {
	if nodes == nil {
		nodes = []descriptor.MethodNode{}
	}

	switch format {
	case JSON:
		data, err := json.MarshalIndent(nodes, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case YAML:
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(nodes); err != nil {
			return nil, err
		}
		if err := encoder.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case MessagePack:
		return msgpack.Marshal(nodes)
	}
	return nil, fmt.Errorf("%w: %s has no single-document encoding", ErrUnknownFormat, format)
}

// Unmarshal decodes nodes from one of the file formats. Decode errors wrap
// descriptor.ErrMalformed.
func Unmarshal(format Format, data []byte) ([]descriptor.MethodNode, error) {
	var nodes []descriptor.MethodNode
	var err error
	switch format {
	case JSON:
		err = json.Unmarshal(data, &nodes)
	case YAML:
		err = yaml.Unmarshal(data, &nodes)
	case MessagePack:
		err = msgpack.Unmarshal(data, &nodes)
	default:
		return nil, fmt.Errorf("%w: %s has no single-document encoding", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", descriptor.ErrMalformed, err)
	}
	for i := range nodes {
		normalize(&nodes[i])
	}
	return nodes, nil
}

// normalize restores the empty lists a method node always carries, for encoders
// that do not tell an empty list from an absent one.
func normalize(node *descriptor.MethodNode) {
	if node.GenericArguments == nil {
		node.GenericArguments = []descriptor.TypeNode{}
	}
	if node.ParameterTypes == nil {
		node.ParameterTypes = []descriptor.TypeNode{}
	}
}
