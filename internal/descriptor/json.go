package descriptor

import (
	"encoding/json"
	"fmt"

	"jitmanifest/internal/clr"
)

// Serialize encodes m as indented JSON.
func Serialize(m *clr.Method) ([]byte, error) {
	node, err := EncodeMethod(m)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(node, "", "  ")
}

// Deserialize decodes one method descriptor and resolves it. Input that is not a
// JSON object fails with ErrMalformed.
func Deserialize(data []byte, loader clr.Loader) (*clr.Method, error) {
	var node *MethodNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if node == nil {
		return nil, fmt.Errorf("%w: null method descriptor", ErrMalformed)
	}
	return ResolveMethod(*node, loader)
}

func SerializeType(t *clr.Type) ([]byte, error) {
	return json.MarshalIndent(EncodeType(t), "", "  ")
}

func DeserializeType(data []byte, loader clr.Loader) (*clr.Type, error) {
	var node *TypeNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if node == nil {
		return nil, fmt.Errorf("%w: null type descriptor", ErrMalformed)
	}
	return DecodeType(*node, loader)
}
