package metadata

import (
	"jitmanifest/internal/clr"
)

// Type is the inspection view of a TypeDef row.
type Type struct {
	Token   string   `json:"token" yaml:"token"`
	Name    string   `json:"name" yaml:"name"`
	Arity   int      `json:"arity,omitempty" yaml:"arity,omitempty"`
	Methods []Method `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Method is the inspection view of a MethodDef row. Signature is empty and Error set
// when the signature could not be decoded.
type Method struct {
	Token         string `json:"token" yaml:"token"`
	Name          string `json:"name" yaml:"name"`
	Signature     string `json:"signature,omitempty" yaml:"signature,omitempty"`
	Arity         int    `json:"arity,omitempty" yaml:"arity,omitempty"`
	IsStatic      bool   `json:"static,omitempty" yaml:"static,omitempty"`
	IsConstructor bool   `json:"constructor,omitempty" yaml:"constructor,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Describe lists the types of a unit in table order, decoding every method signature.
func Describe(unit *clr.CodeUnit) []Type {
	types := make([]Type, 0, len(unit.Types()))
	for _, def := range unit.Types() {
		t := Type{
			Token: def.Token().String(),
			Name:  def.FullName(),
			Arity: def.Arity(),
		}
		for _, methodDef := range def.Methods() {
			t.Methods = append(t.Methods, describeMethod(methodDef))
		}
		types = append(types, t)
	}
	return types
}

func describeMethod(def *clr.MethodDef) Method {
	method := Method{
		Token:         def.Token().String(),
		Name:          def.Name(),
		Arity:         def.Arity(),
		IsStatic:      def.IsStatic(),
		IsConstructor: def.IsConstructor(),
	}

	sig, err := def.Signature()
	if err != nil {
		method.Error = err.Error()
		return method
	}
	method.Signature = clr.MethodOf(def).String()
	if sig.Return != nil {
		method.Signature = sig.Return.FullName() + " " + method.Signature
	}
	return method
}
