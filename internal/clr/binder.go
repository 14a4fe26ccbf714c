package clr

import "fmt"

// Loader loads code units by their short assembly name.
type Loader interface {
	LoadByName(name string) (*CodeUnit, error)
}

// Binder resolves references that cross code-unit boundaries while signatures are decoded.
type Binder interface {
	Loader
	// CoreLibrary names the unit that defines the primitive types (System.Int32, System.String, ...).
	CoreLibrary() string
}

const maxForwarderHops = 8

// FindType looks fullName up in unit and follows type forwarders into other units.
func FindType(loader Loader, unit *CodeUnit, fullName string) (*TypeDef, error) {
	for hop := 0; hop < maxForwarderHops; hop++ {
		if def, found := unit.TypeByName(fullName); found {
			return def, nil
		}

		target, forwarded := unit.Forwarded(fullName)
		if !forwarded {
			return nil, fmt.Errorf("%w: %s in %s", ErrTypeNotFound, fullName, unit.Name())
		}
		next, err := loader.LoadByName(target)
		if err != nil {
			return nil, fmt.Errorf("%s is forwarded from %s to %s: %w", fullName, unit.Name(), target, err)
		}
		unit = next
	}

	return nil, fmt.Errorf("%w: %s", ErrForwarderLoop, fullName)
}

// CoreType resolves a primitive type such as System.Int32 in the binder's core library.
func CoreType(binder Binder, fullName string) (*Type, error) {
	unit, err := binder.LoadByName(binder.CoreLibrary())
	if err != nil {
		return nil, fmt.Errorf("core library %s: %w", binder.CoreLibrary(), err)
	}
	def, err := FindType(binder, unit, fullName)
	if err != nil {
		return nil, err
	}
	return def.Type(), nil
}
