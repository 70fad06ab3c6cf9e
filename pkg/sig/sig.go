// Package sig defines method signatures: an ordered argument-type list
// plus a return type, and the mangle string that makes overloaded methods
// occupy distinct native symbols.
package sig

import (
	"strings"

	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

const mangleSep = "/"

// Signature is identity-by-component-equality: two signatures with the
// same Args (in order) and Ret are the same signature.
type Signature struct {
	Args []tstype.Type
	Ret  tstype.Type
}

// New builds a Signature from an argument list and a return type.
func New(args []tstype.Type, ret tstype.Type) Signature {
	cp := make([]tstype.Type, len(args))
	copy(cp, args)
	return Signature{Args: cp, Ret: ret}
}

// Equal reports whether two signatures have identical argument lists and
// return types.
func (s Signature) Equal(o Signature) bool {
	if s.Ret != o.Ret || len(s.Args) != len(o.Args) {
		return false
	}
	for i, a := range s.Args {
		if a != o.Args[i] {
			return false
		}
	}
	return true
}

// Mangle concatenates each argument's mangle token with mangleSep and
// appends the return mangle, e.g. "i32/i32/i32". This string participates
// in the method's mangled symbol (pkg/path), so signature mangling must
// be injective over the signatures actually in use: two signatures with
// the same mangle must be structurally equal, which holds here because
// Type.Mangle is itself injective over tstype.Type and mangleSep never
// appears inside a mangle token.
func (s Signature) Mangle() string {
	parts := make([]string, 0, len(s.Args)+1)
	for _, a := range s.Args {
		parts = append(parts, a.Mangle())
	}
	parts = append(parts, s.Ret.Mangle())
	return strings.Join(parts, mangleSep)
}

func (s Signature) String() string {
	return s.Mangle()
}
