// Package path implements the canonical, mangled identifiers that name
// classes and methods: ClassPath and MethodPath. A method's full path
// string doubles as its native symbol name, so registration-by-name and
// lookup-by-name are guaranteed to agree.
package path

import (
	"strings"

	"github.com/raymyers/tinysharp-go/pkg/sig"
)

const identSplit = "*"

// ClassPath is the canonical identifier of a class: assembly*namespace*class.
type ClassPath struct {
	identifier   string
	assemblyEnd  int
	namespaceEnd int
}

// NewClassPath builds a ClassPath from its three components.
func NewClassPath(assembly, namespace, class string) ClassPath {
	assemblyEnd := len(assembly)
	namespaceEnd := assemblyEnd + len(identSplit) + len(namespace)
	ident := strings.Join([]string{assembly, namespace, class}, identSplit)
	return ClassPath{identifier: ident, assemblyEnd: assemblyEnd, namespaceEnd: namespaceEnd}
}

func (c ClassPath) AssemblyName() string { return c.identifier[:c.assemblyEnd] }
func (c ClassPath) Namespace() string {
	return c.identifier[c.assemblyEnd+len(identSplit) : c.namespaceEnd]
}
func (c ClassPath) ClassName() string { return c.identifier[c.namespaceEnd+len(identSplit):] }
func (c ClassPath) Ident() string     { return c.identifier }
func (c ClassPath) String() string    { return c.identifier }

// MethodPath is the canonical, mangled identifier of a method:
// assembly*namespace*class*method*signature-mangle. Equality and hashing
// (via the comparable identifier string) are by the full string.
type MethodPath struct {
	identifier   string
	assemblyEnd  int
	namespaceEnd int
	classEnd     int
	methodEnd    int
}

// NewMethodPath builds a MethodPath. The signature mangle is folded into
// the identifier so that two methods with identical path components but
// differing signatures occupy distinct native symbols.
func NewMethodPath(assembly, namespace, class, method string, signature sig.Signature) MethodPath {
	assemblyEnd := len(assembly)
	namespaceEnd := assemblyEnd + len(identSplit) + len(namespace)
	classEnd := namespaceEnd + len(identSplit) + len(class)
	methodEnd := classEnd + len(identSplit) + len(method)
	ident := strings.Join([]string{assembly, namespace, class, method, signature.Mangle()}, identSplit)
	return MethodPath{
		identifier:   ident,
		assemblyEnd:  assemblyEnd,
		namespaceEnd: namespaceEnd,
		classEnd:     classEnd,
		methodEnd:    methodEnd,
	}
}

func (m MethodPath) AssemblyName() string { return m.identifier[:m.assemblyEnd] }
func (m MethodPath) Namespace() string {
	return m.identifier[m.assemblyEnd+len(identSplit) : m.namespaceEnd]
}
func (m MethodPath) ClassName() string {
	return m.identifier[m.namespaceEnd+len(identSplit) : m.classEnd]
}
func (m MethodPath) MethodName() string {
	return m.identifier[m.classEnd+len(identSplit) : m.methodEnd]
}
func (m MethodPath) SigMangle() string { return m.identifier[m.methodEnd+len(identSplit):] }

// Ident returns the full path string, which is also the method's native
// symbol name.
func (m MethodPath) Ident() string  { return m.identifier }
func (m MethodPath) String() string { return m.identifier }

// Equal reports identifier equality. MethodPath is safe to use as a Go
// map key directly (it is a comparable struct of one string and four
// ints), but Equal is provided for readability at call sites that compare
// two paths without caring about the cached offsets.
func (m MethodPath) Equal(o MethodPath) bool {
	return m.identifier == o.identifier
}
