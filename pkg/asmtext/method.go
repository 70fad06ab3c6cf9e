package asmtext

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

// methodDoc is the on-disk YAML shape of one method description (CORE
// SPEC §1 supplement: a demo text+YAML loader standing in for the
// out-of-scope assembly/class-file format).
type methodDoc struct {
	Assembly  string   `yaml:"assembly"`
	Namespace string   `yaml:"namespace"`
	Class     string   `yaml:"class"`
	Method    string   `yaml:"method"`
	Args      []string `yaml:"args"`
	Ret       string   `yaml:"ret"`
	Locals    []string `yaml:"locals"`
	Body      string   `yaml:"body"`
}

// Method is one parsed method description, ready to be handed to
// pkg/runtime.Runtime.AddMethod.
type Method struct {
	Path      path.MethodPath
	Signature sig.Signature
	Locals    []tstype.Type
	Ops       []ops.OpKind
}

// Load reads a YAML list of method descriptions from r and parses each
// one's signature, locals, and mnemonic body.
func Load(r io.Reader) ([]Method, error) {
	var docs []methodDoc
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&docs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("asmtext: decoding method list: %w", err)
	}

	methods := make([]Method, 0, len(docs))
	for _, d := range docs {
		m, err := parseMethodDoc(d)
		if err != nil {
			return nil, fmt.Errorf("asmtext: method %q: %w", d.Method, err)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func parseMethodDoc(d methodDoc) (Method, error) {
	args := make([]tstype.Type, len(d.Args))
	for i, a := range d.Args {
		t, err := parseTypeName(a)
		if err != nil {
			return Method{}, err
		}
		args[i] = t
	}
	ret, err := parseTypeName(d.Ret)
	if err != nil {
		return Method{}, err
	}
	locals := make([]tstype.Type, len(d.Locals))
	for i, l := range d.Locals {
		t, err := parseTypeName(l)
		if err != nil {
			return Method{}, err
		}
		locals[i] = t
	}
	signature := sig.New(args, ret)
	kinds, err := ParseOps(d.Body)
	if err != nil {
		return Method{}, err
	}
	return Method{
		Path:      path.NewMethodPath(d.Assembly, d.Namespace, d.Class, d.Method, signature),
		Signature: signature,
		Locals:    locals,
		Ops:       kinds,
	}, nil
}

func parseTypeName(name string) (tstype.Type, error) {
	switch name {
	case "i8":
		return tstype.I8, nil
	case "i16":
		return tstype.I16, nil
	case "i32":
		return tstype.I32, nil
	case "i64":
		return tstype.I64, nil
	case "u8":
		return tstype.U8, nil
	case "u16":
		return tstype.U16, nil
	case "u32":
		return tstype.U32, nil
	case "u64":
		return tstype.U64, nil
	case "f32":
		return tstype.F32, nil
	case "f64":
		return tstype.F64, nil
	case "char":
		return tstype.Char, nil
	case "bool":
		return tstype.Bool, nil
	case "iptr":
		return tstype.IPtr, nil
	case "uptr":
		return tstype.UPtr, nil
	case "objref":
		return tstype.ObjRef, nil
	case "void", "":
		return tstype.Void, nil
	default:
		return 0, fmt.Errorf("unknown type name %q", name)
	}
}
