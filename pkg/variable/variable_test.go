package variable

import (
	"testing"

	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		ty   tstype.Type
		want Kind
	}{
		{tstype.I32, Int},
		{tstype.I64, Int},
		{tstype.Char, Int},
		{tstype.Bool, Int},
		{tstype.U8, UInt},
		{tstype.U32, UInt},
		{tstype.F32, Float},
		{tstype.F64, Float},
		{tstype.IPtr, Pointer},
		{tstype.UPtr, Pointer},
		{tstype.ObjRef, Pointer},
	}
	for _, c := range cases {
		got, err := KindOf(c.ty)
		if err != nil {
			t.Fatalf("KindOf(%s): %v", c.ty, err)
		}
		if got != c.want {
			t.Errorf("KindOf(%s) = %v, want %v", c.ty, got, c.want)
		}
	}
}

func TestIsInt(t *testing.T) {
	if !(Variable{Kind: Int}).IsInt() {
		t.Error("Int kind should report IsInt")
	}
	if !(Variable{Kind: UInt}).IsInt() {
		t.Error("UInt kind should report IsInt")
	}
	if (Variable{Kind: Float}).IsInt() {
		t.Error("Float kind should not report IsInt")
	}
	if (Variable{Kind: Pointer}).IsInt() {
		t.Error("Pointer kind should not report IsInt")
	}
}

func TestWithValuePreservesKind(t *testing.T) {
	v := Variable{Kind: UInt}
	v2 := v.WithValue(v.Value)
	if v2.Kind != UInt {
		t.Errorf("WithValue changed Kind to %v", v2.Kind)
	}
}
