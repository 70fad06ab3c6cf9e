package asmtext

import (
	"fmt"
	"strconv"

	"github.com/raymyers/tinysharp-go/pkg/ops"
)

// ParseOps reads a method body written as one mnemonic per line (an
// optional integer operand following on the same token stream) and
// returns the equivalent []ops.OpKind. Branch operands are absolute
// instruction indices, not labels — the demo format has no symbolic
// label resolution; assembly/class-file parsing is out of scope, so this
// is a minimal stand-in for hand-authored test fixtures, not a general
// assembler.
func ParseOps(body string) ([]ops.OpKind, error) {
	l := New(body)
	var kinds []ops.OpKind
	for {
		tok := l.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type != TokenIdent {
			return nil, &IllegalTokenError{Tok: tok}
		}
		kind, needsOperand := mnemonicKind(tok.Literal)
		if kind == nil && !needsOperand {
			return nil, fmt.Errorf("asmtext: unknown mnemonic %q at line %d", tok.Literal, tok.Line)
		}
		if needsOperand {
			operand := l.NextToken()
			if operand.Type != TokenInt {
				return nil, fmt.Errorf("asmtext: %q expects an integer operand at line %d", tok.Literal, tok.Line)
			}
			n, err := strconv.Atoi(operand.Literal)
			if err != nil {
				return nil, fmt.Errorf("asmtext: invalid integer operand %q at line %d", operand.Literal, operand.Line)
			}
			kind = mnemonicWithOperand(tok.Literal, n)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// mnemonicKind returns the OpKind for a zero-operand mnemonic, or
// (nil, true) if name instead takes an integer operand (resolved by
// mnemonicWithOperand).
func mnemonicKind(name string) (ops.OpKind, bool) {
	switch name {
	case "add":
		return ops.Add{}, false
	case "sub":
		return ops.Sub{}, false
	case "mul":
		return ops.Mul{}, false
	case "div":
		return ops.Div{}, false
	case "rem":
		return ops.Rem{}, false
	case "and":
		return ops.And{}, false
	case "or":
		return ops.Or{}, false
	case "xor":
		return ops.XOr{}, false
	case "shl":
		return ops.Shl{}, false
	case "shr":
		return ops.Shr{}, false
	case "neg":
		return ops.Neg{}, false
	case "not":
		return ops.Not{}, false
	case "dup":
		return ops.Dup{}, false
	case "pop":
		return ops.Pop{}, false
	case "ldnull":
		return ops.LdNull{}, false
	case "ret":
		return ops.Ret{}, false
	case "nop":
		return ops.Nop{}, false
	case "conv_i8":
		return ops.ConvI8{}, false
	case "conv_u8":
		return ops.ConvU8{}, false
	case "conv_i16":
		return ops.ConvI16{}, false
	case "conv_u16":
		return ops.ConvU16{}, false
	case "conv_i32":
		return ops.ConvI32{}, false
	case "conv_u32":
		return ops.ConvU32{}, false
	case "conv_i64":
		return ops.ConvI64{}, false
	case "conv_u64":
		return ops.ConvU64{}, false
	case "ldarg", "ldloc", "stloc", "ldc_i32", "br", "bge", "ble", "blt", "bgt", "beq", "bne":
		return nil, true
	default:
		return nil, false
	}
}

func mnemonicWithOperand(name string, n int) ops.OpKind {
	switch name {
	case "ldarg":
		return ops.LdArg{Index: n}
	case "ldloc":
		return ops.LdLoc{Index: n}
	case "stloc":
		return ops.StLoc{Index: n}
	case "ldc_i32":
		return ops.LdcI32{Value: int32(n)}
	case "br":
		return ops.Br{Target: ops.InstructionIndex(n)}
	case "bge":
		return ops.BGE{Target: ops.InstructionIndex(n)}
	case "ble":
		return ops.BLE{Target: ops.InstructionIndex(n)}
	case "blt":
		return ops.BLT{Target: ops.InstructionIndex(n)}
	case "bgt":
		return ops.BGT{Target: ops.InstructionIndex(n)}
	case "beq":
		return ops.BEQ{Target: ops.InstructionIndex(n)}
	case "bne":
		return ops.BNE{Target: ops.InstructionIndex(n)}
	default:
		return nil
	}
}
