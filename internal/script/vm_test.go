package script

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
)

func pushData(data []byte) []byte {
	if len(data) > 0x4b {
		panic("pushData test helper only supports short pushes")
	}
	return append([]byte{byte(len(data))}, data...)
}

// Scenario 1: OP_DUP OP_HASH160 PUSH<h> OP_EQUALVERIFY, with a matching hash,
// halts valid.
func TestScriptDupHash160EqualVerifyMatch(t *testing.T) {
	pubkey := []byte("a fake compressed pubkey.......")
	h := btcutil.Hash160(pubkey)

	raw := []byte{byte(OpDup), byte(OpHash160)}
	raw = append(raw, pushData(h)...)
	raw = append(raw, byte(OpEqualVerify))

	program, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx := NewContext(program)
	ctx.Stack = [][]byte{pubkey}

	if got := ctx.Run(); got != HaltedValid {
		t.Fatalf("Run() = %v, want HaltedValid", got)
	}
	if len(ctx.Stack) != 1 || !bytes.Equal(ctx.Stack[0], pubkey) {
		t.Fatalf("final stack = %v, want [pubkey]", ctx.Stack)
	}
}

// Scenario 2: same program, mismatching hash, halts invalid.
func TestScriptDupHash160EqualVerifyMismatch(t *testing.T) {
	pubkey := []byte("a fake compressed pubkey.......")
	wrongHash := make([]byte, 20) // all zero, won't match a real Hash160

	raw := []byte{byte(OpDup), byte(OpHash160)}
	raw = append(raw, pushData(wrongHash)...)
	raw = append(raw, byte(OpEqualVerify))

	program, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx := NewContext(program)
	ctx.Stack = [][]byte{pubkey}

	if got := ctx.Run(); got != HaltedInvalid {
		t.Fatalf("Run() = %v, want HaltedInvalid", got)
	}
}

// Scenario 3: PUSH{0x01} IF OP_1 ELSE OP_2 ENDIF with a truthy condition
// takes the true branch.
func TestScriptIfTrueBranch(t *testing.T) {
	raw := []byte{}
	raw = append(raw, pushData([]byte{0x01})...)
	raw = append(raw, byte(OpIf), byte(Op1), byte(OpElse), byte(Op2), byte(OpEndIf))

	program, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx := NewContext(program)
	if got := ctx.Run(); got != HaltedValid {
		t.Fatalf("Run() = %v, want HaltedValid", got)
	}
	top := ctx.Stack[len(ctx.Stack)-1]
	if !bytes.Equal(top, []byte{0x7f}) {
		t.Fatalf("top = % x, want 7f", top)
	}
}

// Scenario 4: PUSH{} IF OP_1 ELSE OP_2 ENDIF with a falsy (empty) condition
// takes the else branch.
func TestScriptIfFalseBranch(t *testing.T) {
	raw := []byte{}
	raw = append(raw, pushData([]byte{})...)
	raw = append(raw, byte(OpIf), byte(Op1), byte(OpElse), byte(Op2), byte(OpEndIf))

	program, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx := NewContext(program)
	if got := ctx.Run(); got != HaltedValid {
		t.Fatalf("Run() = %v, want HaltedValid", got)
	}
	top := ctx.Stack[len(ctx.Stack)-1]
	if !bytes.Equal(top, []byte{0x7e}) {
		t.Fatalf("top = % x, want 7e", top)
	}
}

// Scenario 5: OP_RETURN always halts invalid, regardless of stack contents.
func TestScriptReturnAlwaysInvalid(t *testing.T) {
	raw := []byte{byte(OpReturn)}

	program, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx := NewContext(program)
	ctx.Stack = [][]byte{{0x01}, {0x02}}

	if got := ctx.Run(); got != HaltedInvalid {
		t.Fatalf("Run() = %v, want HaltedInvalid", got)
	}
}

func TestScriptUnknownOpcodeIsParseError(t *testing.T) {
	raw := []byte{0xfc} // not in the implemented opcode set
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected parse error for unknown opcode")
	}
}

func TestScriptEmptyStackDupIsProgramError(t *testing.T) {
	raw := []byte{byte(OpDup)}
	program, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := NewContext(program)
	if got := ctx.Run(); got != HaltedInvalid {
		t.Fatalf("Run() = %v, want HaltedInvalid on empty-stack DUP", got)
	}
}
