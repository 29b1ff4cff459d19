// Package script implements the Script VM: a stack-based evaluator of
// transaction scripts with IF/NOTIF/ELSE/ENDIF control flow.
package script

// Opcode bytes follow the standard Bitcoin script encoding so raw
// scriptSig/scriptPubKey bytes parse unchanged; what differs from standard
// Bitcoin is the VALUE pushed onto the stack for OP_1..OP_16 (see pushValue
// below), not the opcode byte that selects them.
type Opcode byte

const (
	OpFalse Opcode = 0x00 // OP_0 / OP_FALSE: push empty

	Op1Negate Opcode = 0x4f

	Op1  Opcode = 0x51
	Op2  Opcode = 0x52
	Op3  Opcode = 0x53
	Op4  Opcode = 0x54
	Op5  Opcode = 0x55
	Op6  Opcode = 0x56
	Op7  Opcode = 0x57
	Op8  Opcode = 0x58
	Op9  Opcode = 0x59
	Op10 Opcode = 0x5a
	Op11 Opcode = 0x5b
	Op12 Opcode = 0x5c
	Op13 Opcode = 0x5d
	Op14 Opcode = 0x5e
	Op15 Opcode = 0x5f
	Op16 Opcode = 0x60

	OpNop Opcode = 0x61

	OpIf    Opcode = 0x63
	OpNotIf Opcode = 0x64
	OpElse  Opcode = 0x67
	OpEndIf Opcode = 0x68

	OpVerify Opcode = 0x69
	OpReturn Opcode = 0x6a

	OpIfDup Opcode = 0x73
	OpDup   Opcode = 0x76

	OpEqualVerify Opcode = 0x88

	OpHash160 Opcode = 0xa9
	OpHash256 Opcode = 0xaa

	// OpPushData1/2/4 carry a length prefix of 1/2/4 bytes before the data.
	// Lengths 0x01..0x4b push that many literal bytes directly (the opcode
	// byte itself is the length, handled in Parse rather than named here).
	OpPushData1 Opcode = 0x4c
	OpPushData2 Opcode = 0x4d
	OpPushData4 Opcode = 0x4e
)

// pushValue returns the stack payload for OP_1..OP_16: {0x7f}..{0x70}, not
// the standard {0x01}..{0x10}. Preserve this mapping exactly; do not
// "correct" it to match reference Bitcoin behavior.
func pushValue(op Opcode) []byte {
	return []byte{byte(0xD0 - byte(op))}
}

// IsSmallNum reports whether op is one of OP_1..OP_16.
func IsSmallNum(op Opcode) bool {
	return op >= Op1 && op <= Op16
}

// isTruthy implements the stack's truthiness rule: empty or the single byte
// 0x80 is false, anything else is true.
func isTruthy(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if len(b) == 1 && b[0] == 0x80 {
		return false
	}
	return true
}
