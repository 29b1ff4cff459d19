package script

import (
	"encoding/binary"
	"fmt"
)

// ifFrame tracks one open IF/NOTIF block while parsing.
type ifFrame struct {
	ifIndex   int
	elseIndex int // -1 until an OpElse is seen
}

// Parse builds a flat instruction vector from raw opcode bytes, resolving
// IF/NOTIF/ELSE/ENDIF into precomputed jump targets. Unknown opcodes are a
// parse-time failure; truncated push data likewise.
func Parse(raw []byte) ([]Element, error) {
	var elements []Element
	var frames []ifFrame

	i := 0
	for i < len(raw) {
		op := Opcode(raw[i])
		offset := i

		switch {
		case op == OpFalse:
			elements = append(elements, Element{Op: op, Data: nil, Offset: offset})
			i++

		case op == Op1Negate:
			elements = append(elements, Element{Op: op, Data: []byte{0x81}, Offset: offset})
			i++

		case IsSmallNum(op):
			elements = append(elements, Element{Op: op, Data: pushValue(op), Offset: offset})
			i++

		case op >= 0x01 && op <= 0x4b:
			n := int(op)
			if i+1+n > len(raw) {
				return nil, fmt.Errorf("script: truncated push at offset %d: need %d bytes", offset, n)
			}
			data := append([]byte(nil), raw[i+1:i+1+n]...)
			elements = append(elements, Element{Op: op, Data: data, Offset: offset})
			i += 1 + n

		case op == OpPushData1:
			if i+2 > len(raw) {
				return nil, fmt.Errorf("script: truncated OP_PUSHDATA1 length at offset %d", offset)
			}
			n := int(raw[i+1])
			if i+2+n > len(raw) {
				return nil, fmt.Errorf("script: truncated OP_PUSHDATA1 data at offset %d", offset)
			}
			data := append([]byte(nil), raw[i+2:i+2+n]...)
			elements = append(elements, Element{Op: op, Data: data, Offset: offset})
			i += 2 + n

		case op == OpPushData2:
			if i+3 > len(raw) {
				return nil, fmt.Errorf("script: truncated OP_PUSHDATA2 length at offset %d", offset)
			}
			n := int(binary.LittleEndian.Uint16(raw[i+1 : i+3]))
			if i+3+n > len(raw) {
				return nil, fmt.Errorf("script: truncated OP_PUSHDATA2 data at offset %d", offset)
			}
			data := append([]byte(nil), raw[i+3:i+3+n]...)
			elements = append(elements, Element{Op: op, Data: data, Offset: offset})
			i += 3 + n

		case op == OpPushData4:
			if i+5 > len(raw) {
				return nil, fmt.Errorf("script: truncated OP_PUSHDATA4 length at offset %d", offset)
			}
			n := int(binary.LittleEndian.Uint32(raw[i+1 : i+5]))
			if i+5+n > len(raw) {
				return nil, fmt.Errorf("script: truncated OP_PUSHDATA4 data at offset %d", offset)
			}
			data := append([]byte(nil), raw[i+5:i+5+n]...)
			elements = append(elements, Element{Op: op, Data: data, Offset: offset})
			i += 5 + n

		case op == OpIf || op == OpNotIf:
			frames = append(frames, ifFrame{ifIndex: len(elements), elseIndex: -1})
			elements = append(elements, Element{Op: op, Offset: offset})
			i++

		case op == OpElse:
			if len(frames) == 0 {
				return nil, fmt.Errorf("script: OP_ELSE without matching OP_IF at offset %d", offset)
			}
			frames[len(frames)-1].elseIndex = len(elements)
			elements = append(elements, Element{Op: op, Offset: offset})
			i++

		case op == OpEndIf:
			if len(frames) == 0 {
				return nil, fmt.Errorf("script: OP_ENDIF without matching OP_IF at offset %d", offset)
			}
			frame := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			endifIndex := len(elements)
			elements = append(elements, Element{Op: op, Offset: offset})

			ifElem := &elements[frame.ifIndex]
			if frame.elseIndex >= 0 {
				ifElem.next = frame.ifIndex + 1
				ifElem.nextElse = frame.elseIndex + 1
				elements[frame.elseIndex].elseJump = endifIndex + 1
			} else {
				ifElem.next = frame.ifIndex + 1
				ifElem.nextElse = endifIndex
			}
			i++

		case op == OpNop || op == OpVerify || op == OpReturn || op == OpIfDup ||
			op == OpDup || op == OpEqualVerify || op == OpHash160 || op == OpHash256:
			elements = append(elements, Element{Op: op, Offset: offset})
			i++

		default:
			return nil, fmt.Errorf("script: unknown opcode 0x%02x at offset %d", byte(op), offset)
		}
	}

	if len(frames) > 0 {
		return nil, fmt.Errorf("script: unterminated OP_IF/OP_NOTIF block")
	}

	return elements, nil
}
