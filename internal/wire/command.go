package wire

import (
	"bytes"
	"io"
)

// Command is one of the closed set of wire command names. On the wire it is
// a 12-byte NUL-padded ASCII field; in Go it is just the trimmed string.
type Command string

const (
	CmdVersion    Command = "version"
	CmdVerack     Command = "verack"
	CmdPing       Command = "ping"
	CmdPong       Command = "pong"
	CmdAddr       Command = "addr"
	CmdGetAddr    Command = "getaddr"
	CmdReject     Command = "reject"
	CmdGetHeaders Command = "getheaders"
	CmdGetBlocks  Command = "getblocks"
	CmdInv        Command = "inv"
	CmdGetData    Command = "getdata"
	CmdNotFound   Command = "notfound"
	CmdTx         Command = "tx"
	CmdBlock      Command = "block"
	CmdHeaders    Command = "headers"
	CmdFilterLoad Command = "filterload"
)

var knownCommands = map[Command]struct{}{
	CmdVersion: {}, CmdVerack: {}, CmdPing: {}, CmdPong: {},
	CmdAddr: {}, CmdGetAddr: {}, CmdReject: {}, CmdGetHeaders: {},
	CmdGetBlocks: {}, CmdInv: {}, CmdGetData: {}, CmdNotFound: {},
	CmdTx: {}, CmdBlock: {}, CmdHeaders: {}, CmdFilterLoad: {},
}

// encodeCommand produces the 12-byte NUL-padded wire form.
func encodeCommand(cmd Command) [12]byte {
	var out [12]byte
	copy(out[:], cmd)
	return out
}

// decodeCommand trims the NUL padding and rejects anything outside the
// closed command set.
func decodeCommand(raw [12]byte) (Command, error) {
	cmd := Command(bytes.Trim(raw[:], "\x00"))
	if _, ok := knownCommands[cmd]; !ok {
		return "", newDecodeError(ErrUnknownCommand, "unrecognized command %q", cmd)
	}
	return cmd, nil
}

func writeCommand(buf *bytes.Buffer, cmd Command) {
	raw := encodeCommand(cmd)
	buf.Write(raw[:])
}

func readCommand(r io.Reader) (Command, error) {
	var raw [12]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return "", newDecodeError(ErrShortRead, "reading command: %v", err)
	}
	return decodeCommand(raw)
}
