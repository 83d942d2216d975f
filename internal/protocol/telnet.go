package protocol

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

// Telnet command codes (RFC 854, spec.md §6).
const (
	cmdSE   byte = 240
	cmdNOP  byte = 241
	cmdDM   byte = 242
	cmdBRK  byte = 243
	cmdIP   byte = 244
	cmdAO   byte = 245
	cmdAYT  byte = 246
	cmdEC   byte = 247
	cmdEL   byte = 248
	cmdGA   byte = 249
	cmdSB   byte = 250
	cmdWILL byte = 251
	cmdWONT byte = 252
	cmdDOv  byte = 253
	cmdDONT byte = 254
	cmdIAC  byte = 255
)

// Telnet option codes used by this gateway (spec.md §6).
const (
	optBinary byte = 0
	optEcho   byte = 1
	optSGA    byte = 3
	optTTYPE  byte = 24
	optNAWS   byte = 31
	optMSDP   byte = 69
	optMCCP2  byte = 86
	optMCCP3  byte = 87
	optGMCP   byte = 201
)

type telnetParseState int

const (
	tsData telnetParseState = iota
	tsIAC
	tsCommand // saw IAC WILL/WONT/DO/DONT, awaiting option byte
	tsSub     // inside IAC SB ... collecting subnegotiation data
	tsSubIAC  // saw IAC while inside subnegotiation
)

// TelnetAdapter implements Adapter over a raw TCP connection with RFC 854
// IAC option negotiation. Grounded in the constant layout of
// original_source/gateway/src/telnet/protocol.rs; the original's adapter
// itself was never finished ("TEMPORARILY DISABLED: Waiting for termionix
// library"), so the negotiation loop below is this repo's own.
type TelnetAdapter struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	idle   time.Duration

	mu    sync.Mutex
	caps  ClientCapabilities
	alive bool
	mode  InputMode

	curState   telnetParseState
	pendingCmd byte // last IAC command awaiting its option byte
	subOpt     byte
	subBuf     []byte
}

// NewTelnetAdapter wraps conn and immediately offers the option set the
// Gateway supports; the client's replies arrive through ordinary Receive
// calls and update Capabilities as they're parsed. idleTimeout bounds how
// long Receive waits for input (§5, default 60s at the caller); zero
// disables the deadline.
func NewTelnetAdapter(conn net.Conn, idleTimeout time.Duration) *TelnetAdapter {
	t := &TelnetAdapter{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 4096),
		writer: bufio.NewWriterSize(conn, 4096),
		idle:   idleTimeout,
		alive:  true,
	}
	t.offer(cmdDOv, optTTYPE)
	// NAWS opens server-side as IAC WILL NAWS (FF FB 1F); clients answer
	// DO and then volunteer the subnegotiation.
	t.offer(cmdWILL, optNAWS)
	t.offer(cmdWILL, optSGA)
	t.offer(cmdDOv, optMSDP)
	t.offer(cmdWILL, optGMCP)
	t.writer.Flush()
	return t
}

func (t *TelnetAdapter) ProtocolName() string { return "telnet" }

func (t *TelnetAdapter) offer(cmd, opt byte) {
	t.writer.Write([]byte{cmdIAC, cmd, opt})
}

func (t *TelnetAdapter) Capabilities() ClientCapabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

func (t *TelnetAdapter) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

func (t *TelnetAdapter) markDead() {
	t.mu.Lock()
	t.alive = false
	t.mu.Unlock()
}

func (t *TelnetAdapter) Close() error {
	t.markDead()
	return t.conn.Close()
}

// SetInputMode switches between line-buffered input and the keystroke mode
// the in-band editor uses, announcing the switch to the peer (§4.1). In
// keystroke mode, Ctrl+S and Escape arrive as save/cancel sentinels instead
// of line data.
func (t *TelnetAdapter) SetInputMode(mode InputMode, title string) {
	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()
	if mode == InputKeystroke {
		_ = t.sendLine("[editing " + title + ": Ctrl+S saves, Esc cancels]")
	} else {
		_ = t.sendLine("[line input restored]")
	}
}

// SendOutput renders the GameOutput as plain text unless the client
// negotiated a structured side-channel, in which case structured payloads
// go out as a GMCP or MSDP subnegotiation (§9: GMCP preferred over MSDP
// when both are available; MSDP used when only it was negotiated).
func (t *TelnetAdapter) SendOutput(ctx context.Context, out model.GameOutput) error {
	t.mu.Lock()
	gmcp := t.caps.GMCP
	msdp := t.caps.MSDP
	t.mu.Unlock()

	if out.Kind == model.OutputStructured {
		switch {
		case gmcp:
			return t.sendGMCP(out.StructuredType, out.StructuredData)
		case msdp:
			return t.sendMSDP(out.StructuredType, out.StructuredData)
		}
	}
	return t.sendLine(out.PlainText())
}

func (t *TelnetAdapter) sendLine(s string) error {
	if _, err := t.writer.WriteString(s); err != nil {
		t.markDead()
		return fmt.Errorf("telnet send: %w", wyerr.Io)
	}
	if _, err := t.writer.WriteString("\r\n"); err != nil {
		t.markDead()
		return fmt.Errorf("telnet send: %w", wyerr.Io)
	}
	if err := t.writer.Flush(); err != nil {
		t.markDead()
		return fmt.Errorf("telnet flush: %w", wyerr.Io)
	}
	return nil
}

func (t *TelnetAdapter) sendGMCP(msgType string, data model.Value) error {
	payload := msgType + " " + valueToGMCPJSON(data)
	body := []byte(payload)

	buf := make([]byte, 0, len(body)+8)
	buf = append(buf, cmdIAC, cmdSB, optGMCP)
	for _, b := range body {
		buf = append(buf, b)
		if b == cmdIAC {
			buf = append(buf, cmdIAC)
		}
	}
	buf = append(buf, cmdIAC, cmdSE)

	if _, err := t.writer.Write(buf); err != nil {
		t.markDead()
		return fmt.Errorf("telnet send gmcp: %w", wyerr.Io)
	}
	return t.writer.Flush()
}

// MSDP TLV markers (spec.md §6, the Aardwolf-derived MSDP convention).
const (
	msdpVar        byte = 1
	msdpVal        byte = 2
	msdpTableOpen  byte = 3
	msdpTableClose byte = 4
	msdpArrayOpen  byte = 5
	msdpArrayClose byte = 6
)

// encodeMSDPValue renders a model.Value in MSDP's TLV shape: a string is
// its own bytes, a TableValue is VAR/VAL pairs between TABLE_OPEN/CLOSE, an
// ArrayValue is VAL-prefixed elements between ARRAY_OPEN/CLOSE.
func encodeMSDPValue(v model.Value) []byte {
	switch val := v.(type) {
	case model.StringValue:
		return []byte(val)
	case model.TableValue:
		buf := []byte{msdpTableOpen}
		for k, child := range val {
			buf = append(buf, msdpVar)
			buf = append(buf, []byte(k)...)
			buf = append(buf, msdpVal)
			buf = append(buf, encodeMSDPValue(child)...)
		}
		return append(buf, msdpTableClose)
	case model.ArrayValue:
		buf := []byte{msdpArrayOpen}
		for _, child := range val {
			buf = append(buf, msdpVal)
			buf = append(buf, encodeMSDPValue(child)...)
		}
		return append(buf, msdpArrayClose)
	default:
		return nil
	}
}

func (t *TelnetAdapter) sendMSDP(msgType string, data model.Value) error {
	body := []byte{msdpVar}
	body = append(body, []byte(msgType)...)
	body = append(body, msdpVal)
	body = append(body, encodeMSDPValue(data)...)

	buf := make([]byte, 0, len(body)+8)
	buf = append(buf, cmdIAC, cmdSB, optMSDP)
	for _, b := range body {
		buf = append(buf, b)
		if b == cmdIAC {
			buf = append(buf, cmdIAC)
		}
	}
	buf = append(buf, cmdIAC, cmdSE)

	if _, err := t.writer.Write(buf); err != nil {
		t.markDead()
		return fmt.Errorf("telnet send msdp: %w", wyerr.Io)
	}
	return t.writer.Flush()
}

func valueToGMCPJSON(v model.Value) string {
	b, err := jsonMarshalValue(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Receive reads and processes bytes until it has a full line of input or a
// subnegotiation completes, driving the IAC state machine across calls.
func (t *TelnetAdapter) Receive(ctx context.Context) (ProtocolMessage, error) {
	if t.idle > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.idle))
	}
	var line []byte
	for {
		b, err := t.reader.ReadByte()
		if err != nil {
			t.markDead()
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ProtocolMessage{Kind: MessageDisconnected}, fmt.Errorf("telnet receive: %w", wyerr.Timeout)
			}
			return ProtocolMessage{Kind: MessageDisconnected}, fmt.Errorf("telnet receive: %w", wyerr.ConnectionClosed)
		}

		msg, consumed := t.step(b, &line)
		if consumed && msg != nil {
			return *msg, nil
		}
	}
}

// step feeds one byte through the negotiation state machine. Returns a
// message when a full line or structured command is ready.
func (t *TelnetAdapter) step(b byte, line *[]byte) (*ProtocolMessage, bool) {
	t.mu.Lock()
	state := t.state()
	t.mu.Unlock()

	switch state {
	case tsData:
		t.mu.Lock()
		mode := t.mode
		t.mu.Unlock()
		if mode == InputKeystroke && (b == controlS[0] || b == escapeKey[0]) {
			return &ProtocolMessage{Kind: MessageText, Text: translateKeystrokeSentinel(mode, string(b))}, true
		}
		switch b {
		case cmdIAC:
			t.setState(tsIAC)
			return nil, true
		case '\n':
			text := strings.TrimRight(string(*line), "\r")
			*line = (*line)[:0]
			return &ProtocolMessage{Kind: MessageText, Text: text}, true
		default:
			*line = append(*line, b)
			return nil, true
		}
	case tsIAC:
		switch b {
		case cmdWILL, cmdWONT, cmdDOv, cmdDONT:
			t.pendingCmd = b
			t.setState(tsCommand)
		case cmdSB:
			t.setState(tsSub)
		case cmdIAC:
			*line = append(*line, cmdIAC)
			t.setState(tsData)
		default:
			// GA, NOP, and friends: no further bytes expected.
			t.setState(tsData)
		}
		return nil, true
	case tsCommand:
		t.handleNegotiation(t.pendingCmd, b)
		t.setState(tsData)
		return nil, true
	case tsSub:
		if b == cmdIAC {
			t.setState(tsSubIAC)
			return nil, true
		}
		if t.subOpt == 0 && len(t.subBuf) == 0 {
			t.subOpt = b
		} else {
			t.subBuf = append(t.subBuf, b)
		}
		return nil, true
	case tsSubIAC:
		if b == cmdSE {
			msg := t.finishSubnegotiation()
			t.setState(tsData)
			if msg != nil {
				return msg, true
			}
			return nil, true
		}
		if b == cmdIAC {
			t.subBuf = append(t.subBuf, cmdIAC)
			t.setState(tsSub)
			return nil, true
		}
		// Malformed: treat as data resumption.
		t.setState(tsSub)
		return nil, true
	}
	return nil, true
}

func (t *TelnetAdapter) state() telnetParseState {
	return t.curState
}

func (t *TelnetAdapter) setState(s telnetParseState) {
	t.curState = s
	if s == tsSub {
		t.subBuf = t.subBuf[:0]
		t.subOpt = 0
	}
}

func (t *TelnetAdapter) handleNegotiation(cmd, opt byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch opt {
	case optTTYPE:
		if cmd == cmdWILL {
			t.caps.TerminalType = "unknown"
		}
	case optNAWS:
		// Accepted either way: DO answers our WILL opener, WILL is a
		// client announcing the option on its own. The 80x24 default holds
		// until the subnegotiation reports the real size.
		if cmd == cmdWILL || cmd == cmdDOv {
			t.caps.WindowWidth, t.caps.WindowHeight = 80, 24
		}
	case optMSDP:
		t.caps.MSDP = cmd == cmdDOv || cmd == cmdWILL
	case optGMCP:
		t.caps.GMCP = cmd == cmdDOv || cmd == cmdWILL
	case optSGA:
		// suppress-go-ahead accepted; no capability flag to flip.
	default:
		// Unknown option: refuse rather than silently accept (§4.1).
		switch cmd {
		case cmdWILL:
			t.writer.Write([]byte{cmdIAC, cmdDONT, opt})
			t.writer.Flush()
		case cmdDOv:
			t.writer.Write([]byte{cmdIAC, cmdWONT, opt})
			t.writer.Flush()
		}
	}
}

func (t *TelnetAdapter) finishSubnegotiation() *ProtocolMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.subOpt {
	case optNAWS:
		if len(t.subBuf) >= 4 {
			t.caps.WindowWidth = int(binary.BigEndian.Uint16(t.subBuf[0:2]))
			t.caps.WindowHeight = int(binary.BigEndian.Uint16(t.subBuf[2:4]))
		}
	case optTTYPE:
		if len(t.subBuf) > 1 {
			t.caps.TerminalType = string(t.subBuf[1:])
			t.caps.AnsiColors = strings.Contains(strings.ToLower(t.caps.TerminalType), "xterm") ||
				strings.Contains(strings.ToLower(t.caps.TerminalType), "ansi")
		}
	case optGMCP:
		parts := strings.SplitN(string(t.subBuf), " ", 2)
		if len(parts) == 2 {
			v, err := jsonUnmarshalValue([]byte(parts[1]))
			if err == nil {
				return &ProtocolMessage{Kind: MessageStructured, Structured: v}
			}
		}
	}
	return nil
}
