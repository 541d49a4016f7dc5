// Package rsp is a client for the gdb remote serial protocol, as spoken by
// the Black Magic Probe on its gdb serial port.
package rsp

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Protocol constants
const (
	PacketStart  = '$'
	PacketEnd    = '#'
	PacketEscape = '}'
	PacketRLE    = '*'
	Ack          = '+'
	Nak          = '-'

	escapeXor  = 0x20
	maxRetries = 3
)

var (
	// ErrChecksum is returned when a packet keeps failing its checksum.
	ErrChecksum = errors.New("rsp: checksum mismatch")

	// ErrRemote is returned when the probe answers with an Exx error reply.
	ErrRemote = errors.New("rsp: remote error")

	// ErrUnsupported is returned for an empty reply.
	ErrUnsupported = errors.New("rsp: command not supported")

	// ErrNak is returned when the probe keeps rejecting a packet.
	ErrNak = errors.New("rsp: packet rejected")
)

// Checksum is the modulo-256 sum of the packet data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Escape escapes the bytes that may not appear raw in packet data.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case PacketStart, PacketEnd, PacketEscape, PacketRLE:
			out = append(out, PacketEscape, b^escapeXor)
		default:
			out = append(out, b)
		}
	}
	return out
}

// Frame builds a complete packet: $data#cs.
func Frame(payload []byte) []byte {
	data := Escape(payload)
	out := make([]byte, 0, len(data)+4)
	out = append(out, PacketStart)
	out = append(out, data...)
	out = append(out, PacketEnd)
	return append(out, fmt.Sprintf("%02x", Checksum(data))...)
}

// Decode undoes escaping and run-length encoding of received packet data.
func Decode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case PacketEscape:
			i++
			if i >= len(data) {
				return nil, fmt.Errorf("rsp: dangling escape")
			}
			out = append(out, data[i]^escapeXor)
		case PacketRLE:
			i++
			if i >= len(data) || len(out) == 0 {
				return nil, fmt.Errorf("rsp: bad run-length encoding")
			}
			n := int(data[i]) - 29
			if n < 0 {
				return nil, fmt.Errorf("rsp: bad run-length count %q", data[i])
			}
			last := out[len(out)-1]
			for j := 0; j < n; j++ {
				out = append(out, last)
			}
		default:
			out = append(out, data[i])
		}
	}
	return out, nil
}

// Client exchanges packets with a remote target. Requests are serialized.
//
// Reads are not interruptible by ctx on their own; ctx is checked whenever
// the underlying reader returns a timeout error (see serial.ErrTimeout), so
// the port should be opened with a read timeout.
type Client struct {
	w io.Writer
	r *bufio.Reader

	mu sync.Mutex
}

// NewClient creates a client on rw.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		w: rw,
		r: bufio.NewReader(rw),
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func (c *Client) readByte(ctx context.Context) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b, err := c.r.ReadByte()
		if err == nil {
			return b, nil
		}
		if !isTimeout(err) {
			return 0, err
		}
	}
}

// send writes a packet and waits for its acknowledgement, retransmitting on
// a NAK.
func (c *Client) send(ctx context.Context, payload string) error {
	frame := Frame([]byte(payload))
	for attempt := 0; attempt < maxRetries; attempt++ {
		if _, err := c.w.Write(frame); err != nil {
			return fmt.Errorf("rsp: write failed: %w", err)
		}
		for {
			b, err := c.readByte(ctx)
			if err != nil {
				return err
			}
			if b == Ack {
				return nil
			}
			if b == Nak {
				break
			}
			// Anything else before the ack is line noise
		}
	}
	return fmt.Errorf("%w: %q", ErrNak, payload)
}

// recv reads one packet, acknowledging it.
func (c *Client) recv(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		for {
			b, err := c.readByte(ctx)
			if err != nil {
				return "", err
			}
			if b == PacketStart {
				break
			}
		}

		var data []byte
		for {
			b, err := c.readByte(ctx)
			if err != nil {
				return "", err
			}
			if b == PacketEnd {
				break
			}
			data = append(data, b)
		}

		var cs [2]byte
		for i := range cs {
			b, err := c.readByte(ctx)
			if err != nil {
				return "", err
			}
			cs[i] = b
		}
		want, err := hex.DecodeString(string(cs[:]))
		if err != nil || want[0] != Checksum(data) {
			if _, err := c.w.Write([]byte{Nak}); err != nil {
				return "", err
			}
			continue
		}
		if _, err := c.w.Write([]byte{Ack}); err != nil {
			return "", err
		}

		decoded, err := Decode(data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}
	return "", ErrChecksum
}

// Exchange sends a request packet and returns the reply packet.
func (c *Client) Exchange(ctx context.Context, payload string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchange(ctx, payload)
}

func (c *Client) exchange(ctx context.Context, payload string) (string, error) {
	if err := c.send(ctx, payload); err != nil {
		return "", err
	}
	return c.recv(ctx)
}

func checkReply(reply string) error {
	switch {
	case reply == "":
		return ErrUnsupported
	case isErrorReply(reply):
		return fmt.Errorf("%w: %s", ErrRemote, reply)
	}
	return nil
}

func isErrorReply(reply string) bool {
	if len(reply) != 3 || reply[0] != 'E' {
		return false
	}
	_, err := hex.DecodeString(reply[1:])
	return err == nil
}

// Monitor runs a probe monitor command (qRcmd) and returns its output as
// trimmed, non-empty lines.
func (c *Client) Monitor(ctx context.Context, command string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.exchange(ctx, "qRcmd,"+hex.EncodeToString([]byte(command)))
	if err != nil {
		return nil, err
	}

	var output strings.Builder
	for {
		switch {
		case reply == "OK":
			return splitLines(output.String()), nil
		case reply == "":
			return nil, fmt.Errorf("monitor %s: %w", command, ErrUnsupported)
		case isErrorReply(reply):
			return splitLines(output.String()), fmt.Errorf("monitor %s: %w: %s", command, ErrRemote, reply)
		case reply[0] == 'O':
			text, err := hex.DecodeString(reply[1:])
			if err != nil {
				return nil, fmt.Errorf("monitor %s: bad output packet: %w", command, err)
			}
			output.Write(text)
		default:
			// Final output sent without the O prefix
			text, err := hex.DecodeString(reply)
			if err != nil {
				return nil, fmt.Errorf("monitor %s: unexpected reply %q", command, reply)
			}
			output.Write(text)
			return splitLines(output.String()), nil
		}
		if reply, err = c.recv(ctx); err != nil {
			return nil, err
		}
	}
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Attach attaches to target number id (vAttach). The probe answers with a
// stop reply once the core is halted.
func (c *Client) Attach(ctx context.Context, id int) error {
	reply, err := c.Exchange(ctx, fmt.Sprintf("vAttach;%x", id))
	if err != nil {
		return err
	}
	if err := checkReply(reply); err != nil {
		return fmt.Errorf("attach %d: %w", id, err)
	}
	if reply[0] != 'T' && reply[0] != 'S' {
		return fmt.Errorf("attach %d: unexpected reply %q", id, reply)
	}
	return nil
}

// Detach detaches from the current target and lets it run.
func (c *Client) Detach(ctx context.Context) error {
	reply, err := c.Exchange(ctx, "D")
	if err != nil {
		return err
	}
	if reply != "OK" {
		if err := checkReply(reply); err != nil {
			return fmt.Errorf("detach: %w", err)
		}
		return fmt.Errorf("detach: unexpected reply %q", reply)
	}
	return nil
}

// ReadMemory reads n bytes at addr.
func (c *Client) ReadMemory(ctx context.Context, addr uint32, n int) ([]byte, error) {
	reply, err := c.Exchange(ctx, fmt.Sprintf("m%x,%x", addr, n))
	if err != nil {
		return nil, err
	}
	if err := checkReply(reply); err != nil {
		return nil, fmt.Errorf("read 0x%08x: %w", addr, err)
	}
	data, err := hex.DecodeString(reply)
	if err != nil {
		return nil, fmt.Errorf("read 0x%08x: bad reply: %w", addr, err)
	}
	if len(data) != n {
		return nil, fmt.Errorf("read 0x%08x: got %d bytes, want %d", addr, len(data), n)
	}
	return data, nil
}

// WriteMemory writes data at addr.
func (c *Client) WriteMemory(ctx context.Context, addr uint32, data []byte) error {
	reply, err := c.Exchange(ctx, fmt.Sprintf("M%x,%x:%s", addr, len(data), hex.EncodeToString(data)))
	if err != nil {
		return err
	}
	if reply != "OK" {
		if err := checkReply(reply); err != nil {
			return fmt.Errorf("write 0x%08x: %w", addr, err)
		}
		return fmt.Errorf("write 0x%08x: unexpected reply %q", addr, reply)
	}
	return nil
}

// Read32 reads a little-endian 32-bit word.
func (c *Client) Read32(ctx context.Context, addr uint32) (uint32, error) {
	data, err := c.ReadMemory(ctx, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Write32 writes a little-endian 32-bit word.
func (c *Client) Write32(ctx context.Context, addr, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return c.WriteMemory(ctx, addr, buf[:])
}
