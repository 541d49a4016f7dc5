// Package gdbmi talks to gdb over its machine interface (MI4).
package gdbmi

import (
	"fmt"
	"strings"
)

// RecordType classifies one line of MI output
type RecordType string

const (
	TypeResult  RecordType = "result"  // ^done, ^error, ...
	TypeNotify  RecordType = "notify"  // *stopped, =thread-group-added, ...
	TypeStatus  RecordType = "status"  // +download, ...
	TypeConsole RecordType = "console" // ~"..."
	TypeTarget  RecordType = "target"  // @"..."
	TypeLog     RecordType = "log"     // &"..."
	TypeOutput  RecordType = "output"  // anything else (inferior output)
	TypePrompt  RecordType = "prompt"  // (gdb)
)

// Record is one parsed MI output line.
//
// For result, notify and status records Message holds the class ("done",
// "stopped") and Payload the results. Tuples decode to map[string]any,
// lists to []any, constants to string. Lists of named results keep only the
// values, since gdb repeats the same name for every element.
// For stream records and unrecognised output Text holds the decoded string.
type Record struct {
	Type    RecordType
	Token   string
	Message string
	Payload map[string]any
	Text    string
}

func (r Record) String() string {
	switch r.Type {
	case TypeConsole, TypeTarget, TypeLog, TypeOutput:
		return fmt.Sprintf("%s %q", r.Type, r.Text)
	case TypePrompt:
		return "(gdb)"
	default:
		return fmt.Sprintf("%s %s%s %v", r.Type, r.Token, r.Message, r.Payload)
	}
}

// Value returns payload[key] if it is a constant.
func (r Record) Value(key string) (string, bool) {
	v, ok := r.Payload[key].(string)
	return v, ok
}

// ParseLine parses one line of MI output. The trailing newline is optional.
func ParseLine(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")

	if strings.TrimSpace(line) == "(gdb)" {
		return Record{Type: TypePrompt}, nil
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	token := line[:i]
	rest := line[i:]
	if rest == "" {
		return Record{Type: TypeOutput, Text: line}, nil
	}

	switch rest[0] {
	case '^', '*', '=', '+':
		rec := Record{Token: token}
		switch rest[0] {
		case '^':
			rec.Type = TypeResult
		case '+':
			rec.Type = TypeStatus
		default:
			rec.Type = TypeNotify
		}
		class, results, _ := strings.Cut(rest[1:], ",")
		rec.Message = class
		rec.Payload = map[string]any{}
		if results != "" {
			p := &parser{s: results}
			payload, err := p.results()
			if err != nil {
				return Record{}, fmt.Errorf("gdbmi: %w in %q", err, line)
			}
			rec.Payload = payload
		}
		return rec, nil

	case '~', '@', '&':
		if token != "" {
			break
		}
		p := &parser{s: rest[1:]}
		text, err := p.cstring()
		if err != nil {
			return Record{}, fmt.Errorf("gdbmi: %w in %q", err, line)
		}
		rec := Record{Text: text}
		switch rest[0] {
		case '~':
			rec.Type = TypeConsole
		case '@':
			rec.Type = TypeTarget
		default:
			rec.Type = TypeLog
		}
		return rec, nil
	}

	return Record{Type: TypeOutput, Text: line}, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

// results parses result ("," result)* up to the end of input.
func (p *parser) results() (map[string]any, error) {
	out := map[string]any{}
	for {
		var (
			name  string
			value any
			err   error
		)
		if c := p.peek(); c == '{' || c == '[' || c == '"' {
			// Some records carry a bare value (+download,{...}); keep it under ""
			value, err = p.value()
		} else {
			name, value, err = p.result()
		}
		if err != nil {
			return nil, err
		}
		out[name] = value
		if p.pos >= len(p.s) {
			return out, nil
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
	}
}

func (p *parser) result() (string, any, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != '=' {
		c := p.s[p.pos]
		if c == ',' || c == '{' || c == '}' || c == '[' || c == ']' || c == '"' {
			return "", nil, fmt.Errorf("unexpected %q in variable name at offset %d", c, p.pos)
		}
		p.pos++
	}
	name := p.s[start:p.pos]
	if err := p.expect('='); err != nil {
		return "", nil, err
	}
	value, err := p.value()
	return name, value, err
}

func (p *parser) value() (any, error) {
	switch p.peek() {
	case '"':
		return p.cstring()
	case '{':
		return p.tuple()
	case '[':
		return p.list()
	default:
		return nil, fmt.Errorf("unexpected value at offset %d", p.pos)
	}
}

func (p *parser) tuple() (map[string]any, error) {
	p.pos++ // {
	out := map[string]any{}
	if p.peek() == '}' {
		p.pos++
		return out, nil
	}
	for {
		name, value, err := p.result()
		if err != nil {
			return nil, err
		}
		out[name] = value
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("unterminated tuple at offset %d", p.pos)
		}
	}
}

func (p *parser) list() ([]any, error) {
	p.pos++ // [
	out := []any{}
	if p.peek() == ']' {
		p.pos++
		return out, nil
	}
	for {
		var (
			value any
			err   error
		)
		switch p.peek() {
		case '"', '{', '[':
			value, err = p.value()
		default:
			_, value, err = p.result()
		}
		if err != nil {
			return nil, err
		}
		out = append(out, value)
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("unterminated list at offset %d", p.pos)
		}
	}
}

// cstring decodes a C string literal with gdb's escapes.
func (p *parser) cstring() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.pos >= len(p.s) {
				return "", fmt.Errorf("dangling escape")
			}
			e := p.s[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'e':
				b.WriteByte(0x1b)
			case 'a':
				b.WriteByte(0x07)
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'v':
				b.WriteByte('\v')
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for n := 1; n < 3 && p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '7'; n++ {
					v = v*8 + int(p.s[p.pos]-'0')
					p.pos++
				}
				b.WriteByte(byte(v))
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

// Quote encodes s as a C string literal for use in an MI command.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
