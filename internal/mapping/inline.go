package mapping

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/runsheets/internal/runsheet"
)

// ParseInline parses a literal mapping of the form
//
//	{'SCD0001': 'a@example.com', "SCD0002": "b@example.com",}
//
// Keys and values must be quoted strings (single or double quotes, with
// backslash escapes). A trailing comma is allowed. Anything else is rejected
// with ErrMappingFormat; the text is never evaluated.
func ParseInline(s string) (runsheet.Mapping, error) {
	p := &inlineParser{src: s}
	m, err := p.parse()
	if err != nil {
		return nil, err
	}
	return m, nil
}

type inlineParser struct {
	src string
	pos int
}

func (p *inlineParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: offset %d: %s", ErrMappingFormat, p.pos, fmt.Sprintf(format, args...))
}

func (p *inlineParser) parse() (runsheet.Mapping, error) {
	m := make(runsheet.Mapping)

	p.skipSpace()
	if !p.consume('{') {
		return nil, p.errorf("expected '{'")
	}

	p.skipSpace()
	if p.consume('}') {
		return m, p.end()
	}

	for {
		p.skipSpace()
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.skipSpace()
		val, err := p.str()
		if err != nil {
			return nil, err
		}

		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if key == "" {
			return nil, p.errorf("empty run id")
		}
		if val == "" {
			return nil, p.errorf("empty address for %q", key)
		}
		m[key] = val

		p.skipSpace()
		if p.consume('}') {
			return m, p.end()
		}
		if !p.consume(',') {
			return nil, p.errorf("expected ',' or '}'")
		}
		p.skipSpace()
		if p.consume('}') {
			return m, p.end()
		}
	}
}

func (p *inlineParser) end() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return p.errorf("unexpected trailing text")
	}
	return nil
}

func (p *inlineParser) str() (string, error) {
	if p.pos >= len(p.src) {
		return "", p.errorf("unexpected end of input")
	}
	quote := p.src[p.pos]
	if quote != '\'' && quote != '"' {
		return "", p.errorf("expected quoted string")
	}
	p.pos++

	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			next := p.src[p.pos+1]
			if next != '\\' && next != '\'' && next != '"' {
				return "", p.errorf("unsupported escape \\%c", next)
			}
			sb.WriteByte(next)
			p.pos += 2
		case c == '\n':
			return "", p.errorf("newline in string")
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *inlineParser) consume(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *inlineParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}
