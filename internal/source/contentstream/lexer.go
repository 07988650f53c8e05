// Package contentstream tokenizes PDF page content streams and rebuilds the
// vector paths they paint.
package contentstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// TokenType is the lexical class of a content stream token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenName
	TokenString
	TokenHexString
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenOperator
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "Number"
	case TokenName:
		return "Name"
	case TokenString:
		return "String"
	case TokenHexString:
		return "HexString"
	case TokenArrayStart:
		return "ArrayStart"
	case TokenArrayEnd:
		return "ArrayEnd"
	case TokenDictStart:
		return "DictStart"
	case TokenDictEnd:
		return "DictEnd"
	case TokenOperator:
		return "Operator"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// Token is one lexical token of a content stream
type Token struct {
	Type  TokenType
	Value string
	Pos   int64
}

// Number returns the numeric value of a number token
func (t Token) Number() (float64, bool) {
	if t.Type != TokenNumber {
		return 0, false
	}
	v, err := strconv.ParseFloat(t.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Lexer tokenizes a content stream. Inline image data between ID and EI is
// skipped so binary bytes never reach the operand stack.
type Lexer struct {
	reader   *bufio.Reader
	position int64
	current  byte
	hasNext  bool
	err      error
}

// NewLexer creates a lexer over r
func NewLexer(r io.Reader) *Lexer {
	l := &Lexer{
		reader:   bufio.NewReader(r),
		position: -1,
		hasNext:  true,
	}
	l.advance()
	return l
}

func (l *Lexer) advance() {
	if !l.hasNext {
		return
	}
	ch, err := l.reader.ReadByte()
	if err != nil {
		if err != io.EOF {
			l.err = err
		}
		l.hasNext = false
		l.current = 0
		return
	}
	l.current = ch
	l.position++
}

func (l *Lexer) peek() byte {
	if !l.hasNext {
		return 0
	}
	next, err := l.reader.Peek(1)
	if err != nil || len(next) == 0 {
		return 0
	}
	return next[0]
}

func (l *Lexer) skipComment() {
	for l.hasNext && l.current != '\n' && l.current != '\r' {
		l.advance()
	}
}

// Next returns the next token, or a TokenEOF token at the end of input.
func (l *Lexer) Next() (Token, error) {
	for l.hasNext {
		if isWhitespace(l.current) {
			l.advance()
		} else if l.current == '%' {
			l.skipComment()
		} else {
			break
		}
	}
	if l.err != nil {
		return Token{Pos: l.position}, fmt.Errorf("content stream read failed at %d: %w", l.position, l.err)
	}
	if !l.hasNext {
		return Token{Type: TokenEOF, Pos: l.position}, nil
	}

	start := l.position
	switch l.current {
	case '(':
		return l.readLiteralString()
	case '<':
		if l.peek() == '<' {
			l.advance()
			l.advance()
			return Token{Type: TokenDictStart, Value: "<<", Pos: start}, nil
		}
		return l.readHexString()
	case '>':
		l.advance()
		if l.hasNext && l.current == '>' {
			l.advance()
			return Token{Type: TokenDictEnd, Value: ">>", Pos: start}, nil
		}
		return Token{}, fmt.Errorf("unexpected '>' at %d", start)
	case '[':
		l.advance()
		return Token{Type: TokenArrayStart, Value: "[", Pos: start}, nil
	case ']':
		l.advance()
		return Token{Type: TokenArrayEnd, Value: "]", Pos: start}, nil
	case '{', '}':
		// PostScript calculator braces only occur in type 4 functions; treat them as operators
		ch := l.current
		l.advance()
		return Token{Type: TokenOperator, Value: string(ch), Pos: start}, nil
	case '/':
		return l.readName()
	}
	if isDigit(l.current) || l.current == '+' || l.current == '-' || l.current == '.' {
		return l.readNumber()
	}
	if l.current == ')' {
		l.advance()
		return Token{}, fmt.Errorf("unbalanced ')' at %d", start)
	}

	tok := l.readOperator()
	if tok.Value == "ID" {
		l.skipInlineImage()
	}
	return tok, nil
}

func (l *Lexer) readLiteralString() (Token, error) {
	start := l.position
	var buf bytes.Buffer
	l.advance()
	depth := 1

	for l.hasNext {
		ch := l.current
		switch ch {
		case '(':
			depth++
			buf.WriteByte(ch)
		case ')':
			depth--
			if depth == 0 {
				l.advance()
				return Token{Type: TokenString, Value: buf.String(), Pos: start}, nil
			}
			buf.WriteByte(ch)
		case '\\':
			l.advance()
			if !l.hasNext {
				break
			}
			l.readEscape(&buf)
		default:
			buf.WriteByte(ch)
		}
		l.advance()
	}
	return Token{Type: TokenString, Value: buf.String(), Pos: start}, fmt.Errorf("unterminated string at %d", start)
}

func (l *Lexer) readEscape(buf *bytes.Buffer) {
	switch l.current {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		// line continuation
		if l.peek() == '\n' {
			l.advance()
		}
	case '\n':
	default:
		if l.current >= '0' && l.current <= '7' {
			octal := []byte{l.current}
			for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
				l.advance()
				octal = append(octal, l.current)
			}
			v, _ := strconv.ParseUint(string(octal), 8, 16)
			buf.WriteByte(byte(v))
			return
		}
		buf.WriteByte(l.current)
	}
}

func (l *Lexer) readHexString() (Token, error) {
	start := l.position
	var buf bytes.Buffer
	l.advance()

	for l.hasNext && l.current != '>' {
		if !isWhitespace(l.current) {
			if !isHex(l.current) {
				return Token{}, fmt.Errorf("invalid hex digit %q at %d", l.current, l.position)
			}
			buf.WriteByte(l.current)
		}
		l.advance()
	}
	if !l.hasNext {
		return Token{}, fmt.Errorf("unterminated hex string at %d", start)
	}
	l.advance()

	if buf.Len()%2 == 1 {
		buf.WriteByte('0')
	}
	return Token{Type: TokenHexString, Value: buf.String(), Pos: start}, nil
}

func (l *Lexer) readName() (Token, error) {
	start := l.position
	var buf bytes.Buffer
	l.advance()

	for l.hasNext && isRegular(l.current) {
		if l.current == '#' && isHex(l.peek()) {
			l.advance()
			hi := l.current
			if isHex(l.peek()) {
				l.advance()
				v, _ := strconv.ParseUint(string([]byte{hi, l.current}), 16, 8)
				buf.WriteByte(byte(v))
				l.advance()
				continue
			}
			buf.WriteByte('#')
			buf.WriteByte(hi)
			l.advance()
			continue
		}
		buf.WriteByte(l.current)
		l.advance()
	}
	return Token{Type: TokenName, Value: buf.String(), Pos: start}, nil
}

func (l *Lexer) readNumber() (Token, error) {
	start := l.position
	var buf bytes.Buffer

	if l.current == '+' || l.current == '-' {
		buf.WriteByte(l.current)
		l.advance()
	}
	for l.hasNext && isDigit(l.current) {
		buf.WriteByte(l.current)
		l.advance()
	}
	if l.hasNext && l.current == '.' {
		buf.WriteByte(l.current)
		l.advance()
		for l.hasNext && isDigit(l.current) {
			buf.WriteByte(l.current)
			l.advance()
		}
	}

	value := buf.String()
	switch value {
	case "+", "-", ".", "+.", "-.":
		// a lone sign or point reads as zero
		value = "0"
	}
	return Token{Type: TokenNumber, Value: value, Pos: start}, nil
}

func (l *Lexer) readOperator() Token {
	start := l.position
	var buf bytes.Buffer
	for l.hasNext && isRegular(l.current) {
		buf.WriteByte(l.current)
		l.advance()
	}
	if buf.Len() == 0 {
		// a stray delimiter; consume it so the lexer always makes progress
		buf.WriteByte(l.current)
		l.advance()
	}
	return Token{Type: TokenOperator, Value: buf.String(), Pos: start}
}

// skipInlineImage consumes the binary data after ID up to and including the
// EI operator, which must stand between whitespace.
func (l *Lexer) skipInlineImage() {
	if l.hasNext && isWhitespace(l.current) {
		l.advance()
	}
	prev := byte(' ')
	for l.hasNext {
		if l.current == 'E' && isWhitespace(prev) && l.peek() == 'I' {
			l.advance()
			l.advance()
			if !l.hasNext || isWhitespace(l.current) || isDelimiter(l.current) {
				return
			}
			prev = 'I'
			continue
		}
		prev = l.current
		l.advance()
	}
}

// Position returns the offset of the current byte
func (l *Lexer) Position() int64 {
	return l.position
}

func isWhitespace(ch byte) bool {
	return ch == 0 || ch == '\t' || ch == '\n' || ch == '\f' || ch == '\r' || ch == ' '
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(ch byte) bool {
	return !isWhitespace(ch) && !isDelimiter(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHex(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
