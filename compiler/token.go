package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the men lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenIdentifier // x, total_1

	// Separators
	TokenNewline   // \n
	TokenSemicolon // ;

	// Delimiters
	TokenLParen // (
	TokenRParen // )
	TokenLBrace // {
	TokenRBrace // }
	TokenAssign // :=

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenLess    // <
	TokenGreater // >
	TokenEqual   // == or =

	// Reserved words
	TokenPrint
	TokenInc
	TokenDec
	TokenIf
	TokenElse
	TokenWhile
	TokenTrue
	TokenFalse
	TokenAnd
	TokenOr
	TokenNot
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenIdentifier: "IDENTIFIER",
	TokenNewline:    "NEWLINE",
	TokenSemicolon:  ";",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenAssign:     ":=",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenLess:       "<",
	TokenGreater:    ">",
	TokenEqual:      "==",
	TokenPrint:      "print",
	TokenInc:        "inc",
	TokenDec:        "dec",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenAnd:        "and",
	TokenOr:         "or",
	TokenNot:        "not",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNewline:
		return "NEWLINE"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types. The upper-case logical
// spellings are accepted as well.
var reservedWords = map[string]TokenType{
	"print": TokenPrint,
	"inc":   TokenInc,
	"dec":   TokenDec,
	"if":    TokenIf,
	"else":  TokenElse,
	"while": TokenWhile,
	"true":  TokenTrue,
	"false": TokenFalse,
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"AND":   TokenAnd,
	"OR":    TokenOr,
	"NOT":   TokenNot,
}

// IsReserved reports whether name is a reserved word.
func IsReserved(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// Keywords returns the lower-case reserved words, for completion.
func Keywords() []string {
	return []string{"print", "inc", "dec", "if", "else", "while", "true", "false", "and", "or", "not"}
}
