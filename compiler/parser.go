package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for men source
// ---------------------------------------------------------------------------

// Parser parses men source code into an AST.
//
//	program   = { stmt sep }
//	stmt      = IDENT ":=" expr | "print" expr | "inc" IDENT | "dec" IDENT
//	          | "if" expr block [ "else" ( block | if ) ]
//	          | "while" expr block | block
//	block     = "{" { stmt sep } "}"
//	expr      = and { "or" and }
//	and       = cmp { "and" cmp }
//	cmp       = sum [ ( "<" | ">" | "==" ) sum ]
//	sum       = term { ( "+" | "-" ) term }
//	term      = unary { ( "*" | "/" ) unary }
//	unary     = ( "not" | "-" ) unary | primary
//	primary   = INTEGER | "true" | "false" | IDENT | "(" expr ")"
type Parser struct {
	diagnostics
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		diagnostics: diagnostics{stage: "parse"},
		lexer:       NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenError {
		p.reportAt(p.peekToken.Pos, "%s", p.peekToken.Literal)
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.reportAt(p.curToken.Pos, format, args...)
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a whole program into a Block.
func (p *Parser) ParseProgram() *Node {
	root := NewBlock().At(p.curToken.Pos)
	root.Stmts = p.parseStatements(TokenEOF)
	return root
}

// parseStatements parses statements until the terminator token (not
// consumed).
func (p *Parser) parseStatements(end TokenType) []*Node {
	stmts := []*Node{}
	for {
		p.skipSeparators()
		if p.curTokenIs(end) || p.curTokenIs(TokenEOF) {
			return stmts
		}
		start := p.curToken
		stmt := p.ParseStatement()
		if stmt == nil {
			// Already reported; skip the rest of the statement.
			p.syncToSeparator()
		} else {
			stmts = append(stmts, stmt)
			if !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenSemicolon) &&
				!p.curTokenIs(end) && !p.curTokenIs(TokenEOF) {
				p.errorf("expected end of statement, got %s", p.curToken)
				p.syncToSeparator()
			}
		}
		if p.curToken == start {
			// No progress; drop the token to avoid looping.
			p.nextToken()
		}
	}
}

func (p *Parser) skipSeparators() {
	for p.curTokenIs(TokenNewline) || p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
}

// syncToSeparator skips to the next statement boundary after an error.
func (p *Parser) syncToSeparator() {
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenSemicolon) &&
		!p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		p.nextToken()
	}
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() *Node {
	pos := p.curToken.Pos
	switch p.curToken.Type {
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		if !p.expect(TokenAssign) {
			return nil
		}
		init := p.ParseExpression()
		if init == nil {
			return nil
		}
		return NewDecl(name, init).At(pos)

	case TokenPrint:
		p.nextToken()
		expr := p.ParseExpression()
		if expr == nil {
			return nil
		}
		return NewPrint(expr).At(pos)

	case TokenInc, TokenDec:
		isInc := p.curTokenIs(TokenInc)
		p.nextToken()
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected variable name, got %s", p.curToken)
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		if isInc {
			return NewInc(name).At(pos)
		}
		return NewDec(name).At(pos)

	case TokenIf:
		return p.parseIf()

	case TokenWhile:
		p.nextToken()
		cond := p.ParseExpression()
		body := p.parseBlock()
		if cond == nil || body == nil {
			return nil
		}
		return NewWhile(cond, body).At(pos)

	case TokenLBrace:
		return p.parseBlock()
	}

	p.errorf("expected statement, got %s", p.curToken)
	return nil
}

func (p *Parser) parseIf() *Node {
	pos := p.curToken.Pos
	p.nextToken() // consume if
	cond := p.ParseExpression()
	thenBlock := p.parseBlock()
	var elseBlock *Node
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			elsePos := p.curToken.Pos
			nested := p.parseIf()
			if nested != nil {
				elseBlock = NewBlock(nested).At(elsePos)
			}
		} else {
			elseBlock = p.parseBlock()
		}
	}
	if cond == nil || thenBlock == nil {
		return nil
	}
	return NewIf(cond, thenBlock, elseBlock).At(pos)
}

// parseBlock parses { statements }.
func (p *Parser) parseBlock() *Node {
	pos := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}
	stmts := p.parseStatements(TokenRBrace)
	if !p.expect(TokenRBrace) {
		return nil
	}
	return NewBlock(stmts...).At(pos)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() *Node {
	return p.parseOr()
}

func (p *Parser) parseOr() *Node {
	left := p.parseAnd()
	for left != nil && p.curTokenIs(TokenOr) {
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = NewBinary(OpOr, left, right).At(pos)
	}
	return left
}

func (p *Parser) parseAnd() *Node {
	left := p.parseComparison()
	for left != nil && p.curTokenIs(TokenAnd) {
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseComparison()
		if right == nil {
			return nil
		}
		left = NewBinary(OpAnd, left, right).At(pos)
	}
	return left
}

var comparisonOps = map[TokenType]Op{
	TokenLess:    OpLess,
	TokenGreater: OpGreater,
	TokenEqual:   OpEqual,
}

func (p *Parser) parseComparison() *Node {
	left := p.parseSum()
	if left == nil {
		return nil
	}
	if op, ok := comparisonOps[p.curToken.Type]; ok {
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseSum()
		if right == nil {
			return nil
		}
		left = NewBinary(op, left, right).At(pos)
		if _, chained := comparisonOps[p.curToken.Type]; chained {
			p.errorf("comparison operators do not chain")
		}
	}
	return left
}

func (p *Parser) parseSum() *Node {
	left := p.parseTerm()
	for left != nil && (p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus)) {
		op := OpAdd
		if p.curTokenIs(TokenMinus) {
			op = OpSub
		}
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseTerm()
		if right == nil {
			return nil
		}
		left = NewBinary(op, left, right).At(pos)
	}
	return left
}

func (p *Parser) parseTerm() *Node {
	left := p.parseUnary()
	for left != nil && (p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash)) {
		op := OpMul
		if p.curTokenIs(TokenSlash) {
			op = OpDiv
		}
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = NewBinary(op, left, right).At(pos)
	}
	return left
}

func (p *Parser) parseUnary() *Node {
	pos := p.curToken.Pos
	switch p.curToken.Type {
	case TokenNot:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return NewUnary(OpNot, operand).At(pos)
	case TokenMinus:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return NewUnary(OpNeg, operand).At(pos)
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() *Node {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		n, err := strconv.Atoi(tok.Literal)
		if err != nil || n > 1<<31-1 {
			p.reportAt(tok.Pos, "integer literal %s out of range", tok.Literal)
			return nil
		}
		return NewNumber(n).At(tok.Pos)
	case TokenTrue, TokenFalse:
		p.nextToken()
		return NewBool(tok.Type == TokenTrue).At(tok.Pos)
	case TokenIdentifier:
		p.nextToken()
		return NewIdent(tok.Literal).At(tok.Pos)
	case TokenLParen:
		p.nextToken()
		expr := p.ParseExpression()
		if !p.expect(TokenRParen) {
			return nil
		}
		return expr
	}
	p.errorf("expected expression, got %s", tok)
	return nil
}

// ---------------------------------------------------------------------------
// Parse helper for external use
// ---------------------------------------------------------------------------

// Parse parses source into a program Block.
func Parse(source string) (*Node, error) {
	p := NewParser(source)
	root := p.ParseProgram()
	if p.Count() > 0 {
		return nil, fmt.Errorf("parse errors: %s", strings.Join(p.Errors(), "; "))
	}
	return root, nil
}
