// Package parser builds ast.Group trees from Arend-subset source.
//
// Errors are reported to a diag.Reporter. A declaration that fails to parse is
// dropped and parsing resumes at the next statement keyword in column 1, so
// each broken declaration yields exactly one parser error.
package parser

import (
	"slices"

	"arendls/internal/ast"
	"arendls/internal/diag"
	"arendls/internal/lexer"
	"arendls/internal/source"
	"arendls/internal/token"
)

// Parser holds the state for one module.
type Parser struct {
	toks []token.Token
	pos  int
	loc  source.ModuleLocation
	rep  diag.Reporter
	// prevLine is the line of the last consumed token.
	prevLine int
}

// ParseModule parses one module. The returned group is never nil.
func ParseModule(src []byte, loc source.ModuleLocation, rep diag.Reporter) *ast.Group {
	if rep == nil {
		rep = &diag.Collect{}
	}
	p := &Parser{
		toks: lexer.Tokenize(source.Normalize(src), loc, rep),
		loc:  loc,
		rep:  rep,
	}
	return p.parseModule()
}

func (p *Parser) peek() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peekAt(i int) token.Token {
	if p.pos+i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+i]
}

func (p *Parser) at(k token.Kind) bool {
	return p.peek().Kind == k
}

func (p *Parser) atOr(kinds ...token.Kind) bool {
	return slices.Contains(kinds, p.peek().Kind)
}

// advance consumes the current token. EOF is never consumed.
func (p *Parser) advance() token.Token {
	tok := p.toks[p.pos]
	if tok.Kind != token.EOF {
		p.pos++
		p.prevLine = tok.Line
	}
	return tok
}

// expect consumes a token of kind k or reports what was found instead.
func (p *Parser) expect(k token.Kind, what string) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.errExpected(what)
	return p.peek(), false
}

func (p *Parser) errExpected(what string) {
	tok := p.peek()
	// The lexer already reported malformed tokens.
	if tok.Kind == token.Invalid || tok.Kind == token.Backslash {
		return
	}
	found := tok.Kind.String()
	if tok.Kind == token.Ident || tok.Kind == token.Number {
		found = "'" + tok.Text + "'"
	}
	p.rep.Report(diag.Errorf(diag.CodeParse, diag.ParserCause{Pos: p.posOf(tok)}, "expected %s, found %s", what, found))
}

func (p *Parser) posOf(tok token.Token) source.Pos {
	return source.Pos{Module: p.loc, Line: tok.Line, Column: tok.Column}
}

// recover skips to the next statement keyword that starts a line, or EOF.
// At least one token past start is consumed.
func (p *Parser) recover(start int) {
	if p.pos == start {
		p.advance()
	}
	for !p.at(token.EOF) {
		tok := p.peek()
		if tok.StartsDecl() && tok.Column == 1 {
			return
		}
		p.advance()
	}
}

func (p *Parser) parseModule() *ast.Group {
	top := &ast.Group{Location: p.loc}
	for !p.at(token.EOF) {
		start := p.pos
		switch p.peek().Kind {
		case token.KwImport, token.KwOpen:
			if cmd, ok := p.parseNamespace(); ok {
				top.Namespace = append(top.Namespace, cmd)
				continue
			}
		case token.KwFunc, token.KwLemma, token.KwData:
			if g, ok := p.parseDecl(); ok {
				top.Subgroups = append(top.Subgroups, g)
				continue
			}
		default:
			p.errExpected("a declaration")
		}
		p.recover(start)
	}
	return top
}

// parseNamespace parses `\import A.B` or `\open A.B`.
func (p *Parser) parseNamespace() (*ast.NamespaceCommand, bool) {
	kw := p.advance()
	kind := ast.NamespaceImport
	if kw.Kind == token.KwOpen {
		kind = ast.NamespaceOpen
	}
	path, pos, ok := p.parseModulePath()
	if !ok {
		return nil, false
	}
	return &ast.NamespaceCommand{Kind: kind, Path: path, Pos: pos, Line: kw.Line}, true
}

func (p *Parser) parseModulePath() (source.ModulePath, source.Pos, bool) {
	first, ok := p.expect(token.Ident, "a module name")
	if !ok {
		return nil, source.Pos{}, false
	}
	path := source.ModulePath{first.Text}
	for p.at(token.Dot) {
		p.advance()
		seg, ok := p.expect(token.Ident, "a module name segment")
		if !ok {
			return nil, source.Pos{}, false
		}
		path = append(path, seg.Text)
	}
	return path, p.posOf(first), true
}
