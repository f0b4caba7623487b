package parser

import (
	"arendls/internal/ast"
	"arendls/internal/token"
)

// parseExpr parses `app [-> expr]`. Arrows associate to the right.
func (p *Parser) parseExpr() (*ast.Expr, bool) {
	left, ok := p.parseApp()
	if !ok {
		return nil, false
	}
	if !p.at(token.Arrow) {
		return left, true
	}
	p.advance()
	right, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.Expr{Kind: ast.ExprArrow, Pos: left.Pos, Args: []*ast.Expr{left, right}}, true
}

func (p *Parser) parseApp() (*ast.Expr, bool) {
	head, ok := p.parseAtom()
	if !ok {
		return nil, false
	}
	args := []*ast.Expr{head}
	for p.atArgument() {
		arg, ok := p.parseAtom()
		if !ok {
			return nil, false
		}
		args = append(args, arg)
	}
	if len(args) == 1 {
		return head, true
	}
	return &ast.Expr{Kind: ast.ExprApp, Pos: head.Pos, Args: args}, true
}

// atArgument reports whether the next token continues an application. A token
// in column 1 of a later line never does: it starts the next statement.
func (p *Parser) atArgument() bool {
	tok := p.peek()
	if !tok.StartsAtom() {
		return false
	}
	return tok.Column != 1 || tok.Line == p.prevLine
}

func (p *Parser) parseAtom() (*ast.Expr, bool) {
	tok := p.peek()
	switch tok.Kind {
	case token.Ident:
		p.advance()
		return &ast.Expr{Kind: ast.ExprRef, Pos: p.posOf(tok), Text: tok.Text}, true
	case token.Number:
		p.advance()
		return &ast.Expr{Kind: ast.ExprNum, Pos: p.posOf(tok), Text: tok.Text}, true
	case token.Goal:
		p.advance()
		return &ast.Expr{Kind: ast.ExprGoal, Pos: p.posOf(tok), Text: tok.Text}, true
	case token.KwType:
		p.advance()
		return &ast.Expr{Kind: ast.ExprUniverse, Pos: p.posOf(tok), Text: tok.Text}, true
	case token.LParen:
		p.advance()
		inner, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(token.RParen, "')'"); !ok {
			return nil, false
		}
		return inner, true
	case token.KwLam:
		return p.parseLam()
	case token.KwLet:
		return p.parseLet()
	case token.KwPi:
		return p.parsePi()
	default:
		p.errExpected("an expression")
		return nil, false
	}
}

// parseLam parses `\lam x (y z : T) => body`.
func (p *Parser) parseLam() (*ast.Expr, bool) {
	kw := p.advance()
	binders, ok := p.parseParams()
	if !ok {
		return nil, false
	}
	if len(binders) == 0 {
		p.errExpected("a lambda parameter")
		return nil, false
	}
	if _, ok := p.expect(token.FatArrow, "'=>'"); !ok {
		return nil, false
	}
	body, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.Expr{Kind: ast.ExprLam, Pos: p.posOf(kw), Binders: binders, Args: []*ast.Expr{body}}, true
}

// parseLet parses `\let x => value \in body`.
func (p *Parser) parseLet() (*ast.Expr, bool) {
	kw := p.advance()
	name, ok := p.expect(token.Ident, "a binding name")
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.FatArrow, "'=>'"); !ok {
		return nil, false
	}
	value, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(token.KwIn, "\\in"); !ok {
		return nil, false
	}
	body, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	b := &ast.Binding{Name: name.Text, Pos: p.posOf(name)}
	return &ast.Expr{
		Kind:    ast.ExprLet,
		Pos:     p.posOf(kw),
		Binders: []*ast.Binding{b},
		Args:    []*ast.Expr{value, body},
	}, true
}

// parsePi parses `\Pi (x : A) {y : B} -> C`.
func (p *Parser) parsePi() (*ast.Expr, bool) {
	kw := p.advance()
	var binders []*ast.Binding
	for p.atOr(token.LParen, token.LBrace) {
		group, ok := p.parseTypedBinders()
		if !ok {
			return nil, false
		}
		binders = append(binders, group...)
	}
	if len(binders) == 0 {
		p.errExpected("a typed parameter")
		return nil, false
	}
	if _, ok := p.expect(token.Arrow, "'->'"); !ok {
		return nil, false
	}
	cod, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.Expr{Kind: ast.ExprPi, Pos: p.posOf(kw), Binders: binders, Args: []*ast.Expr{cod}}, true
}
