package parser

import (
	"arendls/internal/ast"
	"arendls/internal/token"
)

// parseDecl parses a \func, \lemma or \data declaration with its where-block.
func (p *Parser) parseDecl() (*ast.Group, bool) {
	kw := p.advance()
	name, ok := p.expect(token.Ident, "a declaration name")
	if !ok {
		return nil, false
	}
	d := &ast.Decl{Name: name.Text, Pos: p.posOf(name)}
	switch kw.Kind {
	case token.KwLemma:
		d.Kind = ast.DeclLemma
	case token.KwData:
		d.Kind = ast.DeclData
	default:
		d.Kind = ast.DeclFunc
	}

	if d.Params, ok = p.parseParams(); !ok {
		return nil, false
	}

	if d.Kind == ast.DeclData {
		if !p.parseConstructors(d) {
			return nil, false
		}
	} else {
		if p.at(token.Colon) {
			p.advance()
			if d.Result, ok = p.parseExpr(); !ok {
				return nil, false
			}
		}
		if _, ok = p.expect(token.FatArrow, "'=>'"); !ok {
			return nil, false
		}
		if d.Body, ok = p.parseExpr(); !ok {
			return nil, false
		}
	}

	g := &ast.Group{Decl: d, Location: p.loc}
	if p.at(token.KwWhere) {
		if g.Subgroups, ok = p.parseWhere(); !ok {
			return nil, false
		}
	}
	d.EndLine = p.prevLine
	return g, true
}

// parseWhere parses `\where { decl* }` or `\where decl`.
func (p *Parser) parseWhere() ([]*ast.Group, bool) {
	p.advance()
	if !p.at(token.LBrace) {
		if !p.atOr(token.KwFunc, token.KwLemma, token.KwData) {
			p.errExpected("a declaration or '{' after \\where")
			return nil, false
		}
		g, ok := p.parseDecl()
		if !ok {
			return nil, false
		}
		return []*ast.Group{g}, true
	}
	p.advance()
	var out []*ast.Group
	for !p.at(token.RBrace) {
		if !p.atOr(token.KwFunc, token.KwLemma, token.KwData) {
			p.errExpected("a declaration or '}'")
			return nil, false
		}
		g, ok := p.parseDecl()
		if !ok {
			return nil, false
		}
		out = append(out, g)
	}
	p.advance()
	return out, true
}

// parseParams parses declaration parameters: bare names, (x y : T) and {x : T}.
func (p *Parser) parseParams() ([]*ast.Binding, bool) {
	var out []*ast.Binding
	for {
		switch p.peek().Kind {
		case token.Ident:
			tok := p.advance()
			out = append(out, &ast.Binding{Name: tok.Text, Pos: p.posOf(tok)})
		case token.LParen, token.LBrace:
			group, ok := p.parseTypedBinders()
			if !ok {
				return nil, false
			}
			out = append(out, group...)
		default:
			return out, true
		}
	}
}

// parseTypedBinders parses one `(x y : T)` or `{x y : T}` group. Every name
// in the group shares the same type expression.
func (p *Parser) parseTypedBinders() ([]*ast.Binding, bool) {
	open := p.advance()
	closing := token.RParen
	if open.Kind == token.LBrace {
		closing = token.RBrace
	}
	var out []*ast.Binding
	for p.at(token.Ident) {
		tok := p.advance()
		out = append(out, &ast.Binding{Name: tok.Text, Pos: p.posOf(tok), Implicit: open.Kind == token.LBrace})
	}
	if len(out) == 0 {
		p.errExpected("a parameter name")
		return nil, false
	}
	if _, ok := p.expect(token.Colon, "':'"); !ok {
		return nil, false
	}
	typ, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	if _, ok := p.expect(closing, "'"+closing.String()+"'"); !ok {
		return nil, false
	}
	for _, b := range out {
		b.Type = typ
	}
	return out, true
}

// atTypedBinders reports whether a '(' starts a named parameter group rather
// than a parenthesized type.
func (p *Parser) atTypedBinders() bool {
	if !p.atOr(token.LParen, token.LBrace) {
		return false
	}
	i := 1
	for p.peekAt(i).Kind == token.Ident {
		i++
	}
	return i > 1 && p.peekAt(i).Kind == token.Colon
}

// parseConstructors parses `| con args` alternatives of a data declaration.
func (p *Parser) parseConstructors(d *ast.Decl) bool {
	for p.at(token.Pipe) {
		p.advance()
		name, ok := p.expect(token.Ident, "a constructor name")
		if !ok {
			return false
		}
		c := &ast.Decl{Kind: ast.DeclConstructor, Name: name.Text, Pos: p.posOf(name)}
		for {
			if p.atTypedBinders() {
				group, ok := p.parseTypedBinders()
				if !ok {
					return false
				}
				c.Params = append(c.Params, group...)
				continue
			}
			if !p.atArgument() {
				break
			}
			typ, ok := p.parseAtom()
			if !ok {
				return false
			}
			c.Params = append(c.Params, &ast.Binding{Pos: typ.Pos, Type: typ})
		}
		c.EndLine = p.prevLine
		d.Constructors = append(d.Constructors, c)
	}
	return true
}
