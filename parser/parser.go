// Package parser builds a package ast tree from SynQ source text via a
// hand-written recursive-descent parser with Pratt-style precedence
// climbing for expressions, in the teacher's idiom of small, direct-style
// hand-rolled decoders rather than a parser-generator or combinator
// library.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"synq/ast"
	"synq/lexer"
	"synq/token"
)

// ParseError is the single fatal lexical or syntactic error a parse run
// can report. Semantic issues are collected separately as SemanticError
// and never abort the parse.
type ParseError struct {
	Line, Column   int
	Expected, Got  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: expected %s, got %s", e.Line, e.Column, e.Expected, e.Got)
}

// SemanticError is a non-fatal issue discovered while parsing (duplicate
// declarations, malformed annotations). A non-empty SemanticError list
// aborts codegen even though the AST is returned.
type SemanticError struct {
	Message      string
	Line, Column int
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// VersionRequirement is the `@version("…")` constraint extracted from the
// top of a source file, if present.
type VersionRequirement struct {
	Constraint string
	Present    bool
}

// Parser holds the state of one parse run.
type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token

	semErrs []*SemanticError
}

// Parse tokenizes and parses src, returning the extracted version
// requirement, the parsed source units, any accumulated semantic errors,
// and a fatal ParseError if one was encountered.
func Parse(src string) (VersionRequirement, []ast.SourceUnit, []*SemanticError, error) {
	p := &Parser{lex: lexer.New(src)}
	p.advance()
	p.advance()

	versionReq, err := p.parseOptionalVersion()
	if err != nil {
		return VersionRequirement{}, nil, nil, err
	}

	var units []ast.SourceUnit
	seenContracts := map[string]bool{}
	for p.cur.Kind != token.EOF {
		var anns []ast.Annotation
		for p.cur.Kind == token.At {
			a, err := p.parseAnnotation()
			if err != nil {
				return VersionRequirement{}, nil, nil, err
			}
			anns = append(anns, a)
		}
		switch p.cur.Kind {
		case token.Contract:
			c, err := p.parseContract(anns)
			if err != nil {
				return VersionRequirement{}, nil, nil, err
			}
			if seenContracts[c.Name] {
				p.addSemErr(c.Name+": duplicate contract name", p.cur.Line, p.cur.Column)
			}
			seenContracts[c.Name] = true
			units = append(units, c)
		case token.Struct:
			s, err := p.parseStruct()
			if err != nil {
				return VersionRequirement{}, nil, nil, err
			}
			units = append(units, s)
		case token.Event:
			e, err := p.parseEvent(anns)
			if err != nil {
				return VersionRequirement{}, nil, nil, err
			}
			units = append(units, e)
		default:
			return VersionRequirement{}, nil, nil, p.errorf("contract, struct, or event", p.cur)
		}
	}
	return versionReq, units, p.semErrs, nil
}

func (p *Parser) addSemErr(msg string, line, col int) {
	p.semErrs = append(p.semErrs, &SemanticError{Message: msg, Line: line, Column: col})
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.Next()
}

func (p *Parser) errorf(expected string, got token.Token) error {
	return &ParseError{Line: got.Line, Column: got.Column, Expected: expected, Got: got.Kind.String()}
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur.Kind != k {
		return token.Token{}, p.errorf(k.String(), p.cur)
	}
	t := p.cur
	p.advance()
	return t, nil
}

func (p *Parser) parseOptionalVersion() (VersionRequirement, error) {
	if p.cur.Kind != token.At {
		return VersionRequirement{}, nil
	}
	save := *p
	lexSave := *p.lex
	a, err := p.parseAnnotation()
	if err != nil {
		return VersionRequirement{}, err
	}
	if a.Name != "version" {
		*p = save
		*p.lex = lexSave
		return VersionRequirement{}, nil
	}
	if len(a.Args) != 1 {
		p.addSemErr("@version expects exactly one argument", save.cur.Line, save.cur.Column)
		return VersionRequirement{}, nil
	}
	lit, ok := a.Args[0].(*ast.StringLit)
	if !ok {
		p.addSemErr("@version argument must be a string literal", save.cur.Line, save.cur.Column)
		return VersionRequirement{}, nil
	}
	return VersionRequirement{Constraint: lit.Value, Present: true}, nil
}

func (p *Parser) parseAnnotation() (ast.Annotation, error) {
	if _, err := p.expect(token.At); err != nil {
		return ast.Annotation{}, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return ast.Annotation{}, err
	}
	ann := ast.Annotation{Name: name.Literal}
	if p.cur.Kind == token.LParen {
		p.advance()
		for p.cur.Kind != token.RParen {
			expr, err := p.parseExpression(precLowest)
			if err != nil {
				return ast.Annotation{}, err
			}
			ann.Args = append(ann.Args, expr)
			if p.cur.Kind == token.Comma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RParen); err != nil {
			return ast.Annotation{}, err
		}
	}
	return ann, nil
}

func (p *Parser) parseContract(anns []ast.Annotation) (*ast.Contract, error) {
	if _, err := p.expect(token.Contract); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	c := &ast.Contract{Name: name.Literal, Annotations: anns}
	hasConstructor := false
	for p.cur.Kind != token.RBrace {
		var partAnns []ast.Annotation
		for p.cur.Kind == token.At {
			a, err := p.parseAnnotation()
			if err != nil {
				return nil, err
			}
			partAnns = append(partAnns, a)
		}
		part, err := p.parseContractPart(partAnns)
		if err != nil {
			return nil, err
		}
		if _, ok := part.(*ast.Constructor); ok {
			if hasConstructor {
				p.addSemErr(name.Literal+": a contract declares at most one constructor", p.cur.Line, p.cur.Column)
			}
			hasConstructor = true
		}
		c.Parts = append(c.Parts, part)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	p.checkUniqueStateVars(c)
	return c, nil
}

func (p *Parser) checkUniqueStateVars(c *ast.Contract) {
	seen := map[string]bool{}
	for _, part := range c.Parts {
		if sv, ok := part.(*ast.StateVariable); ok {
			if seen[sv.Name] {
				p.addSemErr(c.Name+"."+sv.Name+": duplicate state variable name", 0, 0)
			}
			seen[sv.Name] = true
		}
	}
}

func (p *Parser) parseContractPart(anns []ast.Annotation) (ast.ContractPart, error) {
	isPublic := false
	if p.cur.Kind == token.Public {
		isPublic = true
		p.advance()
	}
	switch p.cur.Kind {
	case token.Constructor:
		return p.parseConstructor(anns)
	case token.Function:
		return p.parseFunction(anns, isPublic)
	case token.Event:
		e, err := p.parseEvent(anns)
		return e, err
	default:
		return p.parseStateVariable(anns, isPublic)
	}
}

func (p *Parser) parseStateVariable(anns []ast.Annotation, isPublic bool) (*ast.StateVariable, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == token.Assign {
		p.advance()
		if _, err := p.parseExpression(precLowest); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.StateVariable{Name: name.Literal, Type: ty, IsPublic: isPublic, Annotations: anns}, nil
}

func (p *Parser) parseConstructor(anns []ast.Annotation) (*ast.Constructor, error) {
	if _, err := p.expect(token.Constructor); err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Constructor{Params: params, Body: body, Annotations: anns}, nil
}

func (p *Parser) parseFunction(anns []ast.Annotation, isPublic bool) (*ast.Function, error) {
	if _, err := p.expect(token.Function); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	var ret ast.Type
	if p.cur.Kind == token.Minus && p.peek.Kind == token.Gt {
		p.advance()
		p.advance()
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Name: name.Literal, Params: params, Returns: ret, Body: body, IsPublic: isPublic, Annotations: anns}, nil
}

func (p *Parser) parseStruct() (*ast.Struct, error) {
	if _, err := p.expect(token.Struct); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	s := &ast.Struct{Name: name.Literal}
	for p.cur.Kind != token.RBrace {
		field, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, field)
		if p.cur.Kind == token.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) parseEvent(anns []ast.Annotation) (*ast.Event, error) {
	if _, err := p.expect(token.Event); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.Event{Name: name.Literal, Params: params, Annotations: anns}, nil
}

func (p *Parser) parseParamList() ([]ast.Parameter, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var params []ast.Parameter
	for p.cur.Kind != token.RParen {
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		if p.cur.Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseParam() (ast.Parameter, error) {
	indexed := false
	if p.cur.Kind == token.Indexed {
		indexed = true
		p.advance()
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return ast.Parameter{}, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return ast.Parameter{}, err
	}
	ty, err := p.parseType()
	if err != nil {
		return ast.Parameter{}, err
	}
	return ast.Parameter{Name: name.Literal, Type: ty, IsIndexed: indexed}, nil
}

var primitiveTypes = map[string]ast.Primitive{
	"Address": ast.TAddress,
	"uint8":   ast.TUInt8, "uint32": ast.TUInt32, "uint64": ast.TUInt64,
	"uint128": ast.TUInt128, "uint256": ast.TUInt256,
	"int8": ast.TInt8, "int32": ast.TInt32, "int64": ast.TInt64,
	"int128": ast.TInt128, "int256": ast.TInt256,
	"Bool": ast.TBool, "Bytes": ast.TBytes, "String": ast.TString,
	"MLDSAPublicKey": ast.TMLDSAPublicKey, "MLDSAKeyPair": ast.TMLDSAKeyPair, "MLDSASignature": ast.TMLDSASignature,
	"FNDSAPublicKey": ast.TFNDSAPublicKey, "FNDSAKeyPair": ast.TFNDSAKeyPair, "FNDSASignature": ast.TFNDSASignature,
	"SLHDSAPublicKey": ast.TSLHDSAPublicKey, "SLHDSAKeyPair": ast.TSLHDSAKeyPair, "SLHDSASignature": ast.TSLHDSASignature,
	"MLKEMPublicKey": ast.TMLKEMPublicKey, "MLKEMKeyPair": ast.TMLKEMKeyPair, "MLKEMCiphertext": ast.TMLKEMCiphertext,
}

func (p *Parser) parseType() (ast.Type, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	switch name.Literal {
	case "Array":
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		var n *uint32
		if p.cur.Kind == token.Comma {
			p.advance()
			lit, err := p.expect(token.IntLiteral)
			if err != nil {
				return nil, err
			}
			v, _ := strconv.ParseUint(lit.Literal, 10, 32)
			n32 := uint32(v)
			n = &n32
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.ArrayType{Elem: elem, N: n}, nil
	case "Mapping":
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Comma); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.MappingType{Key: key, Value: val}, nil
	}
	if prim, ok := primitiveTypes[name.Literal]; ok {
		return prim, nil
	}
	if p.cur.Kind == token.LParen {
		p.advance()
		var args []ast.Type
		for p.cur.Kind != token.RParen {
			a, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.cur.Kind == token.Comma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.GenericType{Name: name.Literal, Args: args}, nil
	}
	return &ast.StructType{Name: name.Literal}, nil
}

func (p *Parser) parseBlock() (ast.Block, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return ast.Block{}, err
	}
	var block ast.Block
	for p.cur.Kind != token.RBrace {
		stmt, err := p.parseStatement()
		if err != nil {
			return ast.Block{}, err
		}
		block.Statements = append(block.Statements, stmt)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return ast.Block{}, err
	}
	return block, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Kind {
	case token.Ident:
		if p.peek.Kind == token.Colon {
			return p.parseVariableDeclaration()
		}
		if p.peek.Kind == token.Assign {
			name := p.cur.Literal
			p.advance()
			p.advance()
			value, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semicolon); err != nil {
				return nil, err
			}
			return &ast.Assignment{Name: name, Value: value}, nil
		}
		expr, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		return &ast.ExpressionStatement{Expr: expr}, nil
	case token.Return:
		p.advance()
		if p.cur.Kind == token.Semicolon {
			p.advance()
			return &ast.ReturnStatement{}, nil
		}
		value, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		return &ast.ReturnStatement{Value: value}, nil
	case token.Require:
		p.advance()
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Comma); err != nil {
			return nil, err
		}
		msg, err := p.expect(token.StringLiteral)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		return &ast.RequireStatement{Cond: cond, Message: msg.Literal}, nil
	case token.Revert:
		p.advance()
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		msg, err := p.expect(token.StringLiteral)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		return &ast.RevertStatement{Message: msg.Literal}, nil
	case token.If:
		return p.parseIf()
	case token.For:
		return p.parseFor()
	case token.Emit:
		return p.parseEmit()
	case token.RequirePqc:
		return p.parseRequirePqc()
	default:
		expr, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		return &ast.ExpressionStatement{Expr: expr}, nil
	}
}

func (p *Parser) parseVariableDeclaration() (ast.Statement, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	var init ast.Expression
	if p.cur.Kind == token.Assign {
		p.advance()
		init, err = p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.VariableDeclaration{Name: name.Literal, Type: ty, Init: init}, nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	p.advance()
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStatement{Cond: cond, Then: then}
	if p.cur.Kind == token.Else {
		p.advance()
		elseBlock, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = &elseBlock
	}
	return stmt, nil
}

func (p *Parser) parseFor() (ast.Statement, error) {
	p.advance()
	variable, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.In); err != nil {
		return nil, err
	}
	low, err := p.parseExpression(precAdditive)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DotDot); err != nil {
		return nil, err
	}
	high, err := p.parseExpression(precAdditive)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStatement{Var: variable.Literal, Low: low, High: high, Body: body}, nil
}

func (p *Parser) parseEmit() (ast.Statement, error) {
	p.advance()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var args []ast.Expression
	for p.cur.Kind != token.RParen {
		a, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.cur.Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.EmitStatement{Event: name.Literal, Args: args}, nil
}

func (p *Parser) parseRequirePqc() (ast.Statement, error) {
	p.advance()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var fallback ast.Statement
	if p.cur.Kind == token.Else {
		p.advance()
		switch p.cur.Kind {
		case token.Revert:
			fallback, err = p.parseStatement2Revert()
		case token.Return:
			fallback, err = p.parseStatement2Return()
		default:
			return nil, p.errorf("revert or return", p.cur)
		}
		if err != nil {
			return nil, err
		}
	}
	return &ast.RequirePqcStatement{Body: body, Fallback: fallback}, nil
}

func (p *Parser) parseStatement2Revert() (ast.Statement, error) {
	p.advance()
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	msg, err := p.expect(token.StringLiteral)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.RevertStatement{Message: msg.Literal}, nil
}

func (p *Parser) parseStatement2Return() (ast.Statement, error) {
	p.advance()
	if p.cur.Kind == token.Semicolon {
		p.advance()
		return &ast.ReturnStatement{}, nil
	}
	value, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.ReturnStatement{Value: value}, nil
}

// Operator precedence levels, lowest to highest, matching §4.A: unary >
// `* / %` > `+ -` > shifts > comparisons > equality > logical-and >
// logical-or > ternary > assignment. Assignment is handled at the
// statement level, so it never appears in this table.
const (
	precLowest = iota
	precTernary
	precLogOr
	precLogAnd
	precEquality
	precComparison
	precShift
	precAdditive
	precMultiplicative
	precUnary
)

var binPrec = map[token.Kind]int{
	token.OrOr:    precLogOr,
	token.AndAnd:  precLogAnd,
	token.Eq:      precEquality,
	token.NotEq:   precEquality,
	token.Lt:      precComparison,
	token.LtEq:    precComparison,
	token.Gt:      precComparison,
	token.GtEq:    precComparison,
	token.Shl:     precShift,
	token.Shr:     precShift,
	token.Plus:    precAdditive,
	token.Minus:   precAdditive,
	token.Star:    precMultiplicative,
	token.Slash:   precMultiplicative,
	token.Percent: precMultiplicative,
}

var binOps = map[token.Kind]ast.BinaryOp{
	token.Plus: ast.Add, token.Minus: ast.Sub, token.Star: ast.Mul,
	token.Slash: ast.Div, token.Percent: ast.Mod,
	token.Eq: ast.CmpEq, token.NotEq: ast.CmpNe,
	token.Lt: ast.CmpLt, token.LtEq: ast.CmpLe, token.Gt: ast.CmpGt, token.GtEq: ast.CmpGe,
	token.AndAnd: ast.LogAnd, token.OrOr: ast.LogOr,
	token.Shl: ast.Shl, token.Shr: ast.Shr,
}

func (p *Parser) parseExpression(minPrec int) (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.cur.Kind]
		if !ok || prec < minPrec {
			break
		}
		op := binOps[p.cur.Kind]
		p.advance()
		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	if minPrec <= precTernary && p.cur.Kind == token.Question {
		p.advance()
		then, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		elseExpr, err := p.parseExpression(precTernary)
		if err != nil {
			return nil, err
		}
		left = &ast.TernaryExpr{Cond: left, Then: then, Else: elseExpr}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	switch p.cur.Kind {
	case token.Not:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Not, Operand: operand}, nil
	case token.Minus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.Neg, Operand: operand}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case token.Dot:
			p.advance()
			field, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{Base: expr, Field: field.Literal}
		case token.LBracket:
			p.advance()
			idx, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Base: expr, Index: idx}
		case token.PlusPlus:
			p.advance()
			expr = &ast.UnaryExpr{Op: ast.Inc, Operand: expr}
		case token.MinusMinus:
			p.advance()
			expr = &ast.UnaryExpr{Op: ast.Dec, Operand: expr}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	switch p.cur.Kind {
	case token.IntLiteral:
		v, _ := strconv.ParseUint(p.cur.Literal, 10, 64)
		p.advance()
		return &ast.NumberLit{Value: v}, nil
	case token.HexLiteral:
		digits := strings.TrimPrefix(strings.TrimPrefix(p.cur.Literal, "0x"), "0X")
		p.advance()
		if len(digits)%2 == 0 {
			b, err := hexDecode(digits)
			if err == nil {
				return &ast.BytesLit{Value: b}, nil
			}
		}
		v, _ := strconv.ParseUint(digits, 16, 64)
		return &ast.NumberLit{Value: v}, nil
	case token.AddressLiteral:
		lit := p.cur.Literal
		p.advance()
		return &ast.AddressLit{Value: lit}, nil
	case token.StringLiteral:
		lit := p.cur.Literal
		p.advance()
		return &ast.StringLit{Value: lit}, nil
	case token.True:
		p.advance()
		return &ast.BoolLit{Value: true}, nil
	case token.False:
		p.advance()
		return &ast.BoolLit{Value: false}, nil
	case token.Ident:
		name := p.cur.Literal
		p.advance()
		if p.cur.Kind == token.LParen {
			p.advance()
			var args []ast.Expression
			for p.cur.Kind != token.RParen {
				a, err := p.parseExpression(precLowest)
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.cur.Kind == token.Comma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			return &ast.CallExpr{Name: name, Args: args}, nil
		}
		return &ast.Identifier{Name: name}, nil
	case token.LParen:
		p.advance()
		expr, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.errorf("expression", p.cur)
	}
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexDigitValue(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigitValue(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, nil
}

func hexDigitValue(ch byte) (int, error) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), nil
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10, nil
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", ch)
	}
}
