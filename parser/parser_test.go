package parser_test

import (
	"testing"

	"synq/ast"
	"synq/parser"
)

func mustParse(t *testing.T, src string) (parser.VersionRequirement, []ast.SourceUnit) {
	t.Helper()
	vreq, units, semErrs, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(semErrs) > 0 {
		t.Fatalf("unexpected semantic errors: %v", semErrs)
	}
	return vreq, units
}

func TestParseEmptyContract(t *testing.T) {
	_, units := mustParse(t, `contract C { }`)
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	c, ok := units[0].(*ast.Contract)
	if !ok || c.Name != "C" {
		t.Fatalf("expected contract C, got %+v", units[0])
	}
}

func TestParseVersionRequirement(t *testing.T) {
	vreq, _ := mustParse(t, `@version("1.0") contract C { }`)
	if !vreq.Present || vreq.Constraint != "1.0" {
		t.Fatalf("expected version requirement 1.0, got %+v", vreq)
	}
}

func TestParseNoVersionRequirement(t *testing.T) {
	vreq, _ := mustParse(t, `contract C { }`)
	if vreq.Present {
		t.Fatalf("expected no version requirement, got %+v", vreq)
	}
}

func TestParseStateVariableAndConstructor(t *testing.T) {
	_, units := mustParse(t, `contract C {
		public balance: uint64;
		constructor(owner: Address) { }
	}`)
	c := units[0].(*ast.Contract)
	if len(c.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(c.Parts))
	}
	sv, ok := c.Parts[0].(*ast.StateVariable)
	if !ok || sv.Name != "balance" || !sv.IsPublic || sv.Type != ast.TUInt64 {
		t.Fatalf("unexpected state variable: %+v", c.Parts[0])
	}
	ctor, ok := c.Parts[1].(*ast.Constructor)
	if !ok || len(ctor.Params) != 1 || ctor.Params[0].Name != "owner" {
		t.Fatalf("unexpected constructor: %+v", c.Parts[1])
	}
}

func TestParseFunctionWithReturnType(t *testing.T) {
	_, units := mustParse(t, `contract C {
		function double(x: uint64) -> uint64 {
			return x * 2;
		}
	}`)
	c := units[0].(*ast.Contract)
	fn, ok := c.Parts[0].(*ast.Function)
	if !ok || fn.Name != "double" || fn.Returns != ast.TUInt64 {
		t.Fatalf("unexpected function: %+v", c.Parts[0])
	}
}

func TestParseStruct(t *testing.T) {
	_, units := mustParse(t, `struct Point { x: uint64, y: uint64 }`)
	s, ok := units[0].(*ast.Struct)
	if !ok || s.Name != "Point" || len(s.Fields) != 2 {
		t.Fatalf("unexpected struct: %+v", units[0])
	}
}

func TestParseEvent(t *testing.T) {
	_, units := mustParse(t, `event Transfer(indexed from: Address, to: Address, amount: uint64);`)
	e, ok := units[0].(*ast.Event)
	if !ok || e.Name != "Transfer" || len(e.Params) != 3 || !e.Params[0].IsIndexed {
		t.Fatalf("unexpected event: %+v", units[0])
	}
}

func TestParseTypes(t *testing.T) {
	_, units := mustParse(t, `contract C {
		a: Array(uint64, 4);
		b: Array(uint64);
		m: Mapping(Address, uint64);
		pk: MLDSAPublicKey;
		s: Widget;
	}`)
	c := units[0].(*ast.Contract)

	arr, ok := c.Parts[0].(*ast.StateVariable).Type.(*ast.ArrayType)
	if !ok || arr.N == nil || *arr.N != 4 || arr.Elem != ast.TUInt64 {
		t.Fatalf("unexpected array type: %+v", c.Parts[0])
	}

	dyn, ok := c.Parts[1].(*ast.StateVariable).Type.(*ast.ArrayType)
	if !ok || dyn.N != nil {
		t.Fatalf("unexpected dynamic array type: %+v", c.Parts[1])
	}

	mp, ok := c.Parts[2].(*ast.StateVariable).Type.(*ast.MappingType)
	if !ok || mp.Key != ast.TAddress || mp.Value != ast.TUInt64 {
		t.Fatalf("unexpected mapping type: %+v", c.Parts[2])
	}

	if c.Parts[3].(*ast.StateVariable).Type != ast.TMLDSAPublicKey {
		t.Fatalf("unexpected PQC type: %+v", c.Parts[3])
	}

	st, ok := c.Parts[4].(*ast.StateVariable).Type.(*ast.StructType)
	if !ok || st.Name != "Widget" {
		t.Fatalf("unexpected struct-name type: %+v", c.Parts[4])
	}
}

func TestParseStatements(t *testing.T) {
	_, units := mustParse(t, `contract C {
		function f() {
			total: uint64 = 0;
			total = total + 1;
			emit Done(total);
			if (total == 1) {
				return total;
			} else {
				revert("never");
			}
			for i in 0..3 {
				total = total + i;
			}
			require(total > 0, "must be positive");
			total++;
		}
	}`)
	c := units[0].(*ast.Contract)
	fn := c.Parts[0].(*ast.Function)
	stmts := fn.Body.Statements
	if len(stmts) != 7 {
		t.Fatalf("expected 7 statements, got %d: %+v", len(stmts), stmts)
	}
	if _, ok := stmts[0].(*ast.VariableDeclaration); !ok {
		t.Fatalf("stmt 0: expected VariableDeclaration, got %T", stmts[0])
	}
	if _, ok := stmts[1].(*ast.Assignment); !ok {
		t.Fatalf("stmt 1: expected Assignment, got %T", stmts[1])
	}
	if _, ok := stmts[2].(*ast.EmitStatement); !ok {
		t.Fatalf("stmt 2: expected EmitStatement, got %T", stmts[2])
	}
	ifStmt, ok := stmts[3].(*ast.IfStatement)
	if !ok || ifStmt.Else == nil {
		t.Fatalf("stmt 3: expected IfStatement with else, got %+v", stmts[3])
	}
	if _, ok := ifStmt.Else.Statements[0].(*ast.RevertStatement); !ok {
		t.Fatalf("expected RevertStatement in else branch, got %T", ifStmt.Else.Statements[0])
	}
	if _, ok := stmts[4].(*ast.ForStatement); !ok {
		t.Fatalf("stmt 4: expected ForStatement, got %T", stmts[4])
	}
	if _, ok := stmts[5].(*ast.RequireStatement); !ok {
		t.Fatalf("stmt 5: expected RequireStatement, got %T", stmts[5])
	}
	exprStmt, ok := stmts[6].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("stmt 6: expected ExpressionStatement, got %T", stmts[6])
	}
	if u, ok := exprStmt.Expr.(*ast.UnaryExpr); !ok || u.Op != ast.Inc {
		t.Fatalf("expected post-increment, got %+v", exprStmt.Expr)
	}
}

func TestParseRequirePqcWithRevertFallback(t *testing.T) {
	_, units := mustParse(t, `contract C {
		function f() {
			require_pqc {
				verify_mldsa44(pk, msg, sig);
			} else revert("bad signature");
		}
	}`)
	c := units[0].(*ast.Contract)
	fn := c.Parts[0].(*ast.Function)
	rp, ok := fn.Body.Statements[0].(*ast.RequirePqcStatement)
	if !ok {
		t.Fatalf("expected RequirePqcStatement, got %T", fn.Body.Statements[0])
	}
	if len(rp.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(rp.Body.Statements))
	}
	if _, ok := rp.Fallback.(*ast.RevertStatement); !ok {
		t.Fatalf("expected Revert fallback, got %T", rp.Fallback)
	}
}

func TestParseRequirePqcWithReturnFallback(t *testing.T) {
	_, units := mustParse(t, `contract C {
		function f() {
			require_pqc {
				verify_mldsa44(pk, msg, sig);
			} else return 0;
		}
	}`)
	c := units[0].(*ast.Contract)
	fn := c.Parts[0].(*ast.Function)
	rp := fn.Body.Statements[0].(*ast.RequirePqcStatement)
	if _, ok := rp.Fallback.(*ast.ReturnStatement); !ok {
		t.Fatalf("expected Return fallback, got %T", rp.Fallback)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want func(e ast.Expression) bool
	}{
		{
			"multiplicative-binds-tighter-than-additive",
			`1 + 2 * 3;`,
			func(e ast.Expression) bool {
				b := e.(*ast.BinaryExpr)
				if b.Op != ast.Add {
					return false
				}
				r, ok := b.Right.(*ast.BinaryExpr)
				return ok && r.Op == ast.Mul
			},
		},
		{
			"comparison-binds-tighter-than-equality",
			`a < b == c;`,
			func(e ast.Expression) bool {
				b := e.(*ast.BinaryExpr)
				if b.Op != ast.CmpEq {
					return false
				}
				l, ok := b.Left.(*ast.BinaryExpr)
				return ok && l.Op == ast.CmpLt
			},
		},
		{
			"equality-binds-tighter-than-logical-and",
			`a == b && c == d;`,
			func(e ast.Expression) bool {
				b := e.(*ast.BinaryExpr)
				if b.Op != ast.LogAnd {
					return false
				}
				_, lok := b.Left.(*ast.BinaryExpr)
				_, rok := b.Right.(*ast.BinaryExpr)
				return lok && rok
			},
		},
		{
			"logical-and-binds-tighter-than-logical-or",
			`a && b || c;`,
			func(e ast.Expression) bool {
				b := e.(*ast.BinaryExpr)
				if b.Op != ast.LogOr {
					return false
				}
				l, ok := b.Left.(*ast.BinaryExpr)
				return ok && l.Op == ast.LogAnd
			},
		},
		{
			"logical-or-binds-tighter-than-ternary",
			`a || b ? c : d;`,
			func(e ast.Expression) bool {
				tern, ok := e.(*ast.TernaryExpr)
				if !ok {
					return false
				}
				cond, ok := tern.Cond.(*ast.BinaryExpr)
				return ok && cond.Op == ast.LogOr
			},
		},
		{
			"unary-binds-tightest",
			`-a * b;`,
			func(e ast.Expression) bool {
				b := e.(*ast.BinaryExpr)
				if b.Op != ast.Mul {
					return false
				}
				_, ok := b.Left.(*ast.UnaryExpr)
				return ok
			},
		},
		{
			"shift-binds-tighter-than-comparison",
			`a << 1 < b;`,
			func(e ast.Expression) bool {
				b := e.(*ast.BinaryExpr)
				if b.Op != ast.CmpLt {
					return false
				}
				l, ok := b.Left.(*ast.BinaryExpr)
				return ok && l.Op == ast.Shl
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := `contract C { function f() { ` + tc.src + ` } }`
			_, units := mustParse(t, src)
			c := units[0].(*ast.Contract)
			fn := c.Parts[0].(*ast.Function)
			exprStmt := fn.Body.Statements[0].(*ast.ExpressionStatement)
			if !tc.want(exprStmt.Expr) {
				t.Fatalf("unexpected expression shape: %+v", exprStmt.Expr)
			}
		})
	}
}

func TestParseLiterals(t *testing.T) {
	_, units := mustParse(t, `contract C {
		function f() {
			1;
			0xa;
			0xdeadbeef;
			0x0000000000000000000000000000000000000001;
			"hello";
			true;
			false;
		}
	}`)
	c := units[0].(*ast.Contract)
	fn := c.Parts[0].(*ast.Function)
	stmts := fn.Body.Statements

	if n, ok := stmts[0].(*ast.ExpressionStatement).Expr.(*ast.NumberLit); !ok || n.Value != 1 {
		t.Fatalf("unexpected int literal: %+v", stmts[0])
	}
	if n, ok := stmts[1].(*ast.ExpressionStatement).Expr.(*ast.NumberLit); !ok || n.Value != 0xa {
		t.Fatalf("unexpected odd-length hex literal (should be numeric): %+v", stmts[1])
	}
	if b, ok := stmts[2].(*ast.ExpressionStatement).Expr.(*ast.BytesLit); !ok || len(b.Value) != 4 {
		t.Fatalf("unexpected even-length hex literal (should be bytes): %+v", stmts[2])
	}
	if _, ok := stmts[3].(*ast.ExpressionStatement).Expr.(*ast.AddressLit); !ok {
		t.Fatalf("unexpected 40-hex-digit literal (should be an address): %+v", stmts[3])
	}
	if s, ok := stmts[4].(*ast.ExpressionStatement).Expr.(*ast.StringLit); !ok || s.Value != "hello" {
		t.Fatalf("unexpected string literal: %+v", stmts[4])
	}
	if b, ok := stmts[5].(*ast.ExpressionStatement).Expr.(*ast.BoolLit); !ok || !b.Value {
		t.Fatalf("unexpected true literal: %+v", stmts[5])
	}
	if b, ok := stmts[6].(*ast.ExpressionStatement).Expr.(*ast.BoolLit); !ok || b.Value {
		t.Fatalf("unexpected false literal: %+v", stmts[6])
	}
}

func TestParseCallExpression(t *testing.T) {
	_, units := mustParse(t, `contract C { function f() { verify_mldsa44(pk, msg, sig); } }`)
	c := units[0].(*ast.Contract)
	fn := c.Parts[0].(*ast.Function)
	exprStmt := fn.Body.Statements[0].(*ast.ExpressionStatement)
	call, ok := exprStmt.Expr.(*ast.CallExpr)
	if !ok || call.Name != "verify_mldsa44" || len(call.Args) != 3 {
		t.Fatalf("unexpected call expression: %+v", exprStmt.Expr)
	}
}

func TestParseMemberAndIndexExpressions(t *testing.T) {
	_, units := mustParse(t, `contract C { function f() { a.b; a[0]; } }`)
	c := units[0].(*ast.Contract)
	fn := c.Parts[0].(*ast.Function)
	if _, ok := fn.Body.Statements[0].(*ast.ExpressionStatement).Expr.(*ast.MemberExpr); !ok {
		t.Fatalf("expected MemberExpr, got %+v", fn.Body.Statements[0])
	}
	if _, ok := fn.Body.Statements[1].(*ast.ExpressionStatement).Expr.(*ast.IndexExpr); !ok {
		t.Fatalf("expected IndexExpr, got %+v", fn.Body.Statements[1])
	}
}

func TestParseErrorOnMalformedInput(t *testing.T) {
	_, _, _, err := parser.Parse(`contract C { function f( }`)
	if err == nil {
		t.Fatal("expected a ParseError for malformed input")
	}
	if _, ok := err.(*parser.ParseError); !ok {
		t.Fatalf("expected *parser.ParseError, got %T", err)
	}
}

func TestParseErrorOnUnknownTopLevelKeyword(t *testing.T) {
	_, _, _, err := parser.Parse(`garbage C { }`)
	if err == nil {
		t.Fatal("expected a ParseError for an unrecognized top-level unit")
	}
}

func TestSemanticErrorDuplicateContractName(t *testing.T) {
	_, _, semErrs, err := parser.Parse(`contract C { } contract C { }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(semErrs) != 1 {
		t.Fatalf("expected 1 semantic error, got %d: %v", len(semErrs), semErrs)
	}
}

func TestSemanticErrorDuplicateConstructor(t *testing.T) {
	_, _, semErrs, err := parser.Parse(`contract C {
		constructor() { }
		constructor() { }
	}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(semErrs) != 1 {
		t.Fatalf("expected 1 semantic error, got %d: %v", len(semErrs), semErrs)
	}
}

func TestSemanticErrorDuplicateStateVariable(t *testing.T) {
	_, _, semErrs, err := parser.Parse(`contract C {
		balance: uint64;
		balance: uint64;
	}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(semErrs) != 1 {
		t.Fatalf("expected 1 semantic error, got %d: %v", len(semErrs), semErrs)
	}
}
