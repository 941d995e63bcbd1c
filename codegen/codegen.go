// Package codegen lowers a parsed SynQ AST into the binary bytecode image
// package vm executes, following the lowering rules for expressions,
// control flow, require/revert, require_pqc guards, and PQC built-in
// calls.
package codegen

import (
	"encoding/binary"
	"fmt"
	"strings"

	"synq/ast"
	"synq/crypto/pqc"
	"synq/image"
	"synq/vm"
)

// CodegenError reports an unresolvable symbol or unsupported construct
// encountered while lowering the AST.
type CodegenError struct {
	Kind    string
	Context string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("codegen error (%s): %s", e.Kind, e.Context)
}

func errf(kind, format string, args ...any) error {
	return &CodegenError{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

type funcInfo struct {
	offset int
	params []ast.Parameter
}

// generator holds the whole-program state shared across every function
// being lowered: the growing code buffer, the data section, and the
// tables needed to resolve forward references.
type generator struct {
	code []byte
	data []byte

	stateAddrs   map[string]uint32
	nextAddr     uint32
	funcs        map[string]*funcInfo
	callPatches  []callPatch
	dataLiterals map[string]uint32 // literal text -> data offset, deduplicated
}

type callPatch struct {
	pos  int // code offset of the 4-byte operand to patch
	name string
}

// Generate lowers a parsed set of source units into a binary image. The
// constructor of the first contract is the entry point if present;
// otherwise the first declared function is, per the lowering rules.
func Generate(units []ast.SourceUnit) ([]byte, error) {
	var contract *ast.Contract
	for _, u := range units {
		if c, ok := u.(*ast.Contract); ok {
			contract = c
			break
		}
	}
	if contract == nil {
		return nil, errf("no-contract", "source contains no contract declaration")
	}

	g := &generator{
		stateAddrs:   map[string]uint32{},
		funcs:        map[string]*funcInfo{},
		dataLiterals: map[string]uint32{},
	}

	for _, part := range contract.Parts {
		if sv, ok := part.(*ast.StateVariable); ok {
			g.stateAddrs[sv.Name] = g.nextAddr
			g.nextAddr++
		}
	}

	var entry *ast.Function
	var constructor *ast.Constructor
	var functions []*ast.Function
	for _, part := range contract.Parts {
		switch p := part.(type) {
		case *ast.Constructor:
			constructor = p
		case *ast.Function:
			functions = append(functions, p)
		}
	}
	if len(functions) == 0 && constructor == nil {
		return nil, errf("no-entry", "contract %s declares no constructor or function", contract.Name)
	}
	if len(functions) > 0 {
		entry = functions[0]
	}

	// Reserve funcInfo entries up front so forward calls between sibling
	// functions resolve without a second pass over the AST.
	if constructor != nil {
		g.funcs["constructor"] = &funcInfo{params: constructor.Params}
	}
	for _, fn := range functions {
		g.funcs[fn.Name] = &funcInfo{params: fn.Params}
	}

	compileOrder := []struct {
		name   string
		params []ast.Parameter
		body   ast.Block
	}{}
	if constructor != nil {
		compileOrder = append(compileOrder, struct {
			name   string
			params []ast.Parameter
			body   ast.Block
		}{"constructor", constructor.Params, constructor.Body})
	}
	for _, fn := range functions {
		if constructor == nil && fn == entry {
			continue // compiled first, below, so it starts at offset 0
		}
		compileOrder = append(compileOrder, struct {
			name   string
			params []ast.Parameter
			body   ast.Block
		}{fn.Name, fn.Params, fn.Body})
	}
	if constructor == nil {
		compileOrder = append([]struct {
			name   string
			params []ast.Parameter
			body   ast.Block
		}{{entry.Name, entry.Params, entry.Body}}, compileOrder...)
	}

	for _, item := range compileOrder {
		info := g.funcs[item.name]
		info.offset = len(g.code)
		if err := g.compileFunctionBody(item.name, item.params, item.body); err != nil {
			return nil, err
		}
	}

	for _, patch := range g.callPatches {
		info, ok := g.funcs[patch.name]
		if !ok {
			return nil, errf("unresolved-call", "call to undeclared function %q", patch.name)
		}
		binary.LittleEndian.PutUint32(g.code[patch.pos:patch.pos+4], uint32(info.offset))
	}

	return image.Encode(image.Image{Code: g.code, Data: g.data}), nil
}

// fnGen lowers one function body: it shares the whole-program generator
// but tracks its own local variable addresses.
type fnGen struct {
	g      *generator
	locals map[string]uint32
}

func (g *generator) compileFunctionBody(name string, params []ast.Parameter, body ast.Block) error {
	fg := &fnGen{g: g, locals: map[string]uint32{}}
	// Parameters arrive on the operand stack in declared order, so the
	// last-declared parameter is on top; pop in reverse to store each
	// into its reserved address.
	for i := len(params) - 1; i >= 0; i-- {
		addr := g.nextAddr
		g.nextAddr++
		fg.locals[params[i].Name] = addr
		g.emit(byte(vm.Store))
		g.emitU32(addr)
	}
	for _, stmt := range body.Statements {
		if err := fg.lowerStatement(stmt); err != nil {
			return err
		}
	}
	g.emit(byte(vm.Return))
	return nil
}

func (g *generator) emit(b byte)             { g.code = append(g.code, b) }
func (g *generator) emitBytes(b []byte)      { g.code = append(g.code, b...) }
func (g *generator) emitU32(v uint32)        { g.emitBytes(le32(v)) }
func (g *generator) emitI32(v int32)         { g.emitU32(uint32(v)) }
func (g *generator) pos() int                { return len(g.code) }
func (g *generator) patchU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(g.code[pos:pos+4], v)
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// emitJumpPlaceholder emits op followed by a 4-byte placeholder operand
// and returns its code offset for later patching.
func (g *generator) emitJumpPlaceholder(op vm.OpCode) int {
	g.emit(byte(op))
	pos := g.pos()
	g.emitU32(0)
	return pos
}

// internString appends s to the data section (deduplicated) and returns
// its (offset, length).
func (g *generator) internString(s string) (uint32, uint32) {
	if off, ok := g.dataLiterals[s]; ok {
		return off, uint32(len(s))
	}
	off := uint32(len(g.data))
	g.data = append(g.data, s...)
	g.dataLiterals[s] = off
	return off, uint32(len(s))
}

// RevertAddress is the sentinel memory address require/revert lowering
// stores the abort message into, mirroring the convention the VM exposes
// via VM.RevertMessage.
const RevertAddress = vm.RevertAddress

func (fg *fnGen) lowerStatement(stmt ast.Statement) error {
	g := fg.g
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := fg.lowerExpression(s.Expr); err != nil {
			return err
		}
		g.emit(byte(vm.Pop))
		return nil
	case *ast.VariableDeclaration:
		addr := g.nextAddr
		g.nextAddr++
		fg.locals[s.Name] = addr
		if s.Init != nil {
			if err := fg.lowerExpression(s.Init); err != nil {
				return err
			}
			g.emit(byte(vm.Store))
			g.emitU32(addr)
		}
		return nil
	case *ast.Assignment:
		addr, ok := fg.resolve(s.Name)
		if !ok {
			return errf("unresolved-symbol", "assignment to undeclared name %q", s.Name)
		}
		if err := fg.lowerExpression(s.Value); err != nil {
			return err
		}
		g.emit(byte(vm.Store))
		g.emitU32(addr)
		return nil
	case *ast.ReturnStatement:
		if s.Value != nil {
			if err := fg.lowerExpression(s.Value); err != nil {
				return err
			}
		}
		g.emit(byte(vm.Return))
		return nil
	case *ast.RequireStatement:
		return fg.lowerRequire(s)
	case *ast.RevertStatement:
		fg.emitRevert(s.Message)
		return nil
	case *ast.IfStatement:
		return fg.lowerIf(s)
	case *ast.ForStatement:
		return fg.lowerFor(s)
	case *ast.EmitStatement:
		return fg.lowerEmit(s)
	case *ast.RequirePqcStatement:
		return fg.lowerRequirePqc(s)
	default:
		return errf("unsupported-statement", "unsupported statement node %T", stmt)
	}
}

func (fg *fnGen) resolve(name string) (uint32, bool) {
	if addr, ok := fg.locals[name]; ok {
		return addr, true
	}
	addr, ok := fg.g.stateAddrs[name]
	return addr, ok
}

func (fg *fnGen) emitRevert(message string) {
	g := fg.g
	off, length := g.internString(message)
	g.emit(byte(vm.LoadImm))
	g.emitU32(length)
	// The data section backs the literal bytes; codegen inlines them
	// directly into the code stream's LoadImm operand rather than
	// indexing back into data, keeping the VM's LoadImm semantics
	// self-contained (length then raw bytes) per §4.D.
	g.emitBytes(g.data[off : off+length])
	g.emit(byte(vm.Store))
	g.emitU32(RevertAddress)
	g.emit(byte(vm.Halt))
}

func (fg *fnGen) lowerRequire(s *ast.RequireStatement) error {
	g := fg.g
	if err := fg.lowerExpression(s.Cond); err != nil {
		return err
	}
	jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
	fg.emitRevert(s.Message)
	continueOffset := g.pos()
	g.patchU32(jumpIfTruePos, uint32(continueOffset))
	return nil
}

func (fg *fnGen) lowerIf(s *ast.IfStatement) error {
	g := fg.g
	if err := fg.lowerExpression(s.Cond); err != nil {
		return err
	}
	jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
	// false path falls through here
	var elseJumpDonePos int
	hasElse := s.Else != nil
	if hasElse {
		for _, st := range s.Else.Statements {
			if err := fg.lowerStatement(st); err != nil {
				return err
			}
		}
	}
	jumpPastThenPos := g.emitJumpPlaceholder(vm.Jump)
	elseJumpDonePos = jumpPastThenPos
	thenOffset := g.pos()
	g.patchU32(jumpIfTruePos, uint32(thenOffset))
	for _, st := range s.Then.Statements {
		if err := fg.lowerStatement(st); err != nil {
			return err
		}
	}
	doneOffset := g.pos()
	g.patchU32(elseJumpDonePos, uint32(doneOffset))
	return nil
}

func (fg *fnGen) lowerFor(s *ast.ForStatement) error {
	g := fg.g
	addr := g.nextAddr
	g.nextAddr++
	fg.locals[s.Var] = addr

	if err := fg.lowerExpression(s.Low); err != nil {
		return err
	}
	g.emit(byte(vm.Store))
	g.emitU32(addr)

	headerOffset := g.pos()
	g.emit(byte(vm.Load))
	g.emitU32(addr)
	if err := fg.lowerExpression(s.High); err != nil {
		return err
	}
	g.emit(byte(vm.Lt))
	jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
	jumpExitPos := g.emitJumpPlaceholder(vm.Jump)
	bodyOffset := g.pos()
	g.patchU32(jumpIfTruePos, uint32(bodyOffset))

	for _, st := range s.Body.Statements {
		if err := fg.lowerStatement(st); err != nil {
			return err
		}
	}
	g.emit(byte(vm.Load))
	g.emitU32(addr)
	g.emit(byte(vm.Push))
	g.emitI32(1)
	g.emit(byte(vm.Add))
	g.emit(byte(vm.Store))
	g.emitU32(addr)
	jumpHeaderPos := g.emitJumpPlaceholder(vm.Jump)
	g.patchU32(jumpHeaderPos, uint32(headerOffset))

	exitOffset := g.pos()
	g.patchU32(jumpExitPos, uint32(exitOffset))
	return nil
}

func (fg *fnGen) lowerEmit(s *ast.EmitStatement) error {
	g := fg.g
	// String and byte literal arguments are packed into the data section
	// in declared order; other arguments are not recorded. The
	// VM-observable effect is limited to a Print of the event tag, per
	// the lowering rule.
	for _, arg := range s.Args {
		lit, ok := arg.(ast.Literal)
		if !ok {
			continue
		}
		switch l := lit.(type) {
		case *ast.StringLit:
			g.internString(l.Value)
		case *ast.BytesLit:
			off := uint32(len(g.data))
			g.data = append(g.data, l.Value...)
			g.dataLiterals[string(l.Value)] = off
		}
	}
	off, length := g.internString(s.Event)
	g.emit(byte(vm.LoadImm))
	g.emitU32(length)
	g.emitBytes(g.data[off : off+length])
	g.emit(byte(vm.Print))
	return nil
}

// lowerRequirePqc lowers a require_pqc guard as a short-circuit
// conjunction of its body's boolean-valued checks: the first check to
// evaluate false jumps straight to the fallback, skipping any later
// checks, matching the tie-break preference for short-circuit evaluation
// of boolean operands of conditionals.
func (fg *fnGen) lowerRequirePqc(s *ast.RequirePqcStatement) error {
	g := fg.g
	var falsePatches []int
	for _, stmt := range s.Body.Statements {
		exprStmt, ok := stmt.(*ast.ExpressionStatement)
		if !ok {
			return errf("unsupported-construct", "require_pqc body supports only PQC check expressions, got %T", stmt)
		}
		if err := fg.lowerExpression(exprStmt.Expr); err != nil {
			return err
		}
		jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
		jumpToFallbackPos := g.emitJumpPlaceholder(vm.Jump)
		falsePatches = append(falsePatches, jumpToFallbackPos)
		continueOffset := g.pos()
		g.patchU32(jumpIfTruePos, uint32(continueOffset))
	}
	jumpDonePos := g.emitJumpPlaceholder(vm.Jump)
	fallbackOffset := g.pos()
	for _, pos := range falsePatches {
		g.patchU32(pos, uint32(fallbackOffset))
	}
	if s.Fallback != nil {
		if err := fg.lowerStatement(s.Fallback); err != nil {
			return err
		}
	}
	doneOffset := g.pos()
	g.patchU32(jumpDonePos, uint32(doneOffset))
	return nil
}

func (fg *fnGen) lowerExpression(expr ast.Expression) error {
	g := fg.g
	switch e := expr.(type) {
	case *ast.NumberLit:
		// Push only carries a 4-byte signed immediate (§4.D); literals
		// beyond int32 range are truncated to it, a limitation of the
		// fixed opcode table rather than of this lowering.
		g.emit(byte(vm.Push))
		g.emitI32(int32(e.Value))
		return nil
	case *ast.BoolLit:
		v := int32(0)
		if e.Value {
			v = 1
		}
		g.emit(byte(vm.Push))
		g.emitI32(v)
		g.emit(byte(vm.Push))
		g.emitI32(0)
		g.emit(byte(vm.Ne))
		return nil
	case *ast.StringLit:
		off, length := g.internString(e.Value)
		g.emit(byte(vm.LoadImm))
		g.emitU32(length)
		g.emitBytes(g.data[off : off+length])
		return nil
	case *ast.BytesLit:
		g.emit(byte(vm.LoadImm))
		g.emitU32(uint32(len(e.Value)))
		g.emitBytes(e.Value)
		return nil
	case *ast.AddressLit:
		g.emit(byte(vm.LoadImm))
		raw, err := decodeHex(strings.TrimPrefix(e.Value, "0x"))
		if err != nil {
			return errf("bad-literal", "malformed address literal %q: %v", e.Value, err)
		}
		g.emitU32(uint32(len(raw)))
		g.emitBytes(raw)
		return nil
	case *ast.Identifier:
		addr, ok := fg.resolve(e.Name)
		if !ok {
			return errf("unresolved-symbol", "reference to undeclared name %q", e.Name)
		}
		g.emit(byte(vm.Load))
		g.emitU32(addr)
		return nil
	case *ast.BinaryExpr:
		return fg.lowerBinary(e)
	case *ast.UnaryExpr:
		return fg.lowerUnary(e)
	case *ast.TernaryExpr:
		return fg.lowerTernary(e)
	case *ast.CallExpr:
		return fg.lowerCall(e)
	case *ast.MemberExpr, *ast.IndexExpr:
		return errf("unsupported-construct", "struct/array member and index access are not yet lowered")
	default:
		return errf("unsupported-expression", "unsupported expression node %T", expr)
	}
}

var binOpcode = map[ast.BinaryOp]vm.OpCode{
	ast.Add: vm.Add, ast.Sub: vm.Sub, ast.Mul: vm.Mul, ast.Div: vm.Div,
	ast.CmpEq: vm.Eq, ast.CmpNe: vm.Ne, ast.CmpLt: vm.Lt, ast.CmpLe: vm.Le,
	ast.CmpGt: vm.Gt, ast.CmpGe: vm.Ge,
}

func (fg *fnGen) lowerBinary(e *ast.BinaryExpr) error {
	g := fg.g
	switch e.Op {
	case ast.LogAnd:
		// Short-circuit: if Left is false, skip Right and yield false.
		if err := fg.lowerExpression(e.Left); err != nil {
			return err
		}
		jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
		jumpToFalsePos := g.emitJumpPlaceholder(vm.Jump)
		rightOffset := g.pos()
		g.patchU32(jumpIfTruePos, uint32(rightOffset))
		if err := fg.lowerExpression(e.Right); err != nil {
			return err
		}
		jumpDonePos := g.emitJumpPlaceholder(vm.Jump)
		falseOffset := g.pos()
		g.patchU32(jumpToFalsePos, uint32(falseOffset))
		g.emit(byte(vm.Push))
		g.emitI32(0)
		g.emit(byte(vm.Push))
		g.emitI32(1)
		g.emit(byte(vm.Eq))
		doneOffset := g.pos()
		g.patchU32(jumpDonePos, uint32(doneOffset))
		return nil
	case ast.LogOr:
		if err := fg.lowerExpression(e.Left); err != nil {
			return err
		}
		jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
		if err := fg.lowerExpression(e.Right); err != nil {
			return err
		}
		jumpDonePos := g.emitJumpPlaceholder(vm.Jump)
		trueOffset := g.pos()
		g.patchU32(jumpIfTruePos, uint32(trueOffset))
		g.emit(byte(vm.Push))
		g.emitI32(1)
		g.emit(byte(vm.Push))
		g.emitI32(0)
		g.emit(byte(vm.Ne))
		doneOffset := g.pos()
		g.patchU32(jumpDonePos, uint32(doneOffset))
		return nil
	case ast.Shl, ast.Shr:
		return errf("unsupported-construct", "shift operators are not yet lowered to a VM opcode")
	}
	if err := fg.lowerExpression(e.Left); err != nil {
		return err
	}
	if err := fg.lowerExpression(e.Right); err != nil {
		return err
	}
	op, ok := binOpcode[e.Op]
	if !ok {
		return errf("unsupported-construct", "unsupported binary operator %v", e.Op)
	}
	g.emit(byte(op))
	return nil
}

func (fg *fnGen) lowerUnary(e *ast.UnaryExpr) error {
	g := fg.g
	switch e.Op {
	case ast.Not:
		if err := fg.lowerExpression(e.Operand); err != nil {
			return err
		}
		g.emit(byte(vm.Push))
		g.emitI32(0)
		g.emit(byte(vm.Eq))
		return nil
	case ast.Neg:
		g.emit(byte(vm.Push))
		g.emitI32(0)
		if err := fg.lowerExpression(e.Operand); err != nil {
			return err
		}
		g.emit(byte(vm.Sub))
		return nil
	case ast.Inc, ast.Dec:
		id, ok := e.Operand.(*ast.Identifier)
		if !ok {
			return errf("unsupported-construct", "post-increment/decrement requires an identifier operand")
		}
		addr, ok := fg.resolve(id.Name)
		if !ok {
			return errf("unresolved-symbol", "reference to undeclared name %q", id.Name)
		}
		g.emit(byte(vm.Load))
		g.emitU32(addr)
		g.emit(byte(vm.Dup))
		g.emit(byte(vm.Push))
		g.emitI32(1)
		if e.Op == ast.Inc {
			g.emit(byte(vm.Add))
		} else {
			g.emit(byte(vm.Sub))
		}
		g.emit(byte(vm.Store))
		g.emitU32(addr)
		// Dup above leaves the pre-value for the surrounding expression.
		return nil
	default:
		return errf("unsupported-construct", "unsupported unary operator %v", e.Op)
	}
}

func (fg *fnGen) lowerTernary(e *ast.TernaryExpr) error {
	g := fg.g
	if err := fg.lowerExpression(e.Cond); err != nil {
		return err
	}
	jumpIfTruePos := g.emitJumpPlaceholder(vm.JumpIf)
	if err := fg.lowerExpression(e.Else); err != nil {
		return err
	}
	jumpDonePos := g.emitJumpPlaceholder(vm.Jump)
	thenOffset := g.pos()
	g.patchU32(jumpIfTruePos, uint32(thenOffset))
	if err := fg.lowerExpression(e.Then); err != nil {
		return err
	}
	doneOffset := g.pos()
	g.patchU32(jumpDonePos, uint32(doneOffset))
	return nil
}

// pqcPrefixes mirrors (and, for SLH-DSA, completes) the original
// toolchain's by-name recognition of PQC built-in calls.
var pqcPrefixes = []string{"verify_mldsa", "verify_fndsa", "verify_slhdsa", "mlkem_", "mldsa_", "fndsa_", "slhdsa_"}

func isPQCFunction(name string) bool {
	for _, p := range pqcPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

var signAlgorithmSuffixes = map[string]pqc.Algorithm{
	"mldsa44": pqc.AlgMLDSA44, "mldsa65": pqc.AlgMLDSA65, "mldsa87": pqc.AlgMLDSA87,
	"fndsa512": pqc.AlgFNDSA512, "fndsa1024": pqc.AlgFNDSA1024,
	"slhdsa_sha2_128s": pqc.AlgSLHDSASHA2128s, "slhdsa_sha2_128f": pqc.AlgSLHDSASHA2128f,
	"slhdsa_sha2_192s": pqc.AlgSLHDSASHA2192s, "slhdsa_sha2_192f": pqc.AlgSLHDSASHA2192f,
	"slhdsa_sha2_256s": pqc.AlgSLHDSASHA2256s, "slhdsa_sha2_256f": pqc.AlgSLHDSASHA2256f,
	"slhdsa_shake_128s": pqc.AlgSLHDSASHAKE128s, "slhdsa_shake_128f": pqc.AlgSLHDSASHAKE128f,
	"slhdsa_shake_192s": pqc.AlgSLHDSASHAKE192s, "slhdsa_shake_192f": pqc.AlgSLHDSASHAKE192f,
	"slhdsa_shake_256s": pqc.AlgSLHDSASHAKE256s, "slhdsa_shake_256f": pqc.AlgSLHDSASHAKE256f,
}

var kemAlgorithmSuffixes = map[string]pqc.Algorithm{
	"mlkem512": pqc.AlgMLKEM512, "mlkem768": pqc.AlgMLKEM768, "mlkem1024": pqc.AlgMLKEM1024,
}

func signAlgorithmFromName(name string) (pqc.Algorithm, bool) {
	for suffix, alg := range signAlgorithmSuffixes {
		if strings.Contains(name, suffix) {
			return alg, true
		}
	}
	return 0, false
}

func kemAlgorithmFromName(name string) (pqc.Algorithm, bool) {
	for suffix, alg := range kemAlgorithmSuffixes {
		if strings.Contains(name, suffix) {
			return alg, true
		}
	}
	return 0, false
}

func (fg *fnGen) lowerCall(e *ast.CallExpr) error {
	g := fg.g
	if isPQCFunction(e.Name) {
		return fg.lowerPQCCall(e)
	}
	if _, ok := g.funcs[e.Name]; !ok {
		return errf("unresolved-symbol", "call to undeclared function %q", e.Name)
	}
	for _, arg := range e.Args {
		if err := fg.lowerExpression(arg); err != nil {
			return err
		}
	}
	pos := g.emitJumpPlaceholder(vm.Call)
	// Every call, forward or backward, is resolved in the single patch
	// pass that runs after all function bodies have been compiled and
	// every funcInfo.offset is final.
	g.callPatches = append(g.callPatches, callPatch{pos: pos, name: e.Name})
	return nil
}

// lowerPQCCall lowers a recognized PQC built-in. Arguments are written by
// the caller in natural reading order (public key, message, signature —
// or ciphertext, secret key for the KEM). The push order needed to match
// each opcode's fixed top-to-bottom pop order is opcode-specific: the
// sign-verify opcodes pop in the reverse of their natural argument order,
// so those arguments are lowered back-to-front, while MLKEMKeyExchange
// pops private_key then ciphertext — the reverse of the natural
// (ciphertext, secret_key) order — so that case is lowered forward.
func (fg *fnGen) lowerPQCCall(e *ast.CallExpr) error {
	g := fg.g
	if strings.HasPrefix(e.Name, "mlkem_") {
		alg, ok := kemAlgorithmFromName(e.Name)
		if !ok {
			return errf("unknown-algorithm", "cannot determine ML-KEM variant from call %q", e.Name)
		}
		if len(e.Args) != 2 {
			return errf("bad-arity", "%s expects (ciphertext, secret_key), got %d arguments", e.Name, len(e.Args))
		}
		// The VM pops private_key (top) then ciphertext, the reverse of
		// the natural (ciphertext, secret_key) argument order, so unlike
		// the sign-verify case below this one pushes forward, not
		// reversed: ciphertext first, secret_key last puts secret_key on
		// top where MLKEMKeyExchange expects private_key.
		for _, arg := range e.Args {
			if err := fg.lowerExpression(arg); err != nil {
				return err
			}
		}
		g.emit(byte(vm.MLKEMKeyExchange))
		g.emit(byte(alg))
		return nil
	}

	alg, ok := signAlgorithmFromName(e.Name)
	if !ok {
		return errf("unknown-algorithm", "cannot determine signature algorithm from call %q", e.Name)
	}
	if len(e.Args) != 3 {
		return errf("bad-arity", "%s expects (public_key, message, signature), got %d arguments", e.Name, len(e.Args))
	}
	for i := len(e.Args) - 1; i >= 0; i-- {
		if err := fg.lowerExpression(e.Args[i]); err != nil {
			return err
		}
	}
	var op vm.OpCode
	switch {
	case strings.HasPrefix(e.Name, "verify_mldsa") || strings.HasPrefix(e.Name, "mldsa_"):
		op = vm.MLDSAVerify
	case strings.HasPrefix(e.Name, "verify_fndsa") || strings.HasPrefix(e.Name, "fndsa_"):
		op = vm.FNDSAVerify
	case strings.HasPrefix(e.Name, "verify_slhdsa") || strings.HasPrefix(e.Name, "slhdsa_"):
		op = vm.SLHDSAVerify
	default:
		return errf("unknown-algorithm", "unrecognized PQC call %q", e.Name)
	}
	g.emit(byte(op))
	g.emit(byte(alg))
	return nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexVal(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexVal(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, nil
}

func hexVal(ch byte) (int, error) {
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
