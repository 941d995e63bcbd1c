// Package vm implements the SynQ stack machine: a bytecode interpreter
// over a typed operand stack, a call stack, and sparse addressable
// memory, with PQC opcodes dispatched to a pluggable crypto backend.
package vm

import (
	"encoding/binary"

	"synq/crypto/pqc"
	"synq/image"
)

// CryptoBackend is the interface the VM's PQC opcodes call through. The
// default backend wraps package pqc directly; tests may substitute a
// fake to exercise CryptoError without needing real key material.
type CryptoBackend interface {
	SignVerify(alg pqc.Algorithm, pk, message, sig []byte) (bool, error)
	KEMDecapsulate(alg pqc.Algorithm, ciphertext, sk []byte) ([]byte, error)
}

type defaultBackend struct{}

func (defaultBackend) SignVerify(alg pqc.Algorithm, pk, message, sig []byte) (bool, error) {
	return pqc.SignVerify(alg, pk, message, sig)
}

func (defaultBackend) KEMDecapsulate(alg pqc.Algorithm, ciphertext, sk []byte) ([]byte, error) {
	return pqc.KEMDecapsulate(alg, ciphertext, sk)
}

// DefaultBackend is the crypto backend wired to the real PQC
// implementations in package pqc.
var DefaultBackend CryptoBackend = defaultBackend{}

// maxStackDepth is the implementation-chosen operand stack cap; exceeding
// it is a StackOverflow, not an unbounded-memory panic.
const maxStackDepth = 4096

// maxCallDepth bounds the call stack the same way.
const maxCallDepth = 1024

// RevertAddress is the sentinel memory address require/revert lowering
// stores an abort message into. It is not a reachable Store/Load target
// for ordinary program data: the code generator never assigns it to a
// declared variable, since its address space starts at zero and grows by
// one per declaration.
const RevertAddress uint32 = 0xFFFFFFFF

// defaultGasLimit bounds total instruction steps so a malformed or
// adversarial program cannot loop the host forever.
const defaultGasLimit = 10_000_000

// VM executes one loaded bytecode image to completion.
type VM struct {
	code []byte
	data []byte

	pc int

	stack     []Value
	callStack []int
	memory    map[uint32]Value

	backend   CryptoBackend
	gas       uint64
	gasLimit  uint64
	prints    []Value
	halted    bool
}

// New creates a VM with the default crypto backend and gas limit.
func New() *VM {
	return &VM{backend: DefaultBackend, gasLimit: defaultGasLimit, memory: map[uint32]Value{}}
}

// WithBackend overrides the crypto backend, primarily for tests.
func (vm *VM) WithBackend(b CryptoBackend) *VM {
	vm.backend = b
	return vm
}

// WithGasLimit overrides the default instruction-step budget.
func (vm *VM) WithGasLimit(limit uint64) *VM {
	vm.gasLimit = limit
	return vm
}

// LoadBytecode decodes a binary image and prepares the VM to execute it.
// A malformed header is rejected here, before any instruction runs.
func (vm *VM) LoadBytecode(raw []byte) error {
	img, err := image.Decode(raw)
	if err != nil {
		return newError(InvalidAddress, "%v", err)
	}
	if err := validateCode(img.Code); err != nil {
		return err
	}
	vm.code = img.Code
	vm.data = img.Data
	vm.pc = 0
	vm.stack = nil
	vm.callStack = nil
	vm.memory = map[uint32]Value{}
	vm.prints = nil
	vm.halted = false
	vm.gas = 0
	return nil
}

// validateCode performs one linear, non-executing pass over the code
// section, decoding every instruction and checking every Jump/JumpIf/Call
// target against the code section's length and every LoadImm length
// against the bytes remaining in the stream. It rejects a malformed image
// before LoadBytecode hands anything to Execute, per the header/section
// discipline invariant: an out-of-bounds reference in a branch the
// program never takes must still be caught at load time, not only when
// (if ever) control reaches it.
func validateCode(code []byte) error {
	pc := 0
	for pc < len(code) {
		opByte := code[pc]
		op, ok := decodeOpCode(opByte)
		if !ok {
			return newError(InvalidInstruction, "unknown opcode 0x%02x at offset %d", opByte, pc)
		}
		pc++
		switch {
		case isPQCOpCode(op):
			if pc+1 > len(code) {
				return newError(InvalidAddress, "%s missing algorithm-id operand at offset %d", op, pc)
			}
			pc++
		case op == Push:
			if pc+4 > len(code) {
				return newError(InvalidAddress, "Push missing 4-byte immediate at offset %d", pc)
			}
			pc += 4
		case op == Jump || op == JumpIf || op == Call:
			if pc+4 > len(code) {
				return newError(InvalidAddress, "%s missing 4-byte target at offset %d", op, pc)
			}
			target := binary.LittleEndian.Uint32(code[pc : pc+4])
			pc += 4
			if int(target) > len(code) {
				return newError(InvalidAddress, "%s target %d out of code bounds at offset %d", op, target, pc-4)
			}
		case op == Load || op == Store:
			if pc+4 > len(code) {
				return newError(InvalidAddress, "%s missing 4-byte address at offset %d", op, pc)
			}
			pc += 4
		case op == LoadImm:
			if pc+4 > len(code) {
				return newError(InvalidAddress, "LoadImm missing 4-byte length at offset %d", pc)
			}
			length := binary.LittleEndian.Uint32(code[pc : pc+4])
			pc += 4
			if pc+int(length) > len(code) {
				return newError(InvalidAddress, "LoadImm length %d at offset %d exceeds code section", length, pc-4)
			}
			pc += int(length)
		default:
			// Pop, Dup, Swap, Add/Sub/Mul/Div, Eq/Ne/Lt/Le/Gt/Ge, Return,
			// Print, Halt: no operand.
		}
	}
	return nil
}

// Prints returns the values recorded by Print opcodes, in execution order.
func (vm *VM) Prints() []Value { return vm.prints }

// RevertMessage reports whether execution stored an abort message at
// RevertAddress, and returns it if so. A program that reverts produces no
// meaningful top-of-stack result; the message is this side channel.
func (vm *VM) RevertMessage() ([]byte, bool) {
	v, ok := vm.memory[RevertAddress]
	if !ok {
		return nil, false
	}
	return v.Bytes, true
}

// Stack returns a snapshot of the current operand stack, bottom first.
func (vm *VM) Stack() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

func (vm *VM) push(v Value) error {
	if len(vm.stack) >= maxStackDepth {
		return newError(StackOverflow, "operand stack exceeded %d entries", maxStackDepth)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (Value, error) {
	if len(vm.stack) == 0 {
		return Value{}, newError(StackUnderflow, "pop on empty stack")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) readByte() (byte, error) {
	if vm.pc >= len(vm.code) {
		return 0, newError(RuntimeError, "unexpected end of code section")
	}
	b := vm.code[vm.pc]
	vm.pc++
	return b, nil
}

func (vm *VM) readU32() (uint32, error) {
	if vm.pc+4 > len(vm.code) {
		return 0, newError(RuntimeError, "unexpected end of code section reading u32 operand")
	}
	v := binary.LittleEndian.Uint32(vm.code[vm.pc : vm.pc+4])
	vm.pc += 4
	return v, nil
}

func (vm *VM) readI32() (int32, error) {
	v, err := vm.readU32()
	return int32(v), err
}

// Execute runs the loaded image to completion: either a Halt opcode, or
// the program counter reaching the end of the code section. It returns
// the first error encountered, if any; the VM never panics on malformed
// bytecode or runtime type mismatches.
func (vm *VM) Execute() error {
	for vm.pc < len(vm.code) && !vm.halted {
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) step() error {
	vm.gas++
	if vm.gas > vm.gasLimit {
		return newError(OutOfGas, "exceeded gas limit of %d steps", vm.gasLimit)
	}

	opByte, err := vm.readByte()
	if err != nil {
		return err
	}
	op, ok := decodeOpCode(opByte)
	if !ok {
		return newError(InvalidInstruction, "unknown opcode 0x%02x at offset %d", opByte, vm.pc-1)
	}

	if isPQCOpCode(op) {
		return vm.execPQC(op)
	}

	switch op {
	case Push:
		imm, err := vm.readI32()
		if err != nil {
			return err
		}
		return vm.push(intVal(imm))
	case Pop:
		_, err := vm.pop()
		return err
	case Dup:
		if len(vm.stack) == 0 {
			return newError(StackUnderflow, "Dup on empty stack")
		}
		return vm.push(vm.stack[len(vm.stack)-1])
	case Swap:
		if len(vm.stack) < 2 {
			return newError(StackUnderflow, "Swap needs two operands")
		}
		n := len(vm.stack)
		vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
		return nil
	case Add, Sub, Mul, Div:
		return vm.execArith(op)
	case Eq, Ne, Lt, Le, Gt, Ge:
		return vm.execCompare(op)
	case Jump:
		target, err := vm.readU32()
		if err != nil {
			return err
		}
		return vm.jumpTo(target)
	case JumpIf:
		target, err := vm.readU32()
		if err != nil {
			return err
		}
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		if cond.Kind != KindBool {
			return newError(RuntimeError, "JumpIf requires a boolean condition")
		}
		if cond.Bool {
			return vm.jumpTo(target)
		}
		return nil
	case Call:
		target, err := vm.readU32()
		if err != nil {
			return err
		}
		if len(vm.callStack) >= maxCallDepth {
			return newError(StackOverflow, "call stack exceeded %d frames", maxCallDepth)
		}
		vm.callStack = append(vm.callStack, vm.pc)
		return vm.jumpTo(target)
	case Return:
		if len(vm.callStack) == 0 {
			vm.halted = true
			return nil
		}
		ret := vm.callStack[len(vm.callStack)-1]
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
		vm.pc = ret
		return nil
	case Load:
		addr, err := vm.readU32()
		if err != nil {
			return err
		}
		v, ok := vm.memory[addr]
		if !ok {
			return newError(InvalidAddress, "no value stored at address %d", addr)
		}
		return vm.push(v)
	case Store:
		addr, err := vm.readU32()
		if err != nil {
			return err
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.memory[addr] = v
		return nil
	case LoadImm:
		length, err := vm.readU32()
		if err != nil {
			return err
		}
		if vm.pc+int(length) > len(vm.code) {
			return newError(RuntimeError, "LoadImm length exceeds code section")
		}
		raw := make([]byte, length)
		copy(raw, vm.code[vm.pc:vm.pc+int(length)])
		vm.pc += int(length)
		return vm.push(bytesVal(raw))
	case Print:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.prints = append(vm.prints, v)
		return nil
	case Halt:
		vm.halted = true
		return nil
	default:
		return newError(InvalidInstruction, "unhandled opcode %s", op)
	}
}

func (vm *VM) jumpTo(target uint32) error {
	if int(target) < 0 || int(target) > len(vm.code) {
		return newError(InvalidAddress, "jump target %d out of code bounds", target)
	}
	vm.pc = int(target)
	return nil
}

func (vm *VM) execArith(op OpCode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	ai, aok := a.asInt64()
	bi, bok := b.asInt64()
	if !aok || !bok {
		return newError(RuntimeError, "arithmetic operator requires integer operands")
	}
	var result int64
	switch op {
	case Add:
		result = ai + bi
	case Sub:
		result = ai - bi
	case Mul:
		result = ai * bi
	case Div:
		if bi == 0 {
			return newError(RuntimeError, "division by zero")
		}
		result = ai / bi
	}
	if a.Kind == KindUint64 && b.Kind == KindUint64 {
		return vm.push(uintVal(uint64(result)))
	}
	return vm.push(intVal(int32(result)))
}

func (vm *VM) execCompare(op OpCode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if a.Kind != b.Kind {
		return newError(RuntimeError, "comparison requires operands of the same type")
	}
	var result bool
	switch a.Kind {
	case KindInt32, KindUint64:
		ai, _ := a.asInt64()
		bi, _ := b.asInt64()
		result = compareInts(op, ai, bi)
	case KindBool:
		result = compareBools(op, a.Bool, b.Bool)
	case KindBytes:
		result = compareBytes(op, a.Bytes, b.Bytes)
	case KindAddress:
		result = compareBytes(op, a.Address[:], b.Address[:])
	}
	return vm.push(boolVal(result))
}

func compareInts(op OpCode, a, b int64) bool {
	switch op {
	case Eq:
		return a == b
	case Ne:
		return a != b
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	default:
		return false
	}
}

func compareBools(op OpCode, a, b bool) bool {
	switch op {
	case Eq:
		return a == b
	case Ne:
		return a != b
	default:
		return false
	}
}

func compareBytes(op OpCode, a, b []byte) bool {
	eq := string(a) == string(b)
	switch op {
	case Eq:
		return eq
	case Ne:
		return !eq
	default:
		return false
	}
}

// execPQC dispatches a signature-verification or key-exchange opcode to
// the crypto backend, by the algorithm id carried as the one-byte
// immediate. A crypto-library error maps to CryptoError; a failed
// verification or a decapsulation mismatch is never an error, matching
// the backend's own calling convention.
func (vm *VM) execPQC(op OpCode) error {
	algByte, err := vm.readByte()
	if err != nil {
		return err
	}
	alg := pqc.Algorithm(algByte)

	if op == MLKEMKeyExchange {
		privateKey, err := vm.pop()
		if err != nil {
			return err
		}
		ciphertext, err := vm.pop()
		if err != nil {
			return err
		}
		if privateKey.Kind != KindBytes || ciphertext.Kind != KindBytes {
			return newError(RuntimeError, "MLKEMKeyExchange requires byte-vector operands")
		}
		secret, err := vm.backend.KEMDecapsulate(alg, ciphertext.Bytes, privateKey.Bytes)
		if err != nil {
			return newError(CryptoError, "%v", err)
		}
		return vm.push(bytesVal(secret))
	}

	publicKey, err := vm.pop()
	if err != nil {
		return err
	}
	message, err := vm.pop()
	if err != nil {
		return err
	}
	signature, err := vm.pop()
	if err != nil {
		return err
	}
	if publicKey.Kind != KindBytes || message.Kind != KindBytes || signature.Kind != KindBytes {
		return newError(RuntimeError, "%s requires byte-vector operands", op)
	}
	ok, err := vm.backend.SignVerify(alg, publicKey.Bytes, message.Bytes, signature.Bytes)
	if err != nil {
		return newError(CryptoError, "%v", err)
	}
	return vm.push(boolVal(ok))
}
