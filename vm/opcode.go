package vm

// OpCode is a single-byte instruction tag in the bytecode stream.
type OpCode byte

const (
	Push OpCode = 0x01
	Pop  OpCode = 0x02
	Dup  OpCode = 0x03
	Swap OpCode = 0x04

	Add OpCode = 0x10
	Sub OpCode = 0x11
	Mul OpCode = 0x12
	Div OpCode = 0x13

	Eq OpCode = 0x20
	Ne OpCode = 0x21
	Lt OpCode = 0x22
	Le OpCode = 0x23
	Gt OpCode = 0x24
	Ge OpCode = 0x25

	Jump   OpCode = 0x30
	JumpIf OpCode = 0x31
	Call   OpCode = 0x32
	Return OpCode = 0x33

	Load    OpCode = 0x40
	Store   OpCode = 0x41
	LoadImm OpCode = 0x42

	MLDSAVerify      OpCode = 0x80
	MLKEMKeyExchange OpCode = 0x81
	FNDSAVerify      OpCode = 0x82
	SLHDSAVerify     OpCode = 0x83

	Print OpCode = 0xF0
	Halt  OpCode = 0xFF
)

var opNames = map[OpCode]string{
	Push: "Push", Pop: "Pop", Dup: "Dup", Swap: "Swap",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div",
	Eq: "Eq", Ne: "Ne", Lt: "Lt", Le: "Le", Gt: "Gt", Ge: "Ge",
	Jump: "Jump", JumpIf: "JumpIf", Call: "Call", Return: "Return",
	Load: "Load", Store: "Store", LoadImm: "LoadImm",
	MLDSAVerify: "MLDSAVerify", MLKEMKeyExchange: "MLKEMKeyExchange",
	FNDSAVerify: "FNDSAVerify", SLHDSAVerify: "SLHDSAVerify",
	Print: "Print", Halt: "Halt",
}

func (op OpCode) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "Unknown"
}

// decodeOpCode validates that b names one of the fixed opcodes. Any other
// byte in opcode position is an error, never silently ignored.
func decodeOpCode(b byte) (OpCode, bool) {
	_, ok := opNames[OpCode(b)]
	return OpCode(b), ok
}

func isPQCOpCode(op OpCode) bool {
	switch op {
	case MLDSAVerify, MLKEMKeyExchange, FNDSAVerify, SLHDSAVerify:
		return true
	default:
		return false
	}
}
