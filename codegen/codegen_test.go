package codegen_test

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"

	"synq/codegen"
	"synq/crypto/pqc"
	"synq/parser"
	"synq/vm"
)

func compileAndRun(t *testing.T, src string) *vm.VM {
	t.Helper()
	_, units, semErrs, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(semErrs) > 0 {
		t.Fatalf("unexpected semantic errors: %v", semErrs)
	}
	raw, err := codegen.Generate(units)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	v := vm.New()
	if err := v.LoadBytecode(raw); err != nil {
		t.Fatalf("LoadBytecode: %v", err)
	}
	if err := v.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return v
}

// S1 — Arithmetic.
func TestArithmeticScenario(t *testing.T) {
	v := compileAndRun(t, `contract C { function f() { return 10 + 20; } }`)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 30 {
		t.Fatalf("expected top of stack 30, got %+v", stack)
	}
}

// S5 — Conditional.
func TestConditionalScenario(t *testing.T) {
	v := compileAndRun(t, `contract C { function f() { if (1 < 2) { return 7; } else { return 9; } } }`)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 7 {
		t.Fatalf("expected top of stack 7, got %+v", stack)
	}
}

func TestConditionalScenarioElseBranch(t *testing.T) {
	v := compileAndRun(t, `contract C { function f() { if (2 < 1) { return 7; } else { return 9; } } }`)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 9 {
		t.Fatalf("expected top of stack 9, got %+v", stack)
	}
}

// S6 — Require revert.
func TestRequireRevertScenario(t *testing.T) {
	v := compileAndRun(t, `contract C { function f() { require(1 == 2, "nope"); return 1; } }`)
	msg, reverted := v.RevertMessage()
	if !reverted {
		t.Fatal("expected the program to revert")
	}
	if string(msg) != "nope" {
		t.Fatalf("expected revert message %q, got %q", "nope", msg)
	}
}

func TestRequirePassesWithoutReverting(t *testing.T) {
	v := compileAndRun(t, `contract C { function f() { require(1 == 1, "nope"); return 1; } }`)
	if _, reverted := v.RevertMessage(); reverted {
		t.Fatal("did not expect a revert when the require condition holds")
	}
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 1 {
		t.Fatalf("expected top of stack 1, got %+v", stack)
	}
}

func TestForLoopAccumulates(t *testing.T) {
	v := compileAndRun(t, `contract C {
		function f() {
			total: uint64 = 0;
			for i in 0..5 {
				total = total + 1;
			}
			return total;
		}
	}`)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 5 {
		t.Fatalf("expected accumulated total 5, got %+v", stack)
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	v := compileAndRun(t, `contract C {
		function f() {
			return square(6);
		}
		function square(x: uint64) {
			return x * x;
		}
	}`)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 36 {
		t.Fatalf("expected 36, got %+v", stack)
	}
}

func TestLogicalAndShortCircuits(t *testing.T) {
	v := compileAndRun(t, `contract C { function f() { return (1 < 2) && (3 < 4); } }`)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Kind != vm.KindBool || !stack[0].Bool {
		t.Fatalf("expected true, got %+v", stack)
	}
}

func TestGenerateRejectsMissingContract(t *testing.T) {
	_, units, _, err := parser.Parse(`struct S { a: uint64 }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := codegen.Generate(units); err == nil {
		t.Fatal("expected a CodegenError for a source unit with no contract")
	}
}

// S2/S3 — ML-DSA verify, driven through the real parser -> codegen -> vm
// pipeline rather than hand-assembled bytecode, so a mismatch between
// lowerPQCCall's push order and the VM's pop order would actually surface.
func TestMLDSAVerifyScenarioPipeline(t *testing.T) {
	alg := pqc.AlgMLDSA44
	kp, err := pqc.GenerateMLDSAKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair: %v", err)
	}
	message := []byte("deploy contract")
	sig, err := pqc.Sign(kp, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	src := fmt.Sprintf(`contract C {
		function f() {
			pk: Bytes = 0x%s;
			msg: Bytes = 0x%s;
			sig: Bytes = 0x%s;
			return verify_mldsa44(pk, msg, sig);
		}
	}`, hex.EncodeToString(kp.PublicKey), hex.EncodeToString(message), hex.EncodeToString(sig))

	v := compileAndRun(t, src)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Kind != vm.KindBool || !stack[0].Bool {
		t.Fatalf("expected a real compiled verify_mldsa44 call to accept a genuine signature, got %+v", stack)
	}
}

func TestMLDSAVerifyScenarioPipelineTamperedSignature(t *testing.T) {
	alg := pqc.AlgMLDSA44
	kp, err := pqc.GenerateMLDSAKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair: %v", err)
	}
	message := []byte("deploy contract")
	sig, err := pqc.Sign(kp, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0x01

	src := fmt.Sprintf(`contract C {
		function f() {
			pk: Bytes = 0x%s;
			msg: Bytes = 0x%s;
			sig: Bytes = 0x%s;
			return verify_mldsa44(pk, msg, sig);
		}
	}`, hex.EncodeToString(kp.PublicKey), hex.EncodeToString(message), hex.EncodeToString(tampered))

	v := compileAndRun(t, src)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Kind != vm.KindBool || stack[0].Bool {
		t.Fatalf("expected a tampered signature compiled through the real pipeline to verify false, got %+v", stack)
	}
}

// S4 — ML-KEM round-trip, driven through the real parser -> codegen -> vm
// pipeline. mlkem_* lowering pushes ciphertext and secret_key in the
// opposite order from the sign-verify builtins (see lowerPQCCall); this
// test is the one that would have caught the two arguments being swapped.
func TestMLKEMKeyExchangeScenarioPipeline(t *testing.T) {
	alg := pqc.AlgMLKEM768
	kp, err := pqc.GenerateMLKEMKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateMLKEMKeyPair: %v", err)
	}
	ciphertext, sharedSecret, err := pqc.MLKEMEncapsulate(alg, kp.PublicKey)
	if err != nil {
		t.Fatalf("MLKEMEncapsulate: %v", err)
	}

	src := fmt.Sprintf(`contract C {
		function f() {
			ct: Bytes = 0x%s;
			sk: Bytes = 0x%s;
			return mlkem_mlkem768(ct, sk);
		}
	}`, hex.EncodeToString(ciphertext), hex.EncodeToString(kp.SecretKey))

	v := compileAndRun(t, src)
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Kind != vm.KindBytes {
		t.Fatalf("expected a byte-vector shared secret from the compiled mlkem_mlkem768 call, got %+v", stack)
	}
	if !bytes.Equal(stack[0].Bytes, sharedSecret) {
		t.Fatalf("shared secret recovered through the compiled pipeline does not match the encapsulated one: got %x want %x", stack[0].Bytes, sharedSecret)
	}
}

// S6-style guard — require_pqc compiled through the real pipeline, covering
// both the pass-through and revert-fallback paths.
func TestRequirePqcScenarioPipeline(t *testing.T) {
	alg := pqc.AlgMLDSA44
	kp, err := pqc.GenerateMLDSAKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair: %v", err)
	}
	message := []byte("deploy contract")
	sig, err := pqc.Sign(kp, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	src := fmt.Sprintf(`contract C {
		function f() {
			pk: Bytes = 0x%s;
			msg: Bytes = 0x%s;
			sig: Bytes = 0x%s;
			require_pqc {
				verify_mldsa44(pk, msg, sig);
			} else revert("bad signature");
			return 1;
		}
	}`, hex.EncodeToString(kp.PublicKey), hex.EncodeToString(message), hex.EncodeToString(sig))

	v := compileAndRun(t, src)
	if _, reverted := v.RevertMessage(); reverted {
		t.Fatal("did not expect a revert for a genuine signature")
	}
	stack := v.Stack()
	if len(stack) != 1 || stack[0].Int32 != 1 {
		t.Fatalf("expected top of stack 1, got %+v", stack)
	}
}

func TestRequirePqcScenarioPipelineRevertsOnForgery(t *testing.T) {
	alg := pqc.AlgMLDSA44
	kp, err := pqc.GenerateMLDSAKeyPair(alg)
	if err != nil {
		t.Fatalf("GenerateMLDSAKeyPair: %v", err)
	}
	message := []byte("deploy contract")
	sig, err := pqc.Sign(kp, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	forged := append([]byte(nil), sig...)
	forged[0] ^= 0x01

	src := fmt.Sprintf(`contract C {
		function f() {
			pk: Bytes = 0x%s;
			msg: Bytes = 0x%s;
			sig: Bytes = 0x%s;
			require_pqc {
				verify_mldsa44(pk, msg, sig);
			} else revert("bad signature");
			return 1;
		}
	}`, hex.EncodeToString(kp.PublicKey), hex.EncodeToString(message), hex.EncodeToString(forged))

	v := compileAndRun(t, src)
	msg, reverted := v.RevertMessage()
	if !reverted {
		t.Fatal("expected a forged signature to revert")
	}
	if string(msg) != "bad signature" {
		t.Fatalf("expected revert message %q, got %q", "bad signature", msg)
	}
}
