package pqc

import "testing"

func TestSignVerifyDispatchesAcrossFamilies(t *testing.T) {
	cases := []Algorithm{AlgMLDSA65, AlgFNDSA512, AlgSLHDSASHA2128f}
	for _, alg := range cases {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			pk, sk, err := GenerateKeyPair(alg)
			if err != nil {
				t.Fatalf("GenerateKeyPair: %v", err)
			}
			msg := []byte("opcode-level signature check")
			var sig []byte
			switch alg.Family() {
			case FamilyMLDSA:
				kp, err := GenerateMLDSAKeyPair(alg)
				if err != nil {
					t.Fatalf("keygen: %v", err)
				}
				pk = kp.PublicKey
				sig, err = Sign(kp, msg)
				if err != nil {
					t.Fatalf("sign: %v", err)
				}
			case FamilyFNDSA:
				kp, err := GenerateFNDSAKeyPair(alg)
				if err != nil {
					t.Fatalf("keygen: %v", err)
				}
				pk = kp.PublicKey
				s, err := SignFNDSA(kp, msg)
				if err != nil {
					t.Fatalf("sign: %v", err)
				}
				sig = s.Encode()
			case FamilySLHDSA:
				kp, err := GenerateSLHDSAKeyPair(alg)
				if err != nil {
					t.Fatalf("keygen: %v", err)
				}
				pk = kp.PublicKey
				sig, err = SignSLHDSA(kp, msg)
				if err != nil {
					t.Fatalf("sign: %v", err)
				}
			}
			_ = sk
			ok, err := SignVerify(alg, pk, msg, sig)
			if err != nil {
				t.Fatalf("SignVerify: %v", err)
			}
			if !ok {
				t.Fatal("expected dispatched verification to succeed")
			}
		})
	}
}

func TestSignVerifyUnknownAlgorithm(t *testing.T) {
	_, err := SignVerify(Algorithm(255), nil, []byte("x"), nil)
	if err != ErrUnknownAlgorithm {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestKEMDecapsulateDispatch(t *testing.T) {
	key, err := GenerateMLKEMKeyPair(AlgMLKEM512)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	ciphertext, secret, err := MLKEMEncapsulate(AlgMLKEM512, key.PublicKey)
	if err != nil {
		t.Fatalf("encapsulate: %v", err)
	}
	recovered, err := KEMDecapsulate(AlgMLKEM512, ciphertext, key.SecretKey)
	if err != nil {
		t.Fatalf("KEMDecapsulate: %v", err)
	}
	if !mlkemBytesEqual(secret, recovered) {
		t.Fatal("dispatched decapsulation does not match direct call")
	}
}

func TestKEMDecapsulateUnknownAlgorithm(t *testing.T) {
	_, err := KEMDecapsulate(Algorithm(255), nil, nil)
	if err != ErrUnknownAlgorithm {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestGenerateKeyPairRejectsKEMFamily(t *testing.T) {
	_, _, err := GenerateKeyPair(AlgMLKEM768)
	if err != ErrUnknownAlgorithm {
		t.Fatalf("expected ErrUnknownAlgorithm for KEM family, got %v", err)
	}
}
