package pqc

import "testing"

func TestFNDSASignVerifyRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgFNDSA512, AlgFNDSA1024} {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateFNDSAKeyPair(alg)
			if err != nil {
				t.Fatalf("keygen: %v", err)
			}
			msg := []byte("escrow release authorization")
			sig, err := SignFNDSA(key, msg)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			ok, err := VerifyFNDSA(alg, key.PublicKey, msg, sig)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if !ok {
				t.Fatal("expected valid signature to verify")
			}
		})
	}
}

func TestFNDSAEncodeDecodeRoundTrip(t *testing.T) {
	key, err := GenerateFNDSAKeyPair(AlgFNDSA512)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	sig, err := SignFNDSA(key, []byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	wire := sig.Encode()
	decoded, err := DecodeFNDSASignature(AlgFNDSA512, wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ok, err := VerifyFNDSA(AlgFNDSA512, key.PublicKey, []byte("payload"), decoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected decoded signature to verify")
	}
}

func TestFNDSARejectsTamperedSignature(t *testing.T) {
	key, err := GenerateFNDSAKeyPair(AlgFNDSA1024)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	sig, err := SignFNDSA(key, []byte("order #42"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig.Z[0] ^= 0xFF
	ok, err := VerifyFNDSA(AlgFNDSA1024, key.PublicKey, []byte("order #42"), sig)
	if err != nil {
		t.Fatalf("verify should not error on a forged signature: %v", err)
	}
	if ok {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestDecodeFNDSASignatureRejectsWrongLength(t *testing.T) {
	_, err := DecodeFNDSASignature(AlgFNDSA512, []byte{1, 2, 3})
	if err != ErrFNDSABadSig {
		t.Fatalf("expected ErrFNDSABadSig, got %v", err)
	}
}
