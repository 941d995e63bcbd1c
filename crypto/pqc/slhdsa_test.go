package pqc

import "testing"

func TestSLHDSASignVerifyRoundTrip(t *testing.T) {
	variants := []Algorithm{
		AlgSLHDSASHA2128s, AlgSLHDSASHA2128f,
		AlgSLHDSASHAKE192s, AlgSLHDSASHAKE256f,
	}
	for _, alg := range variants {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateSLHDSAKeyPair(alg)
			if err != nil {
				t.Fatalf("keygen: %v", err)
			}
			msg := []byte("hash-based fallback signature payload")
			sig, err := SignSLHDSA(key, msg)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			ok, err := VerifySLHDSA(alg, key.PublicKey, msg, sig)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if !ok {
				t.Fatal("expected valid signature to verify")
			}
		})
	}
}

func TestSLHDSARejectsTamperedSignature(t *testing.T) {
	key, err := GenerateSLHDSAKeyPair(AlgSLHDSASHA2128f)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	msg := []byte("governance vote cast")
	sig, err := SignSLHDSA(key, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[len(sig)-1] ^= 0xFF
	ok, err := VerifySLHDSA(AlgSLHDSASHA2128f, key.PublicKey, msg, sig)
	if err != nil {
		t.Fatalf("verify should not error on a forged signature: %v", err)
	}
	if ok {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestSLHDSASignatureSizeMatchesDescriptor(t *testing.T) {
	for alg, p := range slhdsaParamTable {
		want, err := SigSize(alg)
		if err != nil {
			t.Fatalf("SigSize(%s): %v", alg, err)
		}
		if want != p.sigSize() {
			t.Fatalf("%s: descriptor sig size %d != computed %d", alg, want, p.sigSize())
		}
	}
}
