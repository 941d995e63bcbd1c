package pqc

import "testing"

func TestMLDSASignVerifyRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgMLDSA44, AlgMLDSA65, AlgMLDSA87} {
		alg := alg
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateMLDSAKeyPair(alg)
			if err != nil {
				t.Fatalf("keygen: %v", err)
			}
			msg := []byte("synq contract deployment payload")
			sig, err := Sign(key, msg)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			ok, err := Verify(alg, key.PublicKey, msg, sig)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if !ok {
				t.Fatal("expected valid signature to verify")
			}
		})
	}
}

func TestMLDSARejectsTamperedSignature(t *testing.T) {
	key, err := GenerateMLDSAKeyPair(AlgMLDSA65)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	msg := []byte("transfer 10 synq to bob")
	sig, err := Sign(key, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[0] ^= 0xFF
	ok, err := Verify(AlgMLDSA65, key.PublicKey, msg, sig)
	if err != nil {
		t.Fatalf("verify should not error on a forged signature: %v", err)
	}
	if ok {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestMLDSARejectsWrongMessage(t *testing.T) {
	key, err := GenerateMLDSAKeyPair(AlgMLDSA44)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	sig, err := Sign(key, []byte("original message"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(AlgMLDSA44, key.PublicKey, []byte("different message"), sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected signature over a different message to fail verification")
	}
}

func TestMLDSAKeySizesMatchDescriptors(t *testing.T) {
	for _, alg := range []Algorithm{AlgMLDSA44, AlgMLDSA65, AlgMLDSA87} {
		key, err := GenerateMLDSAKeyPair(alg)
		if err != nil {
			t.Fatalf("keygen: %v", err)
		}
		want, err := PubKeySize(alg)
		if err != nil {
			t.Fatalf("PubKeySize: %v", err)
		}
		if len(key.PublicKey) != want {
			t.Fatalf("%s: public key length = %d, want %d", alg, len(key.PublicKey), want)
		}
	}
}
