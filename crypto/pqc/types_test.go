package pqc

import "testing"

func TestAlgorithmFamilyClassification(t *testing.T) {
	cases := map[Algorithm]Family{
		AlgMLDSA44:         FamilyMLDSA,
		AlgMLDSA87:         FamilyMLDSA,
		AlgFNDSA512:        FamilyFNDSA,
		AlgFNDSA1024:       FamilyFNDSA,
		AlgSLHDSASHA2128s:  FamilySLHDSA,
		AlgSLHDSASHAKE256f: FamilySLHDSA,
		AlgMLKEM512:        FamilyMLKEM,
		AlgMLKEM1024:       FamilyMLKEM,
	}
	for alg, want := range cases {
		if got := alg.Family(); got != want {
			t.Errorf("%v.Family() = %v, want %v", alg, got, want)
		}
	}
}

func TestIsSignature(t *testing.T) {
	if !AlgMLDSA65.IsSignature() {
		t.Error("expected ML-DSA to be a signature algorithm")
	}
	if AlgMLKEM768.IsSignature() {
		t.Error("expected ML-KEM to not be a signature algorithm")
	}
}

func TestSigSizeRejectsKEM(t *testing.T) {
	if _, err := SigSize(AlgMLKEM512); err != ErrUnknownAlgorithm {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestCiphertextSizeRejectsSignatureAlgorithm(t *testing.T) {
	if _, err := CiphertextSize(AlgMLDSA44); err != ErrUnknownAlgorithm {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestUnknownAlgorithmSizeLookups(t *testing.T) {
	bogus := Algorithm(255)
	if _, err := PubKeySize(bogus); err != ErrUnknownAlgorithm {
		t.Fatalf("PubKeySize: expected ErrUnknownAlgorithm, got %v", err)
	}
	if _, err := SecKeySize(bogus); err != ErrUnknownAlgorithm {
		t.Fatalf("SecKeySize: expected ErrUnknownAlgorithm, got %v", err)
	}
	if bogus.String() != "unknown-pqc-algorithm" {
		t.Fatalf("String() = %q", bogus.String())
	}
}
