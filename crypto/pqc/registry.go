// registry.go exposes the crypto backend interface the VM's PQC opcodes
// call through: a single signature-verification entry point and a single
// KEM-decapsulation entry point, each dispatching on the one-byte algorithm
// tag carried as an opcode immediate. This file's init fills the dispatch
// tables from each family's parameter table, so adding a thirteenth SLH-DSA
// parameter set or a fourth ML-KEM variant to its family's table never
// touches this file.
package pqc

// VerifyFunc checks a wire-format signature against a public key and
// message for one algorithm family.
type VerifyFunc func(pk, message, sig []byte) (bool, error)

// DecapsulateFunc recovers the shared secret encapsulated in ciphertext for
// one KEM family.
type DecapsulateFunc func(ciphertext, sk []byte) ([]byte, error)

var verifyTable = map[Algorithm]func(alg Algorithm) VerifyFunc{}
var decapTable = map[Algorithm]func(alg Algorithm) DecapsulateFunc{}

func init() {
	mldsaVerify := func(alg Algorithm) VerifyFunc {
		return func(pk, message, sig []byte) (bool, error) { return Verify(alg, pk, message, sig) }
	}
	fndsaVerify := func(alg Algorithm) VerifyFunc {
		return func(pk, message, sig []byte) (bool, error) {
			decoded, err := DecodeFNDSASignature(alg, sig)
			if err != nil {
				return false, nil
			}
			return VerifyFNDSA(alg, pk, message, decoded)
		}
	}
	slhdsaVerify := func(alg Algorithm) VerifyFunc {
		return func(pk, message, sig []byte) (bool, error) { return VerifySLHDSA(alg, pk, message, sig) }
	}
	mlkemDecap := func(alg Algorithm) DecapsulateFunc {
		return func(ciphertext, sk []byte) ([]byte, error) { return MLKEMDecapsulate(alg, ciphertext, sk) }
	}

	for alg := range mldsaParamTable {
		verifyTable[alg] = mldsaVerify
	}
	for alg := range fndsaParamTable {
		verifyTable[alg] = fndsaVerify
	}
	for alg := range slhdsaParamTable {
		verifyTable[alg] = slhdsaVerify
	}
	for alg := range mlkemParamTable {
		decapTable[alg] = mlkemDecap
	}
}

// SignVerify checks a signature produced under alg. It is the single entry
// point the VM's signature-verification opcode calls, regardless of which
// of the seventeen signature variants is named by the immediate byte. An
// unknown or non-signature algorithm returns ErrUnknownAlgorithm; a
// malformed or forged signature returns (false, nil), never an error.
func SignVerify(alg Algorithm, pk, message, sig []byte) (bool, error) {
	ctor, ok := verifyTable[alg]
	if !ok {
		return false, ErrUnknownAlgorithm
	}
	return ctor(alg)(pk, message, sig)
}

// KEMDecapsulate recovers the shared secret from a KEM ciphertext under
// alg. It is the single entry point the VM's decapsulation opcode calls.
// An unknown or non-KEM algorithm returns ErrUnknownAlgorithm.
func KEMDecapsulate(alg Algorithm, ciphertext, sk []byte) ([]byte, error) {
	ctor, ok := decapTable[alg]
	if !ok {
		return nil, ErrUnknownAlgorithm
	}
	return ctor(alg)(ciphertext, sk)
}

// GenerateKeyPair creates a fresh key pair for a signature algorithm,
// returning the wire-encoded public and secret keys. A KEM algorithm
// returns ErrUnknownAlgorithm; ML-KEM key pairs come from
// GenerateMLKEMKeyPair.
func GenerateKeyPair(alg Algorithm) (publicKey, secretKey []byte, err error) {
	switch alg.Family() {
	case FamilyMLDSA:
		kp, err := GenerateMLDSAKeyPair(alg)
		if err != nil {
			return nil, nil, err
		}
		return kp.PublicKey, kp.SecretKey, nil
	case FamilyFNDSA:
		kp, err := GenerateFNDSAKeyPair(alg)
		if err != nil {
			return nil, nil, err
		}
		return kp.PublicKey, kp.SecretKey, nil
	case FamilySLHDSA:
		kp, err := GenerateSLHDSAKeyPair(alg)
		if err != nil {
			return nil, nil, err
		}
		return kp.PublicKey, kp.SecretKey, nil
	default:
		return nil, nil, ErrUnknownAlgorithm
	}
}
