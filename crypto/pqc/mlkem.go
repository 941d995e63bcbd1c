// ML-KEM (FIPS 203, formerly Kyber) is the module-lattice key-encapsulation
// mechanism used for the VM's key-exchange opcodes. Encapsulation derives a
// shared secret and a ciphertext from a recipient's public key;
// decapsulation recovers the same shared secret from the ciphertext and the
// matching secret key. All arithmetic runs in the NTT domain using the
// polynomial helpers in kyber_ntt.go, which already take q, n and k as
// arguments rather than hardcoding a single parameter set.
package pqc

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
)

// KyberQ is the modulus shared by every ML-KEM parameter set.
const KyberQ = 3329

// KyberN is the ring degree shared by every ML-KEM parameter set.
const KyberN = 256

// MLKEMParams holds the module rank and noise parameter for one ML-KEM
// variant. N and Q are fixed by FIPS 203; only K (module rank) and Eta1/Eta2
// (centered-binomial noise widths) vary across 512/768/1024.
type MLKEMParams struct {
	Alg  Algorithm
	K    int
	Eta1 int
	Eta2 int
}

var mlkemParamTable = map[Algorithm]MLKEMParams{
	AlgMLKEM512:  {Alg: AlgMLKEM512, K: 2, Eta1: 3, Eta2: 2},
	AlgMLKEM768:  {Alg: AlgMLKEM768, K: 3, Eta1: 2, Eta2: 2},
	AlgMLKEM1024: {Alg: AlgMLKEM1024, K: 4, Eta1: 2, Eta2: 2},
}

// MLKEMParamsFor returns the parameter set for an ML-KEM algorithm variant.
func MLKEMParamsFor(alg Algorithm) (MLKEMParams, error) {
	p, ok := mlkemParamTable[alg]
	if !ok {
		return MLKEMParams{}, ErrUnknownAlgorithm
	}
	return p, nil
}

const mlkemCompressDU = 10 // ciphertext compression width for the u component
const mlkemCompressDV = 4  // ciphertext compression width for the v component

func (p MLKEMParams) pubKeySize() int { return p.K*KyberN*12/8 + 32 }
func (p MLKEMParams) secKeySize() int {
	return p.K*KyberN*12/8 + p.pubKeySize() + 32 + 32
}
func (p MLKEMParams) ciphertextSize() int {
	return p.K*KyberN*mlkemCompressDU/8 + KyberN*mlkemCompressDV/8
}

func init() {
	names := map[Algorithm]string{AlgMLKEM512: "ML-KEM-512", AlgMLKEM768: "ML-KEM-768", AlgMLKEM1024: "ML-KEM-1024"}
	for alg, p := range mlkemParamTable {
		registerDescriptor(alg, names[alg], p.pubKeySize(), p.secKeySize(), p.ciphertextSize())
	}
}

// MLKEMKeyPair holds an ML-KEM key pair together with the encoded
// Fujisaki-Okamoto re-encryption material needed for implicit rejection on
// a malformed ciphertext.
type MLKEMKeyPair struct {
	Params    MLKEMParams
	PublicKey []byte
	SecretKey []byte

	seedRho []byte
	tHat    [][]int16
	matrix  [][][]int16
	sHat    [][]int16
	z       []byte
}

// GenerateMLKEMKeyPair generates a fresh ML-KEM key pair for the given
// variant.
func GenerateMLKEMKeyPair(alg Algorithm) (*MLKEMKeyPair, error) {
	p, err := MLKEMParamsFor(alg)
	if err != nil {
		return nil, err
	}
	rho := make([]byte, 32)
	sigma := make([]byte, 32)
	z := make([]byte, 32)
	if _, err := rand.Read(rho); err != nil {
		return nil, err
	}
	if _, err := rand.Read(sigma); err != nil {
		return nil, err
	}
	if _, err := rand.Read(z); err != nil {
		return nil, err
	}

	matrix := expandMatrix(rho, p.K, KyberN, KyberQ)

	prf := mlkemPRFStream(sigma)
	s := make([][]int16, p.K)
	e := make([][]int16, p.K)
	for i := 0; i < p.K; i++ {
		s[i] = sampleCBD(prf, p.Eta1, KyberN)
	}
	for i := 0; i < p.K; i++ {
		e[i] = sampleCBD(prf, p.Eta1, KyberN)
	}

	sHat := make([][]int16, p.K)
	for i := range s {
		sHat[i] = NTT(s[i], KyberQ)
	}
	eHat := make([][]int16, p.K)
	for i := range e {
		eHat[i] = NTT(e[i], KyberQ)
	}

	tHat := make([][]int16, p.K)
	for i := 0; i < p.K; i++ {
		acc := make([]int16, KyberN)
		for j := 0; j < p.K; j++ {
			acc = mlkemPolyAdd(acc, PolyMul(matrix[i][j], sHat[j], KyberQ), KyberQ)
		}
		tHat[i] = mlkemPolyAdd(acc, eHat[i], KyberQ)
	}

	pk := make([]byte, 0, p.pubKeySize())
	for i := 0; i < p.K; i++ {
		pk = append(pk, encodePolynomial(tHat[i], 12)...)
	}
	pk = append(pk, rho...)

	sk := make([]byte, 0, p.secKeySize())
	for i := 0; i < p.K; i++ {
		sk = append(sk, encodePolynomial(sHat[i], 12)...)
	}
	sk = append(sk, pk...)
	h := sha256.Sum256(pk)
	sk = append(sk, h[:]...)
	sk = append(sk, z...)

	return &MLKEMKeyPair{
		Params: p, PublicKey: pk, SecretKey: sk,
		seedRho: rho, tHat: tHat, matrix: matrix, sHat: sHat, z: z,
	}, nil
}

// mlkemPRFStream returns a deterministic byte reader seeded from sigma,
// standing in for the SHAKE256-based PRF FIPS 203 specifies.
func mlkemPRFStream(sigma []byte) io.Reader {
	return &mlkemXOF{seed: sigma}
}

type mlkemXOF struct {
	seed []byte
	ctr  uint64
	buf  []byte
}

func (x *mlkemXOF) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(x.buf) == 0 {
			input := append(append([]byte{}, x.seed...), byte(x.ctr), byte(x.ctr>>8), byte(x.ctr>>16), byte(x.ctr>>24))
			h := sha256.Sum256(input)
			x.buf = h[:]
			x.ctr++
		}
		c := copy(p[n:], x.buf)
		x.buf = x.buf[c:]
		n += c
	}
	return n, nil
}

func mlkemPolyAdd(a, b []int16, q int16) []int16 {
	out := make([]int16, len(a))
	for i := range a {
		out[i] = modQ16(a[i]+b[i], q)
	}
	return out
}

func mlkemPolySub(a, b []int16, q int16) []int16 {
	out := make([]int16, len(a))
	for i := range a {
		out[i] = modQ16(a[i]-b[i], q)
	}
	return out
}

// MLKEMEncapsulate derives a shared secret and the ciphertext carrying it to
// the holder of pk.
func MLKEMEncapsulate(alg Algorithm, pk []byte) (ciphertext, sharedSecret []byte, err error) {
	p, err := MLKEMParamsFor(alg)
	if err != nil {
		return nil, nil, err
	}
	if len(pk) != p.pubKeySize() {
		return nil, nil, ErrInvalidKeySize
	}
	m := make([]byte, 32)
	if _, err := rand.Read(m); err != nil {
		return nil, nil, err
	}
	return mlkemEncapsulateWithSeed(p, pk, m)
}

func mlkemEncapsulateWithSeed(p MLKEMParams, pk, m []byte) (ciphertext, sharedSecret []byte, err error) {
	rho := pk[len(pk)-32:]
	tHat := make([][]int16, p.K)
	off := 0
	for i := 0; i < p.K; i++ {
		tHat[i] = decodePolynomial(pk[off:off+KyberN*12/8], 12, KyberN)
		off += KyberN * 12 / 8
	}
	matrix := expandMatrix(rho, p.K, KyberN, KyberQ)

	coinSeed := sha256.Sum256(append(append([]byte{}, m...), pk...))
	prf := mlkemPRFStream(coinSeed[:])

	r := make([][]int16, p.K)
	e1 := make([][]int16, p.K)
	for i := 0; i < p.K; i++ {
		r[i] = sampleCBD(prf, p.Eta1, KyberN)
	}
	for i := 0; i < p.K; i++ {
		e1[i] = sampleCBD(prf, p.Eta2, KyberN)
	}
	e2 := sampleCBD(prf, p.Eta2, KyberN)

	rHat := make([][]int16, p.K)
	for i := range r {
		rHat[i] = NTT(r[i], KyberQ)
	}

	u := make([][]int16, p.K)
	for i := 0; i < p.K; i++ {
		acc := make([]int16, KyberN)
		for j := 0; j < p.K; j++ {
			acc = mlkemPolyAdd(acc, PolyMul(matrix[j][i], rHat[j], KyberQ), KyberQ)
		}
		u[i] = mlkemPolyAdd(InverseNTT(acc, KyberQ), e1[i], KyberQ)
	}

	vAcc := make([]int16, KyberN)
	for i := 0; i < p.K; i++ {
		vAcc = mlkemPolyAdd(vAcc, PolyMul(tHat[i], rHat[i], KyberQ), KyberQ)
	}
	msgPoly := decodeMessage(m, KyberN, KyberQ)
	v := mlkemPolyAdd(mlkemPolyAdd(InverseNTT(vAcc, KyberQ), e2, KyberQ), msgPoly, KyberQ)

	ct := make([]byte, 0, p.ciphertextSize())
	for i := 0; i < p.K; i++ {
		ct = append(ct, CompressBytes(u[i], mlkemCompressDU)...)
	}
	ct = append(ct, CompressBytes(v, mlkemCompressDV)...)

	ss := sha256.Sum256(append(append([]byte{}, m...), ct...))
	return ct, ss[:], nil
}

// MLKEMDecapsulate recovers the shared secret encapsulated in ciphertext
// using sk. A ciphertext or secret key of the wrong length returns
// ErrInvalidCTSize. A correctly sized but invalid ciphertext never yields
// an error: FIPS 203's implicit-rejection mechanism derives a pseudorandom
// but deterministic "shared secret" instead, so decapsulation of such a
// ciphertext is indistinguishable from a valid one to a caller that never
// learns z.
func MLKEMDecapsulate(alg Algorithm, ciphertext, sk []byte) ([]byte, error) {
	p, err := MLKEMParamsFor(alg)
	if err != nil {
		return nil, err
	}
	if len(sk) != p.secKeySize() || len(ciphertext) != p.ciphertextSize() {
		return nil, ErrInvalidCTSize
	}

	sHatBytes := sk[:p.K*KyberN*12/8]
	pk := sk[p.K*KyberN*12/8 : p.K*KyberN*12/8+p.pubKeySize()]
	z := sk[len(sk)-32:]

	sHat := make([][]int16, p.K)
	off := 0
	for i := 0; i < p.K; i++ {
		sHat[i] = decodePolynomial(sHatBytes[off:off+KyberN*12/8], 12, KyberN)
		off += KyberN * 12 / 8
	}

	uBytes := ciphertext[:p.K*KyberN*mlkemCompressDU/8]
	vBytes := ciphertext[p.K*KyberN*mlkemCompressDU/8:]
	u := make([][]int16, p.K)
	uOff := 0
	chunkU := KyberN * mlkemCompressDU / 8
	for i := 0; i < p.K; i++ {
		u[i] = DecompressBytes(uBytes[uOff:uOff+chunkU], mlkemCompressDU, KyberN)
		uOff += chunkU
	}
	v := DecompressBytes(vBytes, mlkemCompressDV, KyberN)

	acc := make([]int16, KyberN)
	for i := 0; i < p.K; i++ {
		acc = mlkemPolyAdd(acc, PolyMul(NTT(u[i], KyberQ), sHat[i], KyberQ), KyberQ)
	}
	msgPoly := mlkemPolySub(v, InverseNTT(acc, KyberQ), KyberQ)
	m := encodeMessage(msgPoly, KyberN, KyberQ)

	reCt, reSS, err := mlkemEncapsulateWithSeed(p, pk, m)
	if err != nil {
		return nil, err
	}
	if mlkemBytesEqual(reCt, ciphertext) {
		return reSS, nil
	}

	// Implicit rejection: derive a secret from z and the ciphertext so the
	// failure is not observable through timing or output shape.
	rejected := sha256.Sum256(append(append([]byte{}, z...), ciphertext...))
	return rejected[:], nil
}

func mlkemBytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
