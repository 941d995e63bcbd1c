// ML-DSA (FIPS 204, module-lattice digital signature algorithm) signing and
// verification via Fiat-Shamir with aborts. The polynomial degree is
// reduced to 64 (from the FIPS value of 256) so that schoolbook
// multiplication stays fast enough for a software VM opcode; the module
// rank, noise bound and rejection parameters per security level are taken
// from the real FIPS 204 parameter tables. SHAKE256 (golang.org/x/crypto/sha3)
// is used throughout for expansion and sampling, matching the XOF FIPS 204
// specifies.
package pqc

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"
)

// MLDSAParams holds the lattice parameters for one ML-DSA security level.
type MLDSAParams struct {
	Alg    Algorithm
	N      int   // polynomial degree (reduced from FIPS 204's 256)
	Q      int64 // prime modulus, shared by all levels
	K      int   // rows of the public matrix A
	L      int   // columns of A / width of the secret vector
	Eta    int   // secret coefficient bound
	Gamma1 int64 // masking range for signing
	Gamma2 int64 // low-order rounding range
	Beta   int64 // rejection bound (tau * eta)
	Tau    int   // number of nonzero coefficients in the challenge polynomial
	D      int   // dropped bits for public key rounding
}

const mldsaQ int64 = 8380417

// mldsaParamTable lists the three standard ML-DSA security levels.
var mldsaParamTable = map[Algorithm]MLDSAParams{
	AlgMLDSA44: {Alg: AlgMLDSA44, N: 64, Q: mldsaQ, K: 4, L: 4, Eta: 2, Gamma1: 131072, Gamma2: 95232, Beta: 78, Tau: 39, D: 13},
	AlgMLDSA65: {Alg: AlgMLDSA65, N: 64, Q: mldsaQ, K: 6, L: 5, Eta: 4, Gamma1: 524288, Gamma2: 261888, Beta: 196, Tau: 49, D: 13},
	AlgMLDSA87: {Alg: AlgMLDSA87, N: 64, Q: mldsaQ, K: 8, L: 7, Eta: 2, Gamma1: 524288, Gamma2: 261888, Beta: 120, Tau: 60, D: 13},
}

// MLDSAParamsFor returns the parameter set for an ML-DSA algorithm variant.
func MLDSAParamsFor(alg Algorithm) (MLDSAParams, error) {
	p, ok := mldsaParamTable[alg]
	if !ok {
		return MLDSAParams{}, ErrUnknownAlgorithm
	}
	return p, nil
}

func mldsaPubKeySize(p MLDSAParams) int { return 32 + p.K*p.N*4 }
func mldsaSecKeySize(p MLDSAParams) int { return 128 + (p.L+2*p.K)*p.N*4 }
func mldsaSigSize(p MLDSAParams) int    { return 32 + p.L*p.N*4 }

func init() {
	for alg, p := range mldsaParamTable {
		registerDescriptor(alg, "ML-DSA-"+mldsaLevelName(alg), mldsaPubKeySize(p), mldsaSecKeySize(p), mldsaSigSize(p))
	}
}

func mldsaLevelName(alg Algorithm) string {
	switch alg {
	case AlgMLDSA44:
		return "44"
	case AlgMLDSA65:
		return "65"
	default:
		return "87"
	}
}

// mldsaPoly is a polynomial in Z_q[X]/(X^N+1), coefficients as int64.
type mldsaPoly []int64

func newMLDSAPoly(n int) mldsaPoly { return make(mldsaPoly, n) }

// MLDSAKeyPair holds a generated key pair together with the structured
// fields Sign needs; PublicKey and SecretKey are the wire encodings.
type MLDSAKeyPair struct {
	Params    MLDSAParams
	PublicKey []byte
	SecretKey []byte
	rho       []byte
	kSeed     []byte
	tr        []byte
	s1        []mldsaPoly
	s2        []mldsaPoly
	t1        []mldsaPoly
	aMatrix   [][]mldsaPoly
}

var (
	ErrMLDSANilKey  = errors.New("mldsa: nil key")
	ErrMLDSABadSig  = errors.New("mldsa: malformed signature")
	ErrMLDSABadKey  = errors.New("mldsa: malformed public key")
)

// GenerateMLDSAKeyPair generates a fresh ML-DSA key pair for the given
// security level.
func GenerateMLDSAKeyPair(alg Algorithm) (*MLDSAKeyPair, error) {
	p, err := MLDSAParamsFor(alg)
	if err != nil {
		return nil, err
	}

	xi := make([]byte, 32)
	if _, err := rand.Read(xi); err != nil {
		return nil, err
	}
	expanded := mldsaSHAKE256(xi, 128)
	rho, rhoPrime, kSeed := expanded[:32], expanded[32:96], expanded[96:128]

	aMatrix := mldsaExpandA(rho, p)
	s1 := make([]mldsaPoly, p.L)
	for j := 0; j < p.L; j++ {
		s1[j] = mldsaSampleCBD(rhoPrime, uint16(j), p)
	}
	s2 := make([]mldsaPoly, p.K)
	for i := 0; i < p.K; i++ {
		s2[i] = mldsaSampleCBD(rhoPrime, uint16(p.L+i), p)
	}

	t := mldsaMatVecMul(aMatrix, s1, p)
	for i := 0; i < p.K; i++ {
		t[i] = mldsaPolyAdd(t[i], s2[i], p)
	}
	t1 := make([]mldsaPoly, p.K)
	t0 := make([]mldsaPoly, p.K)
	for i := 0; i < p.K; i++ {
		t1[i], t0[i] = mldsaPower2Round(t[i], p)
	}

	pk := mldsaSerializePK(rho, t1, p)
	tr := mldsaSHAKE256(pk, 64)
	sk := mldsaSerializeSK(rho, kSeed, tr, s1, s2, t0, p)

	return &MLDSAKeyPair{
		Params: p, PublicKey: pk, SecretKey: sk,
		rho: mldsaCopy(rho), kSeed: mldsaCopy(kSeed), tr: tr,
		s1: s1, s2: s2, t1: t1, aMatrix: aMatrix,
	}, nil
}

// Sign produces an ML-DSA signature over message using Fiat-Shamir with
// aborts, rejecting and retrying until a signature within the published
// norm bounds is found.
func Sign(key *MLDSAKeyPair, message []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrMLDSANilKey
	}
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	p := key.Params
	mu := mldsaSHAKE256(append(mldsaCopy(key.tr), message...), 64)
	rhoPrime := mldsaSHAKE256(append(mldsaCopy(key.kSeed), mu...), 64)

	for kappa := 0; kappa < 512; kappa++ {
		y := make([]mldsaPoly, p.L)
		for j := 0; j < p.L; j++ {
			y[j] = mldsaSampleGamma1(rhoPrime, uint16(kappa*p.L+j), p)
		}
		w := mldsaMatVecMul(key.aMatrix, y, p)
		w1 := make([]mldsaPoly, p.K)
		for i := 0; i < p.K; i++ {
			w1[i] = mldsaHighBits(w[i], p)
		}
		cInput := append([]byte{}, mu...)
		for i := 0; i < p.K; i++ {
			cInput = append(cInput, mldsaPackPoly(w1[i])...)
		}
		cTilde := mldsaSHAKE256(cInput, 32)
		c := mldsaSampleInBall(cTilde, p)

		z := make([]mldsaPoly, p.L)
		reject := false
		for j := 0; j < p.L; j++ {
			z[j] = mldsaPolyAdd(y[j], mldsaPolyMul(c, key.s1[j], p), p)
			if !mldsaCheckNorm(z[j], p.Gamma1-p.Beta, p) {
				reject = true
				break
			}
		}
		if reject {
			continue
		}

		az := mldsaMatVecMul(key.aMatrix, z, p)
		highMatch := true
		for i := 0; i < p.K && highMatch; i++ {
			ct1 := mldsaPolyMul(c, mldsaPolyShiftLeft(key.t1[i], p.D, p), p)
			w1Prime := mldsaHighBits(mldsaPolySub(az[i], ct1, p), p)
			for k := 0; k < p.N; k++ {
				if w1[i][k] != w1Prime[k] {
					highMatch = false
					break
				}
			}
		}
		if !highMatch {
			continue
		}

		sig := make([]byte, 0, mldsaSigSize(p))
		sig = append(sig, cTilde...)
		for j := 0; j < p.L; j++ {
			sig = append(sig, mldsaPackPoly(z[j])...)
		}
		return sig, nil
	}
	return nil, ErrRejectionLimit
}

// Verify checks an ML-DSA signature against a public key and message. A
// malformed or forged signature yields false with no error, per the
// backend's verification contract.
func Verify(alg Algorithm, pk, message, sig []byte) (bool, error) {
	p, err := MLDSAParamsFor(alg)
	if err != nil {
		return false, err
	}
	if len(pk) != mldsaPubKeySize(p) || len(sig) != mldsaSigSize(p) || len(message) == 0 {
		return false, nil
	}
	rho, t1 := mldsaDeserializePK(pk, p)
	if rho == nil {
		return false, nil
	}
	tr := mldsaSHAKE256(pk, 64)
	mu := mldsaSHAKE256(append(tr, message...), 64)

	cTilde := sig[:32]
	polySize := p.N * 4
	z := make([]mldsaPoly, p.L)
	off := 32
	for j := 0; j < p.L; j++ {
		z[j] = mldsaUnpackPoly(sig[off : off+polySize])
		off += polySize
	}
	for j := 0; j < p.L; j++ {
		if !mldsaCheckNorm(z[j], p.Gamma1-p.Beta, p) {
			return false, nil
		}
	}

	aMatrix := mldsaExpandA(rho, p)
	c := mldsaSampleInBall(cTilde, p)
	az := mldsaMatVecMul(aMatrix, z, p)
	w1Prime := make([]mldsaPoly, p.K)
	for i := 0; i < p.K; i++ {
		ct1 := mldsaPolyMul(c, mldsaPolyShiftLeft(t1[i], p.D, p), p)
		w1Prime[i] = mldsaHighBits(mldsaPolySub(az[i], ct1, p), p)
	}
	cInput := append([]byte{}, mu...)
	for i := 0; i < p.K; i++ {
		cInput = append(cInput, mldsaPackPoly(w1Prime[i])...)
	}
	cTildePrime := mldsaSHAKE256(cInput, 32)

	var diff byte
	for i := 0; i < 32; i++ {
		diff |= cTilde[i] ^ cTildePrime[i]
	}
	return diff == 0, nil
}

func mldsaSerializePK(rho []byte, t1 []mldsaPoly, p MLDSAParams) []byte {
	pk := make([]byte, 0, mldsaPubKeySize(p))
	pk = append(pk, rho...)
	for i := 0; i < p.K; i++ {
		pk = append(pk, mldsaPackPoly(t1[i])...)
	}
	return pk
}

func mldsaDeserializePK(pk []byte, p MLDSAParams) ([]byte, []mldsaPoly) {
	if len(pk) < 32 {
		return nil, nil
	}
	t1 := make([]mldsaPoly, p.K)
	off, polySize := 32, p.N*4
	for i := 0; i < p.K; i++ {
		if off+polySize > len(pk) {
			return nil, nil
		}
		t1[i] = mldsaUnpackPoly(pk[off : off+polySize])
		off += polySize
	}
	return pk[:32], t1
}

func mldsaSerializeSK(rho, kSeed, tr []byte, s1, s2, t0 []mldsaPoly, p MLDSAParams) []byte {
	sk := make([]byte, 0, len(rho)+len(kSeed)+len(tr)+(len(s1)+len(s2)+len(t0))*p.N*4)
	sk = append(sk, rho...)
	sk = append(sk, kSeed...)
	sk = append(sk, tr...)
	for j := 0; j < p.L; j++ {
		sk = append(sk, mldsaPackPoly(s1[j])...)
	}
	for i := 0; i < p.K; i++ {
		sk = append(sk, mldsaPackPoly(s2[i])...)
	}
	for i := 0; i < p.K; i++ {
		sk = append(sk, mldsaPackPoly(t0[i])...)
	}
	return sk
}

func mldsaPackPoly(p mldsaPoly) []byte {
	out := make([]byte, len(p)*4)
	for i := range p {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(mldsaModQ(p[i])))
	}
	return out
}

func mldsaUnpackPoly(data []byte) mldsaPoly {
	n := len(data) / 4
	p := newMLDSAPoly(n)
	for i := 0; i < n; i++ {
		p[i] = int64(binary.LittleEndian.Uint32(data[4*i : 4*i+4]))
	}
	return p
}

func mldsaCopy(b []byte) []byte { c := make([]byte, len(b)); copy(c, b); return c }

func mldsaModQ(x int64) int64 {
	r := x % mldsaQ
	if r < 0 {
		r += mldsaQ
	}
	return r
}

func mldsaPolyAdd(a, b mldsaPoly, p MLDSAParams) mldsaPoly {
	c := newMLDSAPoly(p.N)
	for i := 0; i < p.N; i++ {
		c[i] = mldsaModQ(a[i] + b[i])
	}
	return c
}

func mldsaPolySub(a, b mldsaPoly, p MLDSAParams) mldsaPoly {
	c := newMLDSAPoly(p.N)
	for i := 0; i < p.N; i++ {
		c[i] = mldsaModQ(a[i] - b[i])
	}
	return c
}

// mldsaPolyMul multiplies two polynomials mod (X^N+1) mod Q via schoolbook
// multiplication; N is kept small (64) specifically so this stays cheap.
func mldsaPolyMul(a, b mldsaPoly, p MLDSAParams) mldsaPoly {
	c := newMLDSAPoly(p.N)
	for i := 0; i < p.N; i++ {
		for j := 0; j < p.N; j++ {
			prod := mldsaModQ(a[i] * b[j])
			if idx := i + j; idx < p.N {
				c[idx] = mldsaModQ(c[idx] + prod)
			} else {
				c[idx-p.N] = mldsaModQ(c[idx-p.N] - prod)
			}
		}
	}
	return c
}

func mldsaPolyShiftLeft(a mldsaPoly, d int, p MLDSAParams) mldsaPoly {
	c := newMLDSAPoly(p.N)
	shift := int64(1) << uint(d)
	for i := 0; i < p.N; i++ {
		c[i] = mldsaModQ(a[i] * shift)
	}
	return c
}

func mldsaMatVecMul(a [][]mldsaPoly, s []mldsaPoly, p MLDSAParams) []mldsaPoly {
	t := make([]mldsaPoly, p.K)
	for i := 0; i < p.K; i++ {
		t[i] = newMLDSAPoly(p.N)
		for j := 0; j < p.L; j++ {
			t[i] = mldsaPolyAdd(t[i], mldsaPolyMul(a[i][j], s[j], p), p)
		}
	}
	return t
}

func mldsaPower2Round(a mldsaPoly, p MLDSAParams) (mldsaPoly, mldsaPoly) {
	a1, a0 := newMLDSAPoly(p.N), newMLDSAPoly(p.N)
	d2, halfD2 := int64(1)<<uint(p.D), int64(1)<<uint(p.D-1)
	for i := 0; i < p.N; i++ {
		r := mldsaModQ(a[i])
		r0 := r % d2
		if r0 > halfD2 {
			r0 -= d2
		}
		a1[i] = (r - r0) / d2
		a0[i] = r0
	}
	return a1, a0
}

func mldsaHighBits(a mldsaPoly, p MLDSAParams) mldsaPoly {
	h := newMLDSAPoly(p.N)
	alpha := 2 * p.Gamma2
	for i := 0; i < p.N; i++ {
		r := mldsaModQ(a[i])
		r0 := r % alpha
		if r0 > alpha/2 {
			r0 -= alpha
		}
		if r-r0 == mldsaQ-1 {
			h[i] = 0
		} else {
			h[i] = (r - r0) / alpha
		}
	}
	return h
}

func mldsaCheckNorm(a mldsaPoly, bound int64, p MLDSAParams) bool {
	for i := 0; i < p.N; i++ {
		v := mldsaModQ(a[i])
		if v > mldsaQ/2 {
			v = mldsaQ - v
		}
		if v >= bound {
			return false
		}
	}
	return true
}

func mldsaSHAKE256(data []byte, outLen int) []byte {
	h := sha3.NewShake256()
	h.Write(data)
	out := make([]byte, outLen)
	h.Read(out)
	return out
}

func mldsaExpandA(rho []byte, p MLDSAParams) [][]mldsaPoly {
	a := make([][]mldsaPoly, p.K)
	for i := 0; i < p.K; i++ {
		a[i] = make([]mldsaPoly, p.L)
		for j := 0; j < p.L; j++ {
			seed := make([]byte, len(rho)+2)
			copy(seed, rho)
			seed[len(rho)], seed[len(rho)+1] = byte(j), byte(i)
			a[i][j] = mldsaRejSample(seed, p)
		}
	}
	return a
}

func mldsaRejSample(seed []byte, p MLDSAParams) mldsaPoly {
	poly := newMLDSAPoly(p.N)
	h := sha3.NewShake256()
	h.Write(seed)
	buf := make([]byte, 3)
	for idx := 0; idx < p.N; {
		h.Read(buf)
		val := int64(buf[0]) | (int64(buf[1]) << 8) | (int64(buf[2]&0x7F) << 16)
		if val < mldsaQ {
			poly[idx] = val
			idx++
		}
	}
	return poly
}

func mldsaSampleCBD(seed []byte, nonce uint16, p MLDSAParams) mldsaPoly {
	poly := newMLDSAPoly(p.N)
	input := make([]byte, len(seed)+2)
	copy(input, seed)
	binary.LittleEndian.PutUint16(input[len(seed):], nonce)
	stream := mldsaSHAKE256(input, p.N*2)
	for i := 0; i < p.N; i++ {
		poly[i] = int64(stream[2*i])%int64(2*p.Eta+1) - int64(p.Eta)
	}
	return poly
}

func mldsaSampleGamma1(seed []byte, nonce uint16, p MLDSAParams) mldsaPoly {
	poly := newMLDSAPoly(p.N)
	input := make([]byte, len(seed)+2)
	copy(input, seed)
	binary.LittleEndian.PutUint16(input[len(seed):], nonce)
	stream := mldsaSHAKE256(input, p.N*4)
	for i := 0; i < p.N; i++ {
		val := int64(binary.LittleEndian.Uint32(stream[4*i:4*i+4])) & 0xFFFFF
		if val > 2*p.Gamma1 {
			val = 2 * p.Gamma1
		}
		poly[i] = mldsaModQ(p.Gamma1 - val)
	}
	return poly
}

func mldsaSampleInBall(seed []byte, p MLDSAParams) mldsaPoly {
	c := newMLDSAPoly(p.N)
	h := sha3.NewShake256()
	h.Write(seed)
	signs := make([]byte, 8)
	h.Read(signs)
	signBits := binary.LittleEndian.Uint64(signs)
	posBuf := make([]byte, 1)
	for i := p.N - p.Tau; i < p.N; i++ {
		for {
			h.Read(posBuf)
			j := int(posBuf[0]) % (i + 1)
			if j <= i {
				c[i] = c[j]
				if signBits&1 != 0 {
					c[j] = mldsaQ - 1
				} else {
					c[j] = 1
				}
				signBits >>= 1
				break
			}
		}
	}
	return c
}
