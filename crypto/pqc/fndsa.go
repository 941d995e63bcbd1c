// FN-DSA (FIPS 206 draft, FFT-over-NTRU-lattice digital signature
// algorithm, formerly Falcon) signing and verification via Fiat-Shamir
// with aborts over an NTRU trapdoor: pick short mask y, w = h*y,
// c = H(w || msg), z = y + c*f. Verification recomputes
// w' = h*z - c*g and checks H(w' || msg) = c. As with ML-DSA, the
// polynomial degree is reduced from the FIPS values (512/1024) so that
// schoolbook NTRU inversion and multiplication stay tractable.
package pqc

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// FNDSAParams holds the NTRU lattice parameters for one FN-DSA variant.
type FNDSAParams struct {
	Alg Algorithm
	N   int   // polynomial degree (reduced from FIPS 206's 512/1024)
	Q   int64 // prime modulus
}

var fndsaParamTable = map[Algorithm]FNDSAParams{
	AlgFNDSA512:  {Alg: AlgFNDSA512, N: 64, Q: 12289},
	AlgFNDSA1024: {Alg: AlgFNDSA1024, N: 128, Q: 12289},
}

// FNDSAParamsFor returns the parameter set for an FN-DSA algorithm variant.
func FNDSAParamsFor(alg Algorithm) (FNDSAParams, error) {
	p, ok := fndsaParamTable[alg]
	if !ok {
		return FNDSAParams{}, ErrUnknownAlgorithm
	}
	return p, nil
}

func fndsaPubKeySize(p FNDSAParams) int { return 2 * p.N * 2 }
func fndsaSecKeySize(p FNDSAParams) int { return p.N * 2 }
func fndsaSigSize(p FNDSAParams) int    { return p.N*2 + 40 + 32 }

func init() {
	for alg, p := range fndsaParamTable {
		name := "FN-DSA-512"
		if alg == AlgFNDSA1024 {
			name = "FN-DSA-1024"
		}
		registerDescriptor(alg, name, fndsaPubKeySize(p), fndsaSecKeySize(p), fndsaSigSize(p))
	}
}

func fndsaBeta(p FNDSAParams) int64 { return p.Q/4 - 64 }

// FNDSAKeyPair holds an NTRU lattice key pair.
type FNDSAKeyPair struct {
	Params    FNDSAParams
	PublicKey []byte // (g || h) serialised
	SecretKey []byte // f serialised
	f, g, h   []int64
}

// FNDSASignature holds an FN-DSA signature.
type FNDSASignature struct {
	Z     []byte // response polynomial z, int16 little-endian
	Nonce []byte // 40-byte randomiser, carried for wire-format parity, unused in verification
	Salt  []byte // 32-byte challenge hash
}

var (
	ErrFNDSANilKey   = fndsaErr("fndsa: nil key pair")
	ErrFNDSABadSig   = fndsaErr("fndsa: malformed signature")
	ErrFNDSAInvert   = fndsaErr("fndsa: secret polynomial not invertible")
	ErrFNDSARejected = fndsaErr("fndsa: rejection limit reached")
)

func fndsaErr(s string) error { return &fndsaError{s} }

type fndsaError struct{ s string }

func (e *fndsaError) Error() string { return e.s }

func fMod(x, q int64) int64 {
	r := x % q
	if r < 0 {
		r += q
	}
	return r
}

func fCenter(x, q int64) int64 {
	r := fMod(x, q)
	if r > q/2 {
		r -= q
	}
	return r
}

func fRingMul(a, b []int64, n int, q int64) []int64 {
	c := make([]int64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i + j
			prod := fMod(a[i]*b[j], q)
			if idx < n {
				c[idx] = fMod(c[idx]+prod, q)
			} else {
				c[idx-n] = fMod(c[idx-n]-prod, q)
			}
		}
	}
	return c
}

func fRingSub(a, b []int64, q int64) []int64 {
	c := make([]int64, len(a))
	for i := range a {
		c[i] = fMod(a[i]-b[i], q)
	}
	return c
}

func fModInverse(a, m int64) (int64, bool) {
	if m <= 1 {
		return 0, m == 1
	}
	g, x, _ := fEGCD(a%m, m)
	if g != 1 {
		return 0, false
	}
	return ((x % m) + m) % m, true
}

func fEGCD(a, b int64) (int64, int64, int64) {
	if a < 0 {
		a = -a
	}
	if a == 0 {
		return b, 0, 1
	}
	g, x, y := fEGCD(b%a, a)
	return g, y - (b/a)*x, x
}

// fRingInvert inverts f mod (X^N+1) mod q via Gaussian elimination over
// the negacyclic convolution matrix of f.
func fRingInvert(f []int64, n int, q int64) ([]int64, error) {
	mat := make([][]int64, n)
	for i := 0; i < n; i++ {
		mat[i] = make([]int64, 2*n)
		for j := 0; j < n; j++ {
			if d := i - j; d >= 0 {
				mat[i][j] = fMod(f[d], q)
			} else {
				mat[i][j] = fMod(-f[d+n], q)
			}
		}
		mat[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		piv := -1
		for r := col; r < n; r++ {
			if mat[r][col] != 0 {
				piv = r
				break
			}
		}
		if piv == -1 {
			return nil, ErrFNDSAInvert
		}
		mat[col], mat[piv] = mat[piv], mat[col]
		inv, ok := fModInverse(mat[col][col], q)
		if !ok {
			return nil, ErrFNDSAInvert
		}
		for j := range mat[col] {
			mat[col][j] = fMod(mat[col][j]*inv, q)
		}
		for r := 0; r < n; r++ {
			if r == col || mat[r][col] == 0 {
				continue
			}
			fac := mat[r][col]
			for j := range mat[r] {
				mat[r][j] = fMod(mat[r][j]-fac*mat[col][j], q)
			}
		}
	}
	res := make([]int64, n)
	for i := range res {
		res[i] = mat[i][n]
	}
	return res, nil
}

func fSampleSmall(seed []byte, idx, n, bound int) []int64 {
	p := make([]int64, n)
	tag := make([]byte, len(seed)+3)
	copy(tag, seed)
	tag[len(seed)] = byte(idx >> 8)
	tag[len(seed)+1] = byte(idx)
	tag[len(seed)+2] = 0xFE
	h := fndsaShake(tag, 8*((n+7)/8))
	for i := 0; i < n; i += 8 {
		for j := 0; j < 8 && i+j < n; j++ {
			v := int64(h[i+j]) % int64(2*bound+1)
			p[i+j] = v - int64(bound)
		}
	}
	return p
}

func fSampleMask(n int, gamma int64) ([]int64, error) {
	p := make([]int64, n)
	buf := make([]byte, n*4)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	span := 2 * gamma
	for i := 0; i < n; i++ {
		v := int64(binary.LittleEndian.Uint32(buf[i*4:])) % span
		p[i] = v - gamma
	}
	return p, nil
}

func fndsaShake(data []byte, outLen int) []byte {
	h := sha3.NewShake256()
	h.Write(data)
	out := make([]byte, outLen)
	h.Read(out)
	return out
}

func fChallengeHash(w []int64, q int64, msg []byte) []byte {
	wb := make([]byte, len(w)*2)
	for i, c := range w {
		binary.LittleEndian.PutUint16(wb[i*2:], uint16(fMod(c, q)))
	}
	return fndsaShake(append(wb, msg...), 32)
}

func fExpandChallenge(hash []byte, n, tau int) []int64 {
	c := make([]int64, n)
	for i := 0; i < tau && i < n; i++ {
		pos := int(hash[i%32]) % n
		if hash[(i+16)%32]&(1<<uint(i%8)) == 0 {
			c[pos] = 1
		} else {
			c[pos] = -1
		}
	}
	return c
}

// GenerateFNDSAKeyPair generates a fresh FN-DSA key pair by repeatedly
// sampling short f, g until f is invertible mod (X^N+1) mod q.
func GenerateFNDSAKeyPair(alg Algorithm) (*FNDSAKeyPair, error) {
	p, err := FNDSAParamsFor(alg)
	if err != nil {
		return nil, err
	}
	n, q := p.N, p.Q
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}

	var f, g, fInv []int64
	for att := 0; att < 100; att++ {
		as := fndsaShake(append(seed, byte(att)), 32)
		f = fSampleSmall(as, 0, n, 2)
		g = fSampleSmall(as, 1, n, 2)
		if f[0]%2 == 0 {
			f[0]++
		}
		var invErr error
		fInv, invErr = fRingInvert(f, n, q)
		if invErr != nil {
			fInv = nil
			continue
		}
		chk := fRingMul(f, fInv, n, q)
		ok := chk[0] == 1
		for i := 1; ok && i < n; i++ {
			ok = chk[i] == 0
		}
		if ok {
			break
		}
		fInv = nil
	}
	if fInv == nil {
		return nil, ErrFNDSAInvert
	}
	h := fRingMul(g, fInv, n, q)

	pk := make([]byte, 2*n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pk[i*2:], uint16(int16(g[i])))
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pk[n*2+i*2:], uint16(h[i]))
	}
	sk := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(sk[i*2:], uint16(int16(f[i])))
	}

	return &FNDSAKeyPair{Params: p, PublicKey: pk, SecretKey: sk, f: f, g: g, h: h}, nil
}

// SignFNDSA produces an FN-DSA signature with rejection sampling bounding
// the infinity norm of the response polynomial.
func SignFNDSA(key *FNDSAKeyPair, msg []byte) (*FNDSASignature, error) {
	if key == nil {
		return nil, ErrFNDSANilKey
	}
	if len(msg) == 0 {
		return nil, ErrEmptyMessage
	}
	p := key.Params
	n, q := p.N, p.Q
	gamma := q / 4
	beta := fndsaBeta(p)

	for att := 0; att < 512; att++ {
		y, err := fSampleMask(n, gamma)
		if err != nil {
			return nil, err
		}
		yq := make([]int64, n)
		for i, v := range y {
			yq[i] = fMod(v, q)
		}
		w := fRingMul(key.h, yq, n, q)
		cHash := fChallengeHash(w, q, msg)
		cPoly := fExpandChallenge(cHash, n, 32)

		cf := fRingMul(cPoly, key.f, n, q)
		z := make([]int64, n)
		reject := false
		for i := 0; i < n; i++ {
			z[i] = y[i] + fCenter(cf[i], q)
			if z[i] > beta || z[i] < -beta {
				reject = true
				break
			}
		}
		if reject {
			continue
		}

		sp := make([]byte, n*2)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(sp[i*2:], uint16(int16(z[i])))
		}
		nonce := make([]byte, 40)
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		return &FNDSASignature{Z: sp, Nonce: nonce, Salt: cHash}, nil
	}
	return nil, ErrFNDSARejected
}

// VerifyFNDSA checks an FN-DSA signature against a serialised public key.
func VerifyFNDSA(alg Algorithm, pk, msg []byte, sig *FNDSASignature) (bool, error) {
	p, err := FNDSAParamsFor(alg)
	if err != nil {
		return false, err
	}
	if sig == nil || len(msg) == 0 {
		return false, nil
	}
	n, q := p.N, p.Q
	beta := fndsaBeta(p)

	if len(pk) != 2*n*2 || len(sig.Z) != n*2 || len(sig.Salt) != 32 {
		return false, nil
	}

	g := make([]int64, n)
	for i := 0; i < n; i++ {
		g[i] = int64(int16(binary.LittleEndian.Uint16(pk[i*2:])))
	}
	h := make([]int64, n)
	for i := 0; i < n; i++ {
		h[i] = int64(binary.LittleEndian.Uint16(pk[n*2+i*2:]))
	}
	z := make([]int64, n)
	for i := 0; i < n; i++ {
		z[i] = int64(int16(binary.LittleEndian.Uint16(sig.Z[i*2:])))
	}
	for _, zi := range z {
		if zi > beta || zi < -beta {
			return false, nil
		}
	}

	cHash := sig.Salt
	cPoly := fExpandChallenge(cHash, n, 32)
	zq := make([]int64, n)
	for i, v := range z {
		zq[i] = fMod(v, q)
	}
	hz := fRingMul(h, zq, n, q)
	gq := make([]int64, n)
	for i, v := range g {
		gq[i] = fMod(v, q)
	}
	cg := fRingMul(cPoly, gq, n, q)
	wPrime := fRingSub(hz, cg, q)

	return bytes.Equal(fChallengeHash(wPrime, q, msg), cHash), nil
}

// Encode serialises a signature to its flat wire form: Salt || Nonce || Z.
func (s *FNDSASignature) Encode() []byte {
	out := make([]byte, 0, len(s.Salt)+len(s.Nonce)+len(s.Z))
	out = append(out, s.Salt...)
	out = append(out, s.Nonce...)
	out = append(out, s.Z...)
	return out
}

// DecodeFNDSASignature parses the flat wire form produced by Encode.
func DecodeFNDSASignature(alg Algorithm, data []byte) (*FNDSASignature, error) {
	p, err := FNDSAParamsFor(alg)
	if err != nil {
		return nil, err
	}
	if len(data) != fndsaSigSize(p) {
		return nil, ErrFNDSABadSig
	}
	return &FNDSASignature{
		Salt:  data[:32],
		Nonce: data[32:72],
		Z:     data[72:],
	}, nil
}
