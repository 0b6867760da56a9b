// field.go - Encoding of transition fields as BN254 scalars.

package proof

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// publicFields is the field encoding of (fingerprint, start, end, inputs).
type publicFields [4]fr.Element

// encodePublic maps each public field to a scalar by hashing it with SHA-256
// and reducing modulo the BN254 scalar field. The input list is hashed as one
// length-prefixed sequence so that ordering and boundaries are bound.
func encodePublic(fingerprint, startRoot, endRoot string, publicInputs []string) publicFields {
	var out publicFields
	out[0] = fieldOf([]byte(fingerprint))
	out[1] = fieldOf([]byte(startRoot))
	out[2] = fieldOf([]byte(endRoot))

	h := sha256.New()
	var n [8]byte
	for _, input := range publicInputs {
		binary.BigEndian.PutUint64(n[:], uint64(len(input)))
		h.Write(n[:])
		h.Write([]byte(input))
	}
	out[3].SetBytes(h.Sum(nil))
	return out
}

func fieldOf(data []byte) fr.Element {
	sum := sha256.Sum256(data)
	var e fr.Element
	e.SetBytes(sum[:])
	return e
}

// binding computes MiMC over the encoded fields natively; it matches the
// in-circuit hash in transitionCircuit.Define.
func (f publicFields) binding() (*big.Int, error) {
	h := mimcNative.NewMiMC()
	for i := range f {
		b := f[i].Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, err
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out.BigInt(new(big.Int)), nil
}

func (f publicFields) bigInts() [4]*big.Int {
	var out [4]*big.Int
	for i := range f {
		out[i] = f[i].BigInt(new(big.Int))
	}
	return out
}
