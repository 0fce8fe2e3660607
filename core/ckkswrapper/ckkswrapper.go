// Package ckkswrapper bundles the CKKS parameters, keys and codecs used to
// evaluate the first linear layer of a trained network on encrypted inputs.
package ckkswrapper

import (
	"fmt"
	"math/bits"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// HeContext holds the client side of the scheme: parameters, secret key and
// the encoder, encryptor and decryptor built from it.
type HeContext struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen *rlwe.KeyGenerator
	sk   *rlwe.SecretKey
	rlk  *rlwe.RelinearizationKey
}

// ServerKit is what the client hands to the party evaluating on ciphertexts.
// It carries no secret material.
type ServerKit struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Evaluator *hefloat.Evaluator
}

// Literal returns the parameter set used for a given ring degree.
// LogN 14 is the 45 + 9 x 34 bit chain; LogN 12 and 13 use shorter chains that
// still hold the scale of one plaintext multiplication.
func Literal(logN int) (hefloat.ParametersLiteral, error) {
	switch logN {
	case 14:
		return hefloat.ParametersLiteral{
			LogN: 14,
			Q: []uint64{0x200000008001, 0x400018001,
				0x3fffd0001, 0x400060001,
				0x400068001, 0x3fff90001,
				0x400080001, 0x4000a8001,
				0x400108001, 0x3ffeb8001},
			P:               []uint64{0x7fffffd8001, 0x7fffffc8001},
			LogDefaultScale: 40,
		}, nil
	case 13:
		return hefloat.ParametersLiteral{
			LogN:            13,
			LogQ:            []int{50, 40, 40},
			LogP:            []int{50},
			LogDefaultScale: 40,
		}, nil
	case 12:
		return hefloat.ParametersLiteral{
			LogN:            12,
			LogQ:            []int{38, 32},
			LogP:            []int{38},
			LogDefaultScale: 30,
		}, nil
	}
	return hefloat.ParametersLiteral{}, fmt.Errorf("unsupported logN %d, want 12, 13 or 14", logN)
}

// NewHeContext builds a context with the LogN 14 parameter set.
func NewHeContext() (*HeContext, error) {
	return NewHeContextWithLogN(14)
}

// NewHeContextWithLogN builds a context for the given ring degree and
// generates a fresh key pair.
func NewHeContextWithLogN(logN int) (*HeContext, error) {
	lit, err := Literal(logN)
	if err != nil {
		return nil, err
	}
	params, err := hefloat.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("building parameters: %w", err)
	}

	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
		rlk:       kgen.GenRelinearizationKeyNew(sk),
	}, nil
}

// MaxSlots is the number of real values one ciphertext packs.
func (h *HeContext) MaxSlots() int {
	return h.Params.MaxSlots()
}

// GenServerKit generates Galois keys for the requested rotations and returns
// an evaluator holding them together with the relinearization key.
func (h *HeContext) GenServerKit(rots []int) *ServerKit {
	galEls := make([]uint64, len(rots))
	for i, k := range rots {
		galEls[i] = h.Params.GaloisElement(k)
	}
	evk := rlwe.NewMemEvaluationKeySet(h.rlk, h.kgen.GenGaloisKeysNew(galEls, h.sk)...)
	return &ServerKit{
		Params:    h.Params,
		Encoder:   hefloat.NewEncoder(h.Params),
		Evaluator: hefloat.NewEvaluator(h.Params, evk),
	}
}

// EncryptVector encodes values into the leading slots at the top level and
// encrypts them. Unused slots are zero.
func (h *HeContext) EncryptVector(values []float64) (*rlwe.Ciphertext, error) {
	if len(values) > h.MaxSlots() {
		return nil, fmt.Errorf("%d values exceed %d slots", len(values), h.MaxSlots())
	}
	pt := hefloat.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(values, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

// DecryptVector decrypts ct and returns the real parts of its first n slots.
func (h *HeContext) DecryptVector(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	if n > h.MaxSlots() {
		return nil, fmt.Errorf("%d values exceed %d slots", n, h.MaxSlots())
	}
	pt := h.Decryptor.DecryptNew(ct)
	decoded := make([]complex128, h.MaxSlots())
	if err := h.Encoder.Decode(pt, decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = real(decoded[i])
	}
	return out, nil
}

// UnmarshalCiphertext restores a ciphertext serialized at the given level.
func UnmarshalCiphertext(params hefloat.Parameters, data []byte, level int) (*rlwe.Ciphertext, error) {
	if level < 0 || level > params.MaxLevel() {
		return nil, fmt.Errorf("level %d outside [0, %d]", level, params.MaxLevel())
	}
	ct := hefloat.NewCiphertext(params, 1, level)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}
	return ct, nil
}

// PaddedWidth returns the smallest power of two not below n.
func PaddedWidth(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// TreeSumRotations lists the rotations 1, 2, 4, ... below width. Applying them
// as rotate-then-add folds each width-sized block of slots into its first slot.
func TreeSumRotations(width int) []int {
	var rots []int
	for k := 1; k < width; k <<= 1 {
		rots = append(rots, k)
	}
	return rots
}
