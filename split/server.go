package split

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"

	"mlptrain/core/ckkswrapper"
)

// Layout describes how augmented rows [x, 1] are packed into ciphertext
// slots: each row occupies a block of Width slots, PerCiphertext blocks per
// ciphertext.
type Layout struct {
	Inputs        int
	Width         int
	PerCiphertext int
}

// NewLayout returns the packing for inputs features in a ring with slots slots.
func NewLayout(inputs, slots int) (Layout, error) {
	width := ckkswrapper.PaddedWidth(inputs + 1)
	if width > slots {
		return Layout{}, fmt.Errorf("%d inputs do not fit in %d slots", inputs, slots)
	}
	return Layout{Inputs: inputs, Width: width, PerCiphertext: slots / width}, nil
}

// Chunks returns how many ciphertexts hold rows samples.
func (l Layout) Chunks(rows int) int {
	return (rows + l.PerCiphertext - 1) / l.PerCiphertext
}

// Server evaluates x*W + b for the first layer on packed ciphertexts.
type Server struct {
	kit     *ckkswrapper.ServerKit
	layout  Layout
	units   int
	columns []*rlwe.Plaintext
}

// NewServer pre-encodes each column of w (inputs x units) with its bias from b
// (1 x units), replicated once per row block.
func NewServer(kit *ckkswrapper.ServerKit, w, b mat.Matrix) (*Server, error) {
	inputs, units := w.Dims()
	if br, bc := b.Dims(); br != 1 || bc != units {
		return nil, fmt.Errorf("bias is %dx%d, want 1x%d", br, bc, units)
	}
	layout, err := NewLayout(inputs, kit.Params.MaxSlots())
	if err != nil {
		return nil, err
	}

	s := &Server{kit: kit, layout: layout, units: units, columns: make([]*rlwe.Plaintext, units)}
	vec := make([]float64, kit.Params.MaxSlots())
	for j := 0; j < units; j++ {
		for k := range vec {
			vec[k] = 0
		}
		for r := 0; r < layout.PerCiphertext; r++ {
			off := r * layout.Width
			for i := 0; i < inputs; i++ {
				vec[off+i] = w.At(i, j)
			}
			vec[off+inputs] = b.At(0, j)
		}
		pt := hefloat.NewPlaintext(kit.Params, kit.Params.MaxLevel())
		if err := kit.Encoder.Encode(vec, pt); err != nil {
			return nil, fmt.Errorf("encoding column %d: %w", j, err)
		}
		s.columns[j] = pt
	}
	return s, nil
}

// Layout returns the packing the server expects.
func (s *Server) Layout() Layout {
	return s.layout
}

// Linear multiplies every input ciphertext by every column and folds each
// row block into its first slot. The result for chunk c and unit j is at
// index c*units + j. Units are evaluated concurrently.
func (s *Server) Linear(cts []*rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	out := make([]*rlwe.Ciphertext, len(cts)*s.units)
	rots := ckkswrapper.TreeSumRotations(s.layout.Width)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	wg.Add(s.units)
	for j := 0; j < s.units; j++ {
		go func(j int) {
			defer wg.Done()
			eval := s.kit.Evaluator.ShallowCopy()
			for c, ct := range cts {
				res, err := innerProduct(eval, ct, s.columns[j], rots)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("unit %d, chunk %d: %w", j, c, err)
					}
					mu.Unlock()
					return
				}
				out[c*s.units+j] = res
			}
		}(j)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func innerProduct(eval *hefloat.Evaluator, ct *rlwe.Ciphertext, pt *rlwe.Plaintext, rots []int) (*rlwe.Ciphertext, error) {
	acc, err := eval.MulNew(ct, pt)
	if err != nil {
		return nil, err
	}
	for _, k := range rots {
		rot, err := eval.RotateNew(acc, k)
		if err != nil {
			return nil, err
		}
		if err := eval.Add(acc, rot, acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Serve answers forward requests on p until the client sends MsgDone.
// Any failure is reported to the client before being returned.
func (s *Server) Serve(p *Protocol) error {
	for {
		payload, err := p.ReceiveForward()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		result, err := s.handle(payload)
		if err != nil {
			if sendErr := p.SendError(err); sendErr != nil {
				return fmt.Errorf("%v (reporting failed: %w)", err, sendErr)
			}
			return err
		}
		if err := p.SendForwardResult(*result); err != nil {
			return err
		}
	}
}

func (s *Server) handle(payload *ForwardPayload) (*ForwardPayload, error) {
	if want := s.layout.Chunks(payload.Rows); len(payload.Ciphertexts) != want {
		return nil, fmt.Errorf("batch %d: %d rows need %d ciphertexts, got %d",
			payload.BatchID, payload.Rows, want, len(payload.Ciphertexts))
	}
	cts := make([]*rlwe.Ciphertext, len(payload.Ciphertexts))
	for i, data := range payload.Ciphertexts {
		ct, err := ckkswrapper.UnmarshalCiphertext(s.kit.Params, data, payload.Level)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", payload.BatchID, err)
		}
		cts[i] = ct
	}
	outs, err := s.Linear(cts)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", payload.BatchID, err)
	}
	result := &ForwardPayload{
		BatchID:     payload.BatchID,
		Rows:        payload.Rows,
		Ciphertexts: make([][]byte, len(outs)),
	}
	for i, ct := range outs {
		data, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("batch %d: marshal result: %w", payload.BatchID, err)
		}
		result.Ciphertexts[i] = data
		result.Level = ct.Level()
	}
	return result, nil
}
