package split

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"mlptrain/core/ckkswrapper"
	"mlptrain/nn"
	"mlptrain/utils"
)

// Client encrypts input batches, has the server compute the first layer and
// finishes the forward pass locally from the decrypted pre-activations.
type Client struct {
	he       *ckkswrapper.HeContext
	net      *nn.Network
	protocol *Protocol
	layout   Layout
	nextID   int

	// Stats, when set, accumulates encryption and decryption time.
	Stats *utils.TimingStats
}

// NewClient binds the network to a protocol connection.
func NewClient(he *ckkswrapper.HeContext, net *nn.Network, protocol *Protocol) (*Client, error) {
	layout, err := NewLayout(net.Sizes()[0], he.MaxSlots())
	if err != nil {
		return nil, err
	}
	return &Client{he: he, net: net, protocol: protocol, layout: layout}, nil
}

// ServerFor builds the server half for net with the client's keys.
func ServerFor(he *ckkswrapper.HeContext, net *nn.Network) (*Server, error) {
	layout, err := NewLayout(net.Sizes()[0], he.MaxSlots())
	if err != nil {
		return nil, err
	}
	kit := he.GenServerKit(ckkswrapper.TreeSumRotations(layout.Width))
	return NewServer(kit, net.Weights()[0], net.Biases()[0])
}

// Forward returns the N x classes probability matrix for x, computing the
// first layer under encryption.
func (c *Client) Forward(x mat.Matrix) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != c.layout.Inputs {
		return nil, fmt.Errorf("%w: input batch has %d features, first layer has %d",
			nn.ErrShapeMismatch, cols, c.layout.Inputs)
	}

	start := time.Now()
	payload, err := c.encrypt(x)
	if err != nil {
		return nil, err
	}
	c.record(func(s *utils.TimingStats) { s.EncryptionTime += time.Since(start) })

	if err := c.protocol.SendForward(*payload); err != nil {
		return nil, fmt.Errorf("sending batch %d: %w", payload.BatchID, err)
	}
	result, err := c.protocol.ReceiveForwardResult()
	if err != nil {
		return nil, fmt.Errorf("receiving batch %d: %w", payload.BatchID, err)
	}
	if result.BatchID != payload.BatchID {
		return nil, fmt.Errorf("expected batch %d, got %d", payload.BatchID, result.BatchID)
	}

	start = time.Now()
	z1, err := c.decrypt(result, rows)
	if err != nil {
		return nil, err
	}
	c.record(func(s *utils.TimingStats) { s.DecryptionTime += time.Since(start) })

	return c.net.ResumeForward(z1)
}

// Predict returns the argmax class of every row of x.
func (c *Client) Predict(x mat.Matrix) ([]int, error) {
	probs, err := c.Forward(x)
	if err != nil {
		return nil, err
	}
	r, _ := probs.Dims()
	labels := make([]int, r)
	for i := range labels {
		labels[i] = floats.MaxIdx(probs.RawRowView(i))
	}
	return labels, nil
}

// Close tells the server no more batches follow.
func (c *Client) Close() error {
	return c.protocol.SendDone()
}

func (c *Client) record(fn func(*utils.TimingStats)) {
	if c.Stats != nil {
		fn(c.Stats)
	}
}

func (c *Client) encrypt(x mat.Matrix) (*ForwardPayload, error) {
	rows, _ := x.Dims()
	payload := &ForwardPayload{BatchID: c.nextID, Rows: rows, Level: c.he.Params.MaxLevel()}
	c.nextID++

	for chunk := 0; chunk < c.layout.Chunks(rows); chunk++ {
		vec := make([]float64, c.he.MaxSlots())
		for r := 0; r < c.layout.PerCiphertext; r++ {
			row := chunk*c.layout.PerCiphertext + r
			if row >= rows {
				break
			}
			off := r * c.layout.Width
			for i := 0; i < c.layout.Inputs; i++ {
				vec[off+i] = x.At(row, i)
			}
			vec[off+c.layout.Inputs] = 1
		}
		ct, err := c.he.EncryptVector(vec)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk, err)
		}
		data, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("chunk %d: marshal: %w", chunk, err)
		}
		payload.Ciphertexts = append(payload.Ciphertexts, data)
	}
	return payload, nil
}

func (c *Client) decrypt(result *ForwardPayload, rows int) (*mat.Dense, error) {
	units := c.net.Sizes()[1]
	chunks := c.layout.Chunks(rows)
	if len(result.Ciphertexts) != chunks*units {
		return nil, fmt.Errorf("batch %d: expected %d result ciphertexts, got %d",
			result.BatchID, chunks*units, len(result.Ciphertexts))
	}

	z1 := mat.NewDense(rows, units, nil)
	for chunk := 0; chunk < chunks; chunk++ {
		for j := 0; j < units; j++ {
			ct, err := ckkswrapper.UnmarshalCiphertext(c.he.Params, result.Ciphertexts[chunk*units+j], result.Level)
			if err != nil {
				return nil, err
			}
			slots, err := c.he.DecryptVector(ct, c.he.MaxSlots())
			if err != nil {
				return nil, err
			}
			for r := 0; r < c.layout.PerCiphertext; r++ {
				row := chunk*c.layout.PerCiphertext + r
				if row >= rows {
					break
				}
				z1.Set(row, j, slots[r*c.layout.Width])
			}
		}
	}
	return z1, nil
}
