// Package split runs inference with the first linear layer evaluated by a
// server on CKKS ciphertexts while the client keeps the secret key and the
// remaining layers.
package split

import (
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	// Register types for gob encoding
	gob.Register(ForwardPayload{})
}

// MessageType defines message types for split inference protocol
type MessageType int

const (
	MsgForwardInput MessageType = iota
	MsgForwardOutput
	MsgDone
	MsgError
)

// Message represents a message in the split inference protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// ForwardPayload carries serialized ciphertexts for one batch. On input each
// ciphertext packs several augmented rows; on output there is one ciphertext
// per (input ciphertext, hidden unit) pair, indexed chunk*units + unit.
type ForwardPayload struct {
	BatchID     int
	Rows        int
	Ciphertexts [][]byte
	Level       int
}

// Protocol handles split inference communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	if p.encoder == nil {
		return fmt.Errorf("protocol has no writer")
	}
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	if p.decoder == nil {
		return nil, fmt.Errorf("protocol has no reader")
	}
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendForward sends encrypted input rows
func (p *Protocol) SendForward(payload ForwardPayload) error {
	return p.Send(&Message{Type: MsgForwardInput, Payload: payload})
}

// SendForwardResult sends encrypted first-layer pre-activations
func (p *Protocol) SendForwardResult(payload ForwardPayload) error {
	return p.Send(&Message{Type: MsgForwardOutput, Payload: payload})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// ReceiveForward receives encrypted input rows. It returns io.EOF once the
// peer has sent MsgDone.
func (p *Protocol) ReceiveForward() (*ForwardPayload, error) {
	return p.receivePayload(MsgForwardInput)
}

// ReceiveForwardResult receives encrypted first-layer pre-activations.
func (p *Protocol) ReceiveForwardResult() (*ForwardPayload, error) {
	return p.receivePayload(MsgForwardOutput)
}

func (p *Protocol) receivePayload(want MessageType) (*ForwardPayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type == MsgError {
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	}
	if msg.Type == MsgDone {
		return nil, io.EOF
	}
	if msg.Type != want {
		return nil, fmt.Errorf("expected message %d, got %d", want, msg.Type)
	}
	payload, ok := msg.Payload.(ForwardPayload)
	if !ok {
		return nil, fmt.Errorf("invalid forward payload type")
	}
	return &payload, nil
}
