package split

import (
	"bytes"
	"io"
	"testing"
)

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	ctBytes := [][]byte{[]byte("test ciphertext data"), []byte("second")}
	err := writer.SendForward(ForwardPayload{BatchID: 1, Rows: 3, Ciphertexts: ctBytes, Level: 5})
	if err != nil {
		t.Fatalf("SendForward failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveForward()
	if err != nil {
		t.Fatalf("ReceiveForward failed: %v", err)
	}

	if payload.BatchID != 1 {
		t.Errorf("BatchID = %d, want 1", payload.BatchID)
	}
	if payload.Rows != 3 {
		t.Errorf("Rows = %d, want 3", payload.Rows)
	}
	if payload.Level != 5 {
		t.Errorf("Level = %d, want 5", payload.Level)
	}
	if len(payload.Ciphertexts) != 2 || !bytes.Equal(payload.Ciphertexts[0], ctBytes[0]) {
		t.Errorf("Ciphertext mismatch")
	}
}

func TestProtocolResult(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendForwardResult(ForwardPayload{BatchID: 42, Ciphertexts: [][]byte{[]byte("z1")}}); err != nil {
		t.Fatalf("SendForwardResult failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveForwardResult()
	if err != nil {
		t.Fatalf("ReceiveForwardResult failed: %v", err)
	}
	if payload.BatchID != 42 {
		t.Errorf("BatchID = %d, want 42", payload.BatchID)
	}
}

func TestProtocolWrongType(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	if err := writer.SendForwardResult(ForwardPayload{BatchID: 1}); err != nil {
		t.Fatalf("SendForwardResult failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	if _, err := reader.ReceiveForward(); err == nil {
		t.Errorf("expected error when a result arrives instead of an input")
	}
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendDone()
	if err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err = reader.ReceiveForward()
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendError(io.ErrUnexpectedEOF)
	if err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err = reader.ReceiveForward()
	if err == nil {
		t.Errorf("Expected error after SendError")
	}
}

func TestMessageTypes(t *testing.T) {
	if MsgForwardInput != 0 {
		t.Errorf("MsgForwardInput = %d, want 0", MsgForwardInput)
	}
	if MsgForwardOutput != 1 {
		t.Errorf("MsgForwardOutput = %d, want 1", MsgForwardOutput)
	}
	if MsgDone != 2 {
		t.Errorf("MsgDone = %d, want 2", MsgDone)
	}
	if MsgError != 3 {
		t.Errorf("MsgError = %d, want 3", MsgError)
	}
}

func TestLayout(t *testing.T) {
	l, err := NewLayout(64, 8192)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if l.Width != 128 || l.PerCiphertext != 64 {
		t.Fatalf("layout = %+v, want width 128 and 64 rows", l)
	}
	if got := l.Chunks(65); got != 2 {
		t.Errorf("Chunks(65) = %d, want 2", got)
	}
	if _, err := NewLayout(100, 64); err == nil {
		t.Errorf("expected error when a row exceeds the slot count")
	}
}
