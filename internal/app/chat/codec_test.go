package chat

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"

	"dischat/internal/pkg/errs"
)

// pipeConn returns a lineConn over an in-memory pipe plus the peer end for
// the test to drive.
func pipeConn(t *testing.T, maxLine int) (Conn, net.Conn) {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	return NewLineConn(server, maxLine), client
}

func writeRaw(t *testing.T, peer net.Conn, chunks ...string) {
	t.Helper()

	go func() {
		for _, chunk := range chunks {
			if _, err := peer.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}()
}

func TestLineConnReadsOneUnitPerLine(t *testing.T) {
	conn, peer := pipeConn(t, 4096)
	writeRaw(t, peer, `{"type":"chat","text":"hello"}`+"\n"+`{"type":"typing","status":true}`+"\n")

	first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("first ReadMessage: %v", err)
	}
	if first.Type != TypeChat || first.Text != "hello" {
		t.Fatalf("first unit = %+v, want chat %q", first, "hello")
	}

	second, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("second ReadMessage: %v", err)
	}
	if second.Type != TypeTyping || !second.Status {
		t.Fatalf("second unit = %+v, want typing status=true", second)
	}
}

func TestLineConnReassemblesSplitUnit(t *testing.T) {
	conn, peer := pipeConn(t, 4096)

	// The unit arrives across three socket writes.
	writeRaw(t, peer, `{"type":"chat",`, `"text":"split`, ` unit"}`+"\n")

	m, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if m.Text != "split unit" {
		t.Fatalf("Text = %q, want %q", m.Text, "split unit")
	}
}

func TestLineConnSkipsBlankLines(t *testing.T) {
	conn, peer := pipeConn(t, 4096)
	writeRaw(t, peer, "\n\r\n  \n"+`{"type":"chat","text":"after blanks"}`+"\n")

	m, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if m.Text != "after blanks" {
		t.Fatalf("Text = %q, want %q", m.Text, "after blanks")
	}
}

func TestLineConnInvalidJSONIsRecoverable(t *testing.T) {
	conn, peer := pipeConn(t, 4096)
	writeRaw(t, peer, "this is not json\n"+`{"type":"chat","text":"still aligned"}`+"\n")

	_, err := conn.ReadMessage()
	var ce *errs.CustomError
	if !errors.As(err, &ce) {
		t.Fatalf("ReadMessage error = %v, want *errs.CustomError", err)
	}
	if ce.Code != errs.ErrInvalidJSON {
		t.Fatalf("error code = %d, want %d", ce.Code, errs.ErrInvalidJSON)
	}

	// The stream stays aligned: the next unit decodes normally.
	m, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage after bad unit: %v", err)
	}
	if m.Text != "still aligned" {
		t.Fatalf("Text = %q, want %q", m.Text, "still aligned")
	}
}

func TestLineConnOversizedUnitIsFatal(t *testing.T) {
	const maxLine = 64
	conn, peer := pipeConn(t, maxLine)

	big := make([]byte, maxLine*3)
	for i := range big {
		big[i] = 'a'
	}
	go func() {
		peer.Write(big)
		peer.Write([]byte("\n"))
	}()

	_, err := conn.ReadMessage()
	if !errors.Is(err, ErrUnitTooLarge) {
		t.Fatalf("ReadMessage error = %v, want ErrUnitTooLarge", err)
	}
}

func TestLineConnWriteUnitAppendsNewline(t *testing.T) {
	conn, peer := pipeConn(t, 4096)

	done := make(chan error, 1)
	go func() {
		done <- conn.WriteUnit([]byte(`{"type":"system","text":"hi"}`))
	}()

	peer.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(peer).ReadString('\n')
	if err != nil {
		t.Fatalf("reading framed unit: %v", err)
	}
	if line != `{"type":"system","text":"hi"}`+"\n" {
		t.Fatalf("framed unit = %q", line)
	}

	if err := <-done; err != nil {
		t.Fatalf("WriteUnit: %v", err)
	}
}

func TestLineConnReadDeadline(t *testing.T) {
	conn, _ := pipeConn(t, 4096)

	if err := conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}

	_, err := conn.ReadMessage()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("ReadMessage error = %v, want timeout", err)
	}
}
