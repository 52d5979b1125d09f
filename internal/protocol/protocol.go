// Package protocol holds the chat wire format: newline-delimited plain
// text, a one-line name handshake, and a single in-band command.
//
//	server → client   Enter your name:
//	client → server   <name>
//	client → server   <chat line> | /quit
//	server → client   <name> joined the chat. | <name>: <line> | <name> left the chat.
package protocol

import (
	"bufio"
	"io"
	"strings"
)

const (
	// NamePrompt is the first line the server writes on every connection.
	NamePrompt = "Enter your name:"

	// QuitCommand ends a session; it is matched case-insensitively.
	QuitCommand = "/quit"

	// Disconnected is printed by the client when its receive loop ends.
	Disconnected = "Disconnected from server."

	joinedSuffix = " joined the chat."
	leftSuffix   = " left the chat."
)

// IsQuit reports whether line is the quit command.
func IsQuit(line string) bool {
	return strings.EqualFold(line, QuitCommand)
}

// Joined formats the notice broadcast when name completes the handshake.
func Joined(name string) string { return name + joinedSuffix }

// Left formats the notice broadcast when name's session ends.
func Left(name string) string { return name + leftSuffix }

// Chat formats a relayed chat line.
func Chat(name, text string) string { return name + ": " + text }

// Connected is the client's local confirmation after sending its name.
func Connected(name string) string { return "Connected to chat as " + name }

// ── Line codec ───────────────────────────────────────────────────────

// LineReader reads newline-terminated lines of any length.  The
// terminator ("\n" or "\r\n") is stripped; nothing else is touched.
type LineReader struct {
	br      *bufio.Reader
	pending error
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReader(r)}
}

// ReadLine returns the next line.  A final line without a terminator is
// returned normally and the stream's error is reported on the next call.
// At end of stream the error is io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	if lr.pending != nil {
		return "", lr.pending
	}
	s, err := lr.br.ReadString('\n')
	if err != nil {
		if s == "" {
			return "", err
		}
		lr.pending = err
		return s, nil
	}
	s = s[:len(s)-1]
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

// FormatLine appends the line terminator used on the wire.
func FormatLine(line string) []byte {
	b := make([]byte, 0, len(line)+1)
	b = append(b, line...)
	return append(b, '\n')
}

// ── Notice classification (client side) ──────────────────────────────

// Kind classifies a line received from the server.
type Kind int

const (
	KindChat Kind = iota
	KindJoin
	KindLeave
	KindPrompt
)

// Classify guesses the kind of a server line for display purposes.
// Chat lines are "<name>: <text>"; a chat line whose text happens to end
// like a notice is still classified by its suffix, which only affects
// colouring.
func Classify(line string) Kind {
	switch {
	case line == NamePrompt:
		return KindPrompt
	case strings.HasSuffix(line, joinedSuffix):
		return KindJoin
	case strings.HasSuffix(line, leftSuffix):
		return KindLeave
	default:
		return KindChat
	}
}
