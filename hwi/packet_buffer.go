package hwi

import "bytes"

var (
	loginPromptBytes = []byte(LoginPrompt)
	idlePromptBytes  = []byte(IdlePrompt)
	promptTokens     = [][]byte{idlePromptBytes, loginPromptBytes}
)

// PacketBuffer accumulates bytes read from the processor until they form complete lines.
//
// The buffer is complete when it ends with a newline or with one of the prompts
// ("LOGIN: " or "LNET> "), which the processor prints without a trailing newline.
// A PacketBuffer is not goroutine-safe; it belongs to the session reader.
type PacketBuffer struct {
	buf []byte
}

// NewPacketBuffer creates an empty PacketBuffer.
func NewPacketBuffer() *PacketBuffer {
	return &PacketBuffer{buf: make([]byte, 0, 256)}
}

// Append accumulates data read from the connection.
func (p *PacketBuffer) Append(data []byte) {
	p.buf = append(p.buf, data...)
}

// IsComplete reports whether the accumulated bytes end on a line or prompt boundary.
func (p *PacketBuffer) IsComplete() bool {
	if len(p.buf) == 0 {
		return false
	}
	if p.buf[len(p.buf)-1] == '\n' {
		return true
	}

	trimmed := bytes.TrimRight(p.buf, " ")
	for _, prompt := range promptTokens {
		if bytes.HasSuffix(trimmed, prompt) {
			return true
		}
	}

	return false
}

// Len returns the number of accumulated bytes.
func (p *PacketBuffer) Len() int {
	return len(p.buf)
}

// Flush returns the accumulated bytes and clears the buffer.
// The returned slice is owned by the caller.
func (p *PacketBuffer) Flush() []byte {
	data := bytes.Clone(p.buf)
	p.buf = p.buf[:0]

	return data
}

// SplitLines splits a flushed chunk into logical lines.
//
// The chunk is split on newlines, every segment is trimmed and empty segments are
// dropped. Prompts leading or ending a segment are split off into lines of their own,
// so "LNET> DL,[1:1:1],75" yields "LNET>" and "DL,[1:1:1],75". Prompt text in the
// middle of a line is left alone.
func SplitLines(chunk []byte) [][]byte {
	var lines [][]byte
	for _, segment := range bytes.Split(chunk, []byte{'\n'}) {
		lines = appendTokens(lines, segment)
	}

	return lines
}

func appendTokens(lines [][]byte, segment []byte) [][]byte {
	segment = bytes.TrimSpace(segment)
	for {
		prompt := matchPrompt(segment, bytes.HasPrefix)
		if prompt == nil {
			break
		}
		lines = append(lines, prompt)
		segment = bytes.TrimSpace(segment[len(prompt):])
	}

	// trailing prompts, last one first
	var trailing [][]byte
	for {
		prompt := matchPrompt(segment, bytes.HasSuffix)
		if prompt == nil {
			break
		}
		trailing = append(trailing, prompt)
		segment = bytes.TrimSpace(segment[:len(segment)-len(prompt)])
	}

	if len(segment) > 0 {
		lines = append(lines, segment)
	}
	for i := len(trailing) - 1; i >= 0; i-- {
		lines = append(lines, trailing[i])
	}

	return lines
}

// matchPrompt returns the prompt for which match(segment, prompt) is true, or nil.
func matchPrompt(segment []byte, match func(s, prompt []byte) bool) []byte {
	for _, prompt := range promptTokens {
		if match(segment, prompt) {
			return prompt
		}
	}

	return nil
}
