package hwi

import (
	"strings"
	"unicode/utf8"
)

// Adapt classifies one logical processor line.
//
// The trimmed line is matched exactly against the login prompt, the login results
// and the idle prompt, which become state updates. Anything else is returned verbatim
// (trimmed) as server response data.
//
// Adapt has no side effects. Lines containing bytes outside 7-bit ASCII are still
// classified, with invalid bytes replaced by U+FFFD, and ErrInvalidEncoding is returned
// alongside the message so the caller can log it.
func Adapt(raw []byte) (ResponseMessage, error) {
	text, err := decodeASCII(raw)
	text = strings.TrimSpace(text)

	switch text {
	case LoginPrompt:
		return NewStateUpdate(ReadyForLoginAttemptState), err
	case LoginSuccessful:
		return NewStateUpdate(LoggedInState), err
	case LoginIncorrect:
		return NewStateUpdate(LoginIncorrectState), err
	case IdlePrompt:
		return NewStateUpdate(ReadyForCommandState), err
	default:
		return NewResponseData(text), err
	}
}

func decodeASCII(raw []byte) (string, error) {
	for _, b := range raw {
		if b >= utf8.RuneSelf {
			return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), ErrInvalidEncoding
		}
	}

	return string(raw), nil
}
