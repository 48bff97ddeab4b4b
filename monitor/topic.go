// Package monitor turns the monitoring lines streamed by a HomeWorks processor into typed
// events and routes them to filtered subscribers.
//
// Monitoring output is enabled by the DLMON, KBMON, KLMON, GSMON and TEMON commands the
// connection sends after login. Every line starts with a topic code followed by comma
// separated arguments, the first of which is usually a device address:
//
//	DL, [01:01:00:02:04], 75
//	KBP, [01:06:12], 3
//	KLS, [01:06:12], 000000000000000000000000
package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-homeworks/hwi"
)

// Topic is the leading code of a monitoring line.
type Topic string

// Monitoring topics.
const (
	DimmerLevelChanged     Topic = "DL"
	KeypadButtonPress      Topic = "KBP"
	KeypadButtonRelease    Topic = "KBR"
	KeypadButtonHold       Topic = "KBH"
	KeypadButtonDoubleTap  Topic = "KBDT"
	KeypadLEDStatesChanged Topic = "KLS"
	GrafikEyeSceneChanged  Topic = "GSS"
	SivoiaSceneChanged     Topic = "SVS"
	TimeclockStateChanged  Topic = "TCS"
)

var topics = map[Topic]struct{}{
	DimmerLevelChanged:     {},
	KeypadButtonPress:      {},
	KeypadButtonRelease:    {},
	KeypadButtonHold:       {},
	KeypadButtonDoubleTap:  {},
	KeypadLEDStatesChanged: {},
	GrafikEyeSceneChanged:  {},
	SivoiaSceneChanged:     {},
	TimeclockStateChanged:  {},
}

// AllTopics returns every monitoring topic.
func AllTopics() []Topic {
	return []Topic{
		DimmerLevelChanged,
		KeypadButtonPress,
		KeypadButtonRelease,
		KeypadButtonHold,
		KeypadButtonDoubleTap,
		KeypadLEDStatesChanged,
		GrafikEyeSceneChanged,
		SivoiaSceneChanged,
		TimeclockStateChanged,
	}
}

// IsValid returns true if t is a known monitoring topic.
func (t Topic) IsValid() bool {
	_, ok := topics[t]
	return ok
}

func (t Topic) String() string {
	return string(t)
}

// IsKeypadButton returns true for the button press, release, hold and double tap topics.
func (t Topic) IsKeypadButton() bool {
	switch t {
	case KeypadButtonPress, KeypadButtonRelease, KeypadButtonHold, KeypadButtonDoubleTap:
		return true
	default:
		return false
	}
}

// Event is a parsed monitoring line.
type Event struct {
	Topic Topic
	// Args are the trimmed fields after the topic code.
	Args []string
	// Raw is the line as received.
	Raw string
}

// ParseEvent parses a monitoring line. It returns false when the line doesn't start with a
// known topic code.
func ParseEvent(line string) (Event, bool) {
	code, args := hwi.SplitFields(line)

	topic := Topic(strings.ToUpper(code))
	if !topic.IsValid() {
		return Event{}, false
	}

	return Event{Topic: topic, Args: args, Raw: line}, true
}

// Arg returns the argument at index, or an empty string when out of range.
func (e Event) Arg(index int) string {
	if index < 0 || index >= len(e.Args) {
		return ""
	}

	return e.Args[index]
}

// Address returns the device address without surrounding brackets.
func (e Event) Address() string {
	return NormalizeAddress(e.Arg(0))
}

// Level returns the dimmer level in percent of a DL event.
func (e Event) Level() (float64, error) {
	if e.Topic != DimmerLevelChanged {
		return 0, fmt.Errorf("%s event has no level", e.Topic)
	}

	return strconv.ParseFloat(e.Arg(1), 64)
}

// Button returns the button number of a keypad button event.
func (e Event) Button() (int, error) {
	if !e.Topic.IsKeypadButton() {
		return 0, fmt.Errorf("%s event has no button", e.Topic)
	}

	return strconv.Atoi(e.Arg(1))
}

// LEDStates returns the LED state digits of a KLS event, one digit per LED.
func (e Event) LEDStates() (string, error) {
	if e.Topic != KeypadLEDStatesChanged {
		return "", fmt.Errorf("%s event has no LED states", e.Topic)
	}

	return e.Arg(1), nil
}

// NormalizeAddress strips surrounding whitespace and brackets from a device address.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "[")
	addr = strings.TrimSuffix(addr, "]")

	return strings.TrimSpace(addr)
}
