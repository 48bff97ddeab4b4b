package hwi

import "strings"

// Protocol constants of the HomeWorks processor command line.
const (
	// LineTerminator terminates every line written to the processor.
	LineTerminator = "\r\n"
	// LoginPrompt is the trimmed line printed when the processor requests credentials.
	LoginPrompt = "LOGIN:"
	// IdlePrompt is the trimmed line printed when the processor accepts the next command.
	IdlePrompt = "LNET>"
	// LoginSuccessful is printed after the processor accepted the credentials.
	LoginSuccessful = "login successful"
	// LoginIncorrect is printed after the processor rejected the credentials.
	LoginIncorrect = "login incorrect"
	// ServerClosingSentinel starts the line printed when the processor drops the link.
	ServerClosingSentinel = "closing connection due to"
	// QuitCommand asks the processor to close the session.
	QuitCommand = "QUIT"
)

// MonitoringCommands are the subscribe commands that make the processor stream
// dimmer levels, keypad buttons, keypad LEDs, grafik eye scenes and timeclock events.
var MonitoringCommands = []string{"DLMON", "KBMON", "KLMON", "GSMON", "TEMON"}

// FormatCommand formats a command line without terminator: NAME or NAME,arg1,...,argN.
func FormatCommand(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}

	var sb strings.Builder
	sb.WriteString(name)
	for _, arg := range args {
		sb.WriteByte(',')
		sb.WriteString(arg)
	}

	return sb.String()
}

// SplitFields splits a processor line into its leading code and comma separated arguments.
// Surrounding whitespace of every field is trimmed.
func SplitFields(line string) (code string, args []string) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	return fields[0], fields[1:]
}

func containsLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
