package machine

import "time"

// Logger is a logging function for the machine.
type Logger func(level LogLevel, msg string, args ...any)

// LogLevel enum
type LogLevel int

const (
	// LogNothing means no logging.
	LogNothing LogLevel = iota
	// LogChanges means logging state changes.
	LogChanges
	// LogOps means LogChanges + actions and rejected events.
	LogOps
	// LogDecisions means LogOps + entry and exit actions.
	LogDecisions
	// LogEverything means LogDecisions + everything else.
	LogEverything
)

func (l LogLevel) String() string {
	switch l {
	case LogNothing:
		fallthrough
	default:
		return "nothing"
	case LogChanges:
		return "changes"
	case LogOps:
		return "ops"
	case LogDecisions:
		return "decisions"
	case LogEverything:
		return "everything"
	}
}

// now is replaceable in tests.
var now = time.Now
