package logstream

// Scope names which loggers and transports a level change applies to
type Scope int

const (
	ScopeAll             Scope = iota // Every transport of every logger
	ScopeLogger                       // Every transport of one logger
	ScopeTransport                    // One transport across all loggers
	ScopeLoggerTransport              // One transport of one logger
)

// Selector picks the transports targeted by Registry.SetLevels
type Selector struct {
	Scope     Scope
	Logger    string
	Transport string
}

// All selects every transport of every logger
func All() Selector {
	return Selector{Scope: ScopeAll}
}

// ForLogger selects every transport of the named logger
func ForLogger(name string) Selector {
	return Selector{Scope: ScopeLogger, Logger: name}
}

// ForTransport selects one transport across all loggers
func ForTransport(transport string) Selector {
	return Selector{Scope: ScopeTransport, Transport: transport}
}

// ForLoggerTransport selects one transport of the named logger
func ForLoggerTransport(name, transport string) Selector {
	return Selector{Scope: ScopeLoggerTransport, Logger: name, Transport: transport}
}

func (s Selector) matchesAllLoggers() bool {
	return s.Scope == ScopeAll || s.Scope == ScopeTransport
}

// transport returns the transport filter, empty for all
func (s Selector) transport() string {
	if s.Scope == ScopeTransport || s.Scope == ScopeLoggerTransport {
		return s.Transport
	}
	return ""
}
