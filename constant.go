package logstream

// Log level constants, ordered by severity
const (
	LevelAll   int64 = -8 // Sentinel, accepts every record
	LevelDebug int64 = -4
	LevelInfo  int64 = 0
	LevelWarn  int64 = 4
	LevelError int64 = 8
)

// Transport names
const (
	TransportConsole = "console"
	TransportFile    = "file"
)

// Record flags for controlling output structure
const (
	FlagRaw           int64 = 0b0001
	FlagShowTimestamp int64 = 0b0010
	FlagShowLevel     int64 = 0b0100
	FlagShowLabel     int64 = 0b1000
	FlagDefault             = FlagShowTimestamp | FlagShowLevel | FlagShowLabel
)

// Registry and bus defaults
const (
	// Name used when a logger is requested without one
	DefaultLoggerName = "default"
	// Initial capacity of the shared history ring
	DefaultHistorySize = 25
	// Default file name for the file transport
	DefaultFilename = "app.log"
	// Source name used to report rotation failures
	FileToolLoggerName = "FileTool"
)

// Rotation
const (
	// Transfer buffer for the streamed copy during rotation
	copyBufferSize = 64 * 1024
	// Date layout of the archive suffix, DD-MM-YYYY
	archiveDateLayout = "02-01-2006"
)
