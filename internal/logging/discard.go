package logging

// discardLogger is a no-op logger that discards all log messages.
type discardLogger struct{}

// Discard is the singleton discard logger, for callers that want no log
// output at all. A nil Logger is not replaced by Discard: OrDefault
// substitutes a WARN-level DefaultLogger writing to stderr.
var Discard Logger = discardLogger{}

func (discardLogger) Errorf(format string, args ...any) {}
func (discardLogger) Warnf(format string, args ...any)  {}
func (discardLogger) Infof(format string, args ...any)  {}
func (discardLogger) Debugf(format string, args ...any) {}
func (discardLogger) Fatalf(format string, args ...any) {}
