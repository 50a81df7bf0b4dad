package log

// Logger is the interface that the loggers used by the library will use.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	WithValues(kv map[string]interface{}) Logger
}

// Dummy logger doesn't log anything.
var Dummy = &dummy{}

type dummy struct{}

func (d *dummy) Infof(format string, args ...interface{})    {}
func (d *dummy) Warningf(format string, args ...interface{}) {}
func (d *dummy) Errorf(format string, args ...interface{})   {}
func (d *dummy) Debugf(format string, args ...interface{})   {}
func (d *dummy) WithValues(kv map[string]interface{}) Logger { return d }
