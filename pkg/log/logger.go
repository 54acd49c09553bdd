package log

import "time"

// Logger is the structured logger used across dmfilter. The pipeline, the
// classifier transport and plugins all log through it; pass a NoopLogger to
// silence them.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key-value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 is used for byte offsets.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err attaches err under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any attaches a value of arbitrary type; zerolog serializes it as JSON.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
