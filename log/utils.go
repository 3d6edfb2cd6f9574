package log

import "log/slog"

type stringValue[T ~string | ~[]byte] struct {
	v T
}

func (v stringValue[T]) LogValue() slog.Value {
	return slog.StringValue(string(v.v))
}

// StringValue returns a value logger that formats v as string.
func StringValue[T ~string | ~[]byte](v T) slog.LogValuer { return stringValue[T]{v} }

type calcValue struct {
	fn func() any
}

func (v calcValue) LogValue() slog.Value {
	return slog.AnyValue(v.fn())
}

// CalcValue defers fn until the log record is actually handled, so expensive
// values (e.g. a full message render) are never computed on a disabled level.
func CalcValue(fn func() any) slog.LogValuer { return calcValue{fn} }
