package engine

import "fmt"

// ConfigurationError — статическая конфигурация противоречива.
// Возникает только при старте: приложение с такой конфигурацией запускать нельзя.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("некорректная конфигурация движка (%s): %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
