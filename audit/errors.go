package audit

import "fmt"

// Operator-facing diagnostics for malformed invocations.
const (
	MessageMissingHost  = "Error, host not specified. Example: -H 127.0.0.1"
	MessageBadAllowList = "Error, check list of allowed ports. Example: -P 500,21,23,80,3333"
	MessageBadRange     = "Error, check start and end port specification"
)

// ConfigError is returned for input that is known to be malformed before any
// scanning takes place. Message is printed verbatim to the operator.
type ConfigError struct {
	Message string
	Err     error
}

func NewConfigError(message string, err error) *ConfigError {
	return &ConfigError{
		Message: message,
		Err:     err,
	}
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
