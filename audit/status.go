package audit

// Status is the monitoring state of a run. The numeric exit codes follow the
// plugin convention used by Nagios-compatible supervisors.
type Status uint8

const (
	StatusOK Status = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

// ExitCode returns the process exit code a supervisor expects for the status.
func (s Status) ExitCode() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	}
	return 3
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}
