package audit

import (
	"fmt"
	"io"
	"strings"
)

const (
	headerCritical = "Critical, there are ports open wich were not specified as allowed open ports. Open ports are:"
	headerWarning  = "Warning, there are more ports specified as allowed open ports than are actually open. Unused allowed ports are:"
	messageOK      = "OK, all open ports are marked as allowed"
)

// Verdict is the single outcome of comparing observed open ports with the allow-list.
type Verdict struct {
	Status  Status
	Message string
	// Ports holds the offending ports for WARNING and CRITICAL.
	Ports PortSet
}

// UnauthorizedOpen returns ports that are open but not allowed.
func UnauthorizedOpen(open, allowed PortSet) PortSet {
	return open.Difference(allowed)
}

// UnusedAllowed returns ports that are allowed but not open.
func UnusedAllowed(open, allowed PortSet) PortSet {
	return allowed.Difference(open)
}

// Classify derives the verdict. Unauthorized open ports always outrank unused
// allowed ports, even when both are present.
func Classify(open, allowed PortSet) Verdict {
	if unauthorized := UnauthorizedOpen(open, allowed); len(unauthorized) > 0 {
		return Verdict{
			Status:  StatusCritical,
			Message: listMessage(headerCritical, unauthorized),
			Ports:   unauthorized,
		}
	}

	if unused := UnusedAllowed(open, allowed); len(unused) > 0 {
		return Verdict{
			Status:  StatusWarning,
			Message: listMessage(headerWarning, unused),
			Ports:   unused,
		}
	}

	return Verdict{
		Status:  StatusOK,
		Message: messageOK,
		Ports:   PortSet{},
	}
}

// Unknown builds the verdict for an invocation that could not be audited.
func Unknown(message string) Verdict {
	return Verdict{
		Status:  StatusUnknown,
		Message: message,
		Ports:   PortSet{},
	}
}

func listMessage(header string, ports PortSet) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, port := range ports {
		fmt.Fprintf(&sb, "%d\n", port)
	}
	return sb.String()
}

// Report writes the verdict message to w and returns the exit code for it.
func Report(w io.Writer, v Verdict) int {
	fmt.Fprintln(w, v.Message)
	return v.Status.ExitCode()
}
