package scan

// DescribePort returns the registered service name for a port, or "" if unknown.
func DescribePort(port int) string {
	if s, ok := knownPorts[port]; ok {
		return s
	}

	return ""
}
