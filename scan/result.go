package scan

import (
	"fmt"
	"net"
	"sort"
	"time"
)

type Result struct {
	Host     net.IP
	Open     []int
	Closed   []int
	Filtered []int
	Duration time.Duration
}

func NewResult(host net.IP) Result {
	return Result{
		Host:     host,
		Open:     []int{},
		Closed:   []int{},
		Filtered: []int{},
	}
}

// Scanned is the number of ports that received a verdict.
func (r Result) Scanned() int {
	return len(r.Open) + len(r.Closed) + len(r.Filtered)
}

func (r *Result) add(port int, state PortState) {
	switch state {
	case PortOpen:
		r.Open = append(r.Open, port)
	case PortClosed:
		r.Closed = append(r.Closed, port)
	case PortFiltered:
		r.Filtered = append(r.Filtered, port)
	}
}

func (r *Result) sort() {
	sort.Ints(r.Open)
	sort.Ints(r.Closed)
	sort.Ints(r.Filtered)
}

func (r Result) String() string {

	text := fmt.Sprintf("Scan results for host %s\n", r.Host.String())
	text = fmt.Sprintf("%s\t%d ports scanned in %s\n", text, r.Scanned(), r.Duration.String())

	if len(r.Open) > 0 {
		text = fmt.Sprintf(
			"%s\t%s\t%s\t%s\n",
			text,
			"PORT",
			"STATE",
			"SERVICE",
		)
	}

	for _, port := range r.Open {
		text = fmt.Sprintf(
			"%s\t%s\t%s\t%s\n",
			text,
			pad(fmt.Sprintf("%d/tcp", port), 10),
			pad(PortOpen.String(), 10),
			DescribePort(port),
		)
	}

	return text
}

func pad(input string, length int) string {
	for len(input) < length {
		input += " "
	}
	return input
}
