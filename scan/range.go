package scan

import "fmt"

// Range is an inclusive interval of ports.
type Range struct {
	Start int
	End   int
}

func NewRange(start, end int) Range {
	return Range{Start: start, End: end}
}

// Size is the number of ports in the range, zero when End is before Start.
func (r Range) Size() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Ports lists every port in the range in ascending order.
func (r Range) Ports() []int {
	ports := make([]int, 0, r.Size())
	for port := r.Start; port <= r.End; port++ {
		ports = append(ports, port)
	}
	return ports
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}
