package audit

import (
	"sort"
	"strconv"
	"strings"
)

const (
	MinPort = 0
	MaxPort = 65535
)

// PortSet is an ascending list of unique ports.
type PortSet []int

// NewPortSet sorts and deduplicates the given ports.
func NewPortSet(ports ...int) PortSet {
	sorted := make([]int, len(ports))
	copy(sorted, ports)
	sort.Ints(sorted)

	set := PortSet{}
	for i, port := range sorted {
		if i > 0 && sorted[i-1] == port {
			continue
		}
		set = append(set, port)
	}
	return set
}

func (s PortSet) Contains(port int) bool {
	i := sort.SearchInts(s, port)
	return i < len(s) && s[i] == port
}

// Difference returns the ports of s which are not in other.
func (s PortSet) Difference(other PortSet) PortSet {
	diff := PortSet{}
	for _, port := range s {
		if !other.Contains(port) {
			diff = append(diff, port)
		}
	}
	return diff
}

func (s PortSet) Len() int {
	return len(s)
}

// String serialises the set in the same comma separated form ParseAllowList reads.
func (s PortSet) String() string {
	parts := make([]string, len(s))
	for i, port := range s {
		parts[i] = strconv.Itoa(port)
	}
	return strings.Join(parts, ",")
}

// ParseAllowList reads a comma separated list of ports such as "500,21,23,80,3333".
// An empty string allows no ports. A single bad token rejects the whole list.
func ParseAllowList(raw string) (PortSet, error) {
	if raw == "" {
		return PortSet{}, nil
	}

	tokens := strings.Split(raw, ",")
	ports := make([]int, 0, len(tokens))
	for _, token := range tokens {
		port, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, NewConfigError(MessageBadAllowList, err)
		}
		if port < MinPort || port > MaxPort {
			return nil, NewConfigError(MessageBadAllowList, &strconv.NumError{
				Func: "ParseAllowList",
				Num:  token,
				Err:  strconv.ErrRange,
			})
		}
		ports = append(ports, port)
	}

	return NewPortSet(ports...), nil
}
