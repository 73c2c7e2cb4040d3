package observation

import (
	"encoding/json"
	"sort"
)

// ProtocolSet is an unordered set of protocol versions.
type ProtocolSet map[Protocol]struct{}

func NewProtocolSet(protocols ...Protocol) ProtocolSet {
	s := make(ProtocolSet, len(protocols))
	for _, p := range protocols {
		s.Add(p)
	}
	return s
}

func (s ProtocolSet) Add(p Protocol) {
	s[p] = struct{}{}
}

func (s ProtocolSet) Contains(p Protocol) bool {
	_, ok := s[p]
	return ok
}

// Difference returns the protocols in s that are not in other.
func (s ProtocolSet) Difference(other ProtocolSet) ProtocolSet {
	out := make(ProtocolSet)
	for p := range s {
		if !other.Contains(p) {
			out.Add(p)
		}
	}
	return out
}

// Sorted returns the members in protocol-version order.
func (s ProtocolSet) Sorted() []Protocol {
	out := make([]Protocol, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ProtocolSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = p.String()
	}
	return out
}

func (s ProtocolSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *ProtocolSet) UnmarshalJSON(data []byte) error {
	var items []Protocol
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewProtocolSet(items...)
	return nil
}

// StringSet is an unordered set of identifiers such as OpenSSL cipher names.
type StringSet map[string]struct{}

func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s StringSet) Add(item string) {
	s[item] = struct{}{}
}

func (s StringSet) Contains(item string) bool {
	_, ok := s[item]
	return ok
}

// Difference returns the members of s that are not in other.
func (s StringSet) Difference(other StringSet) StringSet {
	out := make(StringSet)
	for item := range s {
		if !other.Contains(item) {
			out.Add(item)
		}
	}
	return out
}

func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}
