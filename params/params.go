// Package params implements the parameter mini-language used by benchmark
// catalogs.
//
// A parameter spec is a ';'-separated list of segments. Each segment is split
// once on its first '='; a segment without '=' is a toggle flag. A key may
// carry a stage prefix, "stage:flag", which routes the flag to one stage of a
// multi-stage pipeline:
//
//   setup:-t=/in/tumour.bam;setup:-n=/in/normal.bam;mstep:--debug
//
// Parsing performs no I/O.
package params

import (
	"fmt"
	"strings"
)

// Entry is a single flag. Toggle flags have HasValue == false.
type Entry struct {
	Key      string
	Value    string
	HasValue bool
}

// Stage returns the stage prefix of the key and the flag with the prefix
// stripped. A key without ':' has an empty stage.
func (e Entry) Stage() (stage, flag string) {
	if i := strings.IndexByte(e.Key, ':'); i > 0 {
		return e.Key[:i], e.Key[i+1:]
	}
	return "", e.Key
}

// String renders the entry back into the mini-language.
func (e Entry) String() string {
	if !e.HasValue {
		return e.Key
	}
	return e.Key + "=" + e.Value
}

// ParseError reports a malformed parameter spec or catalog line. Line is the
// 1-based line of the catalog file, or 0 when the spec did not come from a
// file.
type ParseError struct {
	Line int
	Spec string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Spec)
	}
	return fmt.Sprintf("%s: %q", e.Msg, e.Spec)
}

// Set is an ordered mapping from flag key to optional value. Keys are unique.
// The zero Set is empty and ready to use.
type Set struct {
	entries []Entry
	index   map[string]int
}

// Parse parses a parameter spec. An empty spec yields an empty set. Empty
// segments (for example a trailing ';') are skipped. A segment with an empty
// key, or a key that occurs twice, is a *ParseError.
func Parse(spec string) (*Set, error) {
	s := &Set{}
	if strings.TrimSpace(spec) == "" {
		return s, nil
	}
	for _, seg := range strings.Split(spec, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		e := Entry{Key: seg}
		if i := strings.IndexByte(seg, '='); i >= 0 {
			e = Entry{Key: seg[:i], Value: seg[i+1:], HasValue: true}
		}
		if e.Key == "" {
			return nil, &ParseError{Spec: spec, Msg: fmt.Sprintf("empty flag in segment %q", seg)}
		}
		if s.Has(e.Key) {
			return nil, &ParseError{Spec: spec, Msg: fmt.Sprintf("flag %s specified more than once", e.Key)}
		}
		s.put(e)
	}
	return s, nil
}

func (s *Set) put(e Entry) {
	if s.index == nil {
		s.index = map[string]int{}
	}
	if i, ok := s.index[e.Key]; ok {
		s.entries[i] = e
		return
	}
	s.index[e.Key] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Len returns the number of entries.
func (s *Set) Len() int { return len(s.entries) }

// Has reports whether key is present.
func (s *Set) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Get returns the entry for key.
func (s *Set) Get(key string) (Entry, bool) {
	i, ok := s.index[key]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Set stores key=value, replacing any existing value for key in place.
func (s *Set) Set(key, value string) {
	s.put(Entry{Key: key, Value: value, HasValue: true})
}

// SetDefault stores key=value only if key is absent. It reports whether the
// value was injected.
func (s *Set) SetDefault(key, value string) bool {
	if s.Has(key) {
		return false
	}
	s.Set(key, value)
	return true
}

// Entries returns a copy of the entries in insertion order.
func (s *Set) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Stage returns the entries whose key is prefixed with "stage:", with the
// prefix stripped from the returned keys.
func (s *Set) Stage(stage string) []Entry {
	var r []Entry
	for _, e := range s.entries {
		if st, flag := e.Stage(); st == stage {
			e.Key = flag
			r = append(r, e)
		}
	}
	return r
}

// Unscoped returns the entries whose key carries none of the given stage
// prefixes. With no stages, every entry is returned.
func (s *Set) Unscoped(stages ...string) []Entry {
	var r []Entry
outer:
	for _, e := range s.entries {
		st, _ := e.Stage()
		for _, name := range stages {
			if st == name {
				continue outer
			}
		}
		r = append(r, e)
	}
	return r
}

// String renders the set back into the mini-language.
func (s *Set) String() string {
	segs := make([]string, len(s.entries))
	for i, e := range s.entries {
		segs[i] = e.String()
	}
	return strings.Join(segs, ";")
}
