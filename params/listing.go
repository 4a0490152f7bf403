package params

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/tsv"
)

// NA is the value written for toggle flags in a persisted listing.
const NA = "NA"

// WriteListing writes one "flag<TAB>value" line per entry, in order. Toggle
// flags are written with the value NA.
func (s *Set) WriteListing(w io.Writer) error {
	tw := tsv.NewWriter(w)
	for _, e := range s.entries {
		v := e.Value
		if !e.HasValue {
			v = NA
		}
		tw.WriteString(e.Key)
		tw.WriteString(v)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadListing parses a listing written by WriteListing. Each line is split on
// its first TAB; the value is taken verbatim. A value of NA is read back as a
// toggle flag.
func ReadListing(r io.Reader) (*Set, error) {
	scanner := bufio.NewScanner(r)
	s := &Set{}
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		cols := strings.SplitN(text, "\t", 2)
		if len(cols) != 2 || cols[0] == "" {
			return nil, &ParseError{Line: line, Spec: text, Msg: "expect flag<TAB>value"}
		}
		flag, value := cols[0], cols[1]
		if s.Has(flag) {
			return nil, &ParseError{Line: line, Spec: flag, Msg: "flag listed more than once"}
		}
		if value == NA {
			s.put(Entry{Key: flag})
		} else {
			s.Set(flag, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
