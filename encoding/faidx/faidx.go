// Package faidx reads and writes FASTA index files (*.fai).
//
// The index format is defined by "samtools faidx"
// (http://www.htslib.org/doc/faidx.html): one line per reference sequence,
// with five TAB-separated columns NAME, LENGTH, OFFSET, LINEBASES, LINEWIDTH.
// The number of records determines how many split, mstep and estep tasks a
// CaVEMan run fans out to.
package faidx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Entry is one index record.
type Entry struct {
	Name      string
	Length    int64
	Offset    int64
	LineBases int64
	LineWidth int64
}

// Build scans FASTA data and returns one entry per sequence.
func Build(in io.Reader) ([]Entry, error) {
	var (
		r       = bufio.NewReader(in)
		entries []Entry
		cur     *Entry
		cumByte int64
		eof     bool
	)
	for !eof {
		fullLine, err := r.ReadBytes('\n')
		if err == io.EOF { // Process fullLine, then exit the loop
			eof = true
		} else if err != nil {
			return nil, err
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			entries = append(entries, Entry{
				Name:   strings.Split(string(line[1:]), " ")[0],
				Offset: cumByte,
			})
			cur = &entries[len(entries)-1]
			continue
		}
		if cur == nil {
			return nil, errors.E(errors.Invalid, "malformed FASTA file: sequence data before first header")
		}
		if cur.LineWidth == 0 {
			cur.LineWidth = int64(len(fullLine))
			cur.LineBases = int64(len(line))
		}
		cur.Length += int64(len(line))
	}
	if cumByte == 0 {
		return nil, errors.E(errors.Invalid, "empty FASTA file")
	}
	return entries, nil
}

// Write writes entries in faidx format.
func Write(out io.Writer, entries []Entry) error {
	w := tsv.NewWriter(out)
	for _, e := range entries {
		w.WriteString(e.Name)
		w.WriteInt64(e.Length)
		w.WriteInt64(e.Offset)
		w.WriteInt64(e.LineBases)
		w.WriteInt64(e.LineWidth)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// GenerateIndex generates an index from FASTA.
func GenerateIndex(out io.Writer, in io.Reader) error {
	entries, err := Build(in)
	if err != nil {
		return err
	}
	return Write(out, entries)
}

var recordRegExp = regexp.MustCompile(`^(\S+)\t(\d+)\t(\d+)\t(\d+)\t(\d+)$`)

// Read parses an index. Every non-empty line must be a five-column faidx
// record.
func Read(in io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(in)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		m := recordRegExp.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid index line %d: %s", n, line))
		}
		e := Entry{Name: m[1]}
		e.Length, _ = strconv.ParseInt(m[2], 10, 64)
		e.Offset, _ = strconv.ParseInt(m[3], 10, 64)
		e.LineBases, _ = strconv.ParseInt(m[4], 10, 64)
		e.LineWidth, _ = strconv.ParseInt(m[5], 10, 64)
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile parses the index at path.
func ReadFile(ctx context.Context, path string) ([]Entry, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open index", path)
	}
	entries, err := Read(in.Reader(ctx))
	if e := in.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(err, path)
	}
	return entries, nil
}

// Count returns the number of records in the index at path.
func Count(ctx context.Context, path string) (int, error) {
	entries, err := ReadFile(ctx, path)
	return len(entries), err
}

// GenerateFile writes the index of the FASTA file fastaPath to indexPath.
func GenerateFile(ctx context.Context, fastaPath, indexPath string) (err error) {
	in, err := file.Open(ctx, fastaPath)
	if err != nil {
		return errors.E(err, "open reference", fastaPath)
	}
	defer in.Close(ctx) // nolint: errcheck
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return errors.E(err, "create index", indexPath)
	}
	if err = GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		out.Discard(ctx)
		return errors.E(err, "index", fastaPath)
	}
	return out.Close(ctx)
}
