// Package preflight checks benchmark inputs before any output is created.
package preflight

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/varbench/encoding/faidx"
)

// CheckInputs verifies that every reference sequence in the header of each
// BAM is present in the FASTA index at indexPath with the same length.
func CheckInputs(ctx context.Context, indexPath string, bamPaths ...string) error {
	entries, err := faidx.ReadFile(ctx, indexPath)
	if err != nil {
		return err
	}
	lengths := make(map[string]int64, len(entries))
	for _, e := range entries {
		lengths[e.Name] = e.Length
	}
	for _, path := range bamPaths {
		if err := checkBAM(ctx, path, lengths); err != nil {
			return err
		}
		log.Debug.Printf("preflight: %s matches %s", path, indexPath)
	}
	return nil
}

func checkBAM(ctx context.Context, path string, lengths map[string]int64) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "open", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return errors.E(err, "read BAM header", path)
	}
	defer r.Close() // nolint: errcheck
	for _, ref := range r.Header().Refs() {
		n, ok := lengths[ref.Name()]
		if !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("%s: reference %s not in index", path, ref.Name()))
		}
		if n != int64(ref.Len()) {
			return errors.E(errors.Invalid, fmt.Sprintf("%s: reference %s has length %d, index says %d", path, ref.Name(), ref.Len(), n))
		}
	}
	return nil
}
