package preflight_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/varbench/preflight"
)

func writeBAM(t *testing.T, path string, refs map[string]int) {
	var srefs []*sam.Reference
	for _, name := range []string{"chr1", "chr2", "chrX"} {
		n, ok := refs[name]
		if !ok {
			continue
		}
		ref, err := sam.NewReference(name, "", "", n, nil, nil)
		assert.NoError(t, err)
		srefs = append(srefs, ref)
	}
	header, err := sam.NewHeader(nil, srefs)
	assert.NoError(t, err)
	f, err := os.Create(path)
	assert.NoError(t, err)
	w, err := bam.NewWriter(f, header, 1)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, f.Close())
}

func TestCheckInputs(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	fai := filepath.Join(tmpdir, "genome.fa.fai")
	assert.NoError(t, ioutil.WriteFile(fai, []byte("chr1\t1000\t6\t60\t61\nchr2\t500\t1030\t60\t61\n"), 0644))

	good := filepath.Join(tmpdir, "good.bam")
	writeBAM(t, good, map[string]int{"chr1": 1000, "chr2": 500})
	subset := filepath.Join(tmpdir, "subset.bam")
	writeBAM(t, subset, map[string]int{"chr2": 500})
	expect.NoError(t, preflight.CheckInputs(ctx, fai, good, subset))

	extra := filepath.Join(tmpdir, "extra.bam")
	writeBAM(t, extra, map[string]int{"chr1": 1000, "chrX": 300})
	expect.True(t, preflight.CheckInputs(ctx, fai, good, extra) != nil)

	length := filepath.Join(tmpdir, "length.bam")
	writeBAM(t, length, map[string]int{"chr1": 999})
	expect.True(t, preflight.CheckInputs(ctx, fai, length) != nil)

	expect.True(t, preflight.CheckInputs(ctx, fai, filepath.Join(tmpdir, "missing.bam")) != nil)
	expect.True(t, preflight.CheckInputs(ctx, filepath.Join(tmpdir, "missing.fai"), good) != nil)
}
