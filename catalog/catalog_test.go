package catalog_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/varbench/catalog"
	"github.com/grailbio/varbench/params"
	"github.com/grailbio/varbench/settings"
)

var testSettings = settings.Default("/pipe")

const testCatalog = `MuTect2	--minPruning=3;-rf=BadCigar

CaVEMan	setup:-t=/in/tumour.bam;setup:-n=/in/normal.bam
MuTect2	--minPruning=5
Strelka
`

func TestParse(t *testing.T) {
	c, err := catalog.Parse(strings.NewReader(testCatalog), testSettings)
	assert.NoError(t, err)
	expect.EQ(t, c.Tools(), []catalog.Tool{catalog.MuTect2, catalog.CaVEMan, catalog.Strelka})
	expect.EQ(t, c.Len(), 4)

	mutect := c.Configurations(catalog.MuTect2)
	expect.EQ(t, len(mutect), 2)
	expect.EQ(t, mutect[0].Ordinal, 1)
	expect.EQ(t, mutect[0].Params.String(), "--minPruning=3;-rf=BadCigar")
	expect.EQ(t, mutect[1].Ordinal, 2)
	expect.EQ(t, mutect[1].Name(), "MuTect2_2")
	expect.EQ(t, mutect[1].DirName(), "config_2")

	strelka := c.Configurations(catalog.Strelka)
	expect.EQ(t, strelka[0].Params.Len(), 0)

	var names []string
	for _, cfg := range c.All() {
		names = append(names, cfg.Name())
	}
	expect.EQ(t, names, []string{"MuTect2_1", "MuTect2_2", "CaVEMan_1", "Strelka_1"})
}

func TestIgnoreRegionsDefault(t *testing.T) {
	c, err := catalog.Parse(strings.NewReader(testCatalog), testSettings)
	assert.NoError(t, err)
	cfg := c.Configurations(catalog.CaVEMan)[0]
	e, ok := cfg.Params.Get(catalog.IgnoreRegionsFlag)
	expect.True(t, ok)
	expect.EQ(t, e.Value, testSettings.EmptyIgnoreRegions)

	// Adding the same parameters again must not duplicate the key.
	c.Add(catalog.CaVEMan, cfg.Params)
	n := 0
	for _, e := range cfg.Params.Entries() {
		if e.Key == catalog.IgnoreRegionsFlag {
			n++
		}
	}
	expect.EQ(t, n, 1)
	expect.EQ(t, len(c.Configurations(catalog.CaVEMan)), 2)

	// An explicit value is kept.
	p, err := params.Parse("setup:-g=/beds/ignore.tab")
	assert.NoError(t, err)
	c.Add(catalog.CaVEMan, p)
	e, _ = p.Get(catalog.IgnoreRegionsFlag)
	expect.EQ(t, e.Value, "/beds/ignore.tab")

	// Other tools get no injected flag.
	p, err = params.Parse("")
	assert.NoError(t, err)
	c.Add(catalog.VarScan, p)
	expect.EQ(t, p.Len(), 0)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in   string
		line int
	}{
		{"MuTect2\t-a=1\textra\n", 1},
		{"MuTect2\t-a=1\n\nStrelka\t=x\n", 3},
		{"Strelka\t-a=1;-a=2\n", 1},
	}
	for _, tt := range tests {
		_, err := catalog.Parse(strings.NewReader(tt.in), testSettings)
		perr, ok := err.(*params.ParseError)
		if !ok {
			t.Errorf("%q: expect *params.ParseError, got %v", tt.in, err)
			continue
		}
		expect.EQ(t, perr.Line, tt.line, tt.in)
	}

	_, err := catalog.Parse(strings.NewReader("MuTect2\n\nmutect\t-a=1\n"), testSettings)
	uerr, ok := err.(*catalog.UnknownToolError)
	assert.True(t, ok, "err: %v", err)
	expect.EQ(t, uerr.Line, 3)
	expect.EQ(t, uerr.Keyword, "mutect")
}

func TestMakeDirs(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	c, err := catalog.Parse(strings.NewReader("CaVEMan\tsetup:-t=/in/t.bam;split:--debug\nVarScan\t--min-coverage=8\n"), testSettings)
	assert.NoError(t, err)
	root := filepath.Join(tmpdir, "benchmark")
	assert.NoError(t, c.MakeDirs(ctx, root))

	cav := c.Configurations(catalog.CaVEMan)[0]
	expect.EQ(t, cav.Dir, filepath.Join(root, "CaVEMan", "config_1"))
	data, err := ioutil.ReadFile(filepath.Join(cav.Dir, catalog.ListingFilename))
	assert.NoError(t, err)
	expect.EQ(t, string(data), "setup:-t\t/in/t.bam\nsplit:--debug\tNA\nsetup:-g\t/pipe/ref_beds/empty.bed\n")

	// The listing parses back into the same parameters.
	f, err := os.Open(filepath.Join(cav.Dir, catalog.ListingFilename))
	assert.NoError(t, err)
	defer f.Close()
	got, err := params.ReadListing(f)
	assert.NoError(t, err)
	expect.EQ(t, got.Entries(), cav.Params.Entries())

	_, err = os.Stat(filepath.Join(root, "VarScan", "config_1", catalog.ListingFilename))
	expect.NoError(t, err)
}

func TestMakeDirsCollision(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	c, err := catalog.Parse(strings.NewReader("VarScan\n"), testSettings)
	assert.NoError(t, err)
	root := filepath.Join(tmpdir, "benchmark")
	assert.NoError(t, c.MakeDirs(ctx, root))

	c, err = catalog.Parse(strings.NewReader("VarScan\n"), testSettings)
	assert.NoError(t, err)
	err = c.MakeDirs(ctx, root)
	cerr, ok := err.(*catalog.DirectoryCollisionError)
	assert.True(t, ok, "err: %v", err)
	expect.EQ(t, cerr.Path, root)
}

func TestToolDescriptor(t *testing.T) {
	for _, tool := range catalog.Tools {
		got, ok := catalog.ParseTool(tool.String())
		expect.True(t, ok)
		expect.EQ(t, got, tool)
		d := tool.Descriptor(testSettings)
		expect.True(t, d.Executable != "", tool)
	}
	_, ok := catalog.ParseTool("caveman")
	expect.False(t, ok)
	expect.True(t, catalog.CaVEMan.MultiStage())
	expect.False(t, catalog.Strelka.MultiStage())
	expect.EQ(t, catalog.Strelka.Descriptor(testSettings).Template,
		"/pipe/tools/strelka/etc/strelka_config_bwa_default.ini")
}
