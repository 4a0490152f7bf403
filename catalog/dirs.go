package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// ListingFilename is the name of the parameter listing written into each
// configuration directory.
const ListingFilename = "benchmark_config.txt"

// DirectoryCollisionError is returned when an output directory already
// exists. Existing benchmark runs are never merged into or overwritten.
type DirectoryCollisionError struct {
	Path string
}

func (e *DirectoryCollisionError) Error() string {
	return fmt.Sprintf("output directory already exists: %s", e.Path)
}

// MakeDirs creates root, one directory per tool and one config_<ordinal>
// directory per configuration, in that order, and binds each
// configuration's Dir. It then writes each configuration's parameter
// listing. Any directory that already exists is a *DirectoryCollisionError;
// directories created before the error are left in place.
func (c *Catalog) MakeDirs(ctx context.Context, root string) error {
	if err := mkdir(root); err != nil {
		return err
	}
	for _, tool := range c.tools {
		toolDir := filepath.Join(root, tool.String())
		if err := mkdir(toolDir); err != nil {
			return err
		}
		for _, cfg := range c.configs[tool] {
			dir := filepath.Join(toolDir, cfg.DirName())
			if err := mkdir(dir); err != nil {
				return err
			}
			cfg.Dir = dir
			if err := writeListing(ctx, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

func mkdir(path string) error {
	log.Debug.Printf("create directory %s", path)
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return &DirectoryCollisionError{Path: path}
		}
		return errors.E(err, "create directory", path)
	}
	return nil
}

func writeListing(ctx context.Context, cfg *Configuration) (err error) {
	path := filepath.Join(cfg.Dir, ListingFilename)
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create parameter listing", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = cfg.Params.WriteListing(out.Writer(ctx)); err != nil {
		return errors.E(err, "write parameter listing", path)
	}
	return nil
}
