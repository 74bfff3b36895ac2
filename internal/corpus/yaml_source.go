package corpus

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// document is the on-disk shape of one corpus file.
type document struct {
	Entries []Entry `yaml:"entries"`
}

// FSSource reads every *.yaml file at the root of an fs.FS. Files are parsed
// concurrently and concatenated in lexical file-name order.
type FSSource struct {
	name string
	fsys fs.FS
}

// Embedded returns the sample corpus compiled into the binary.
func Embedded() *FSSource {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(fmt.Sprintf("embedded corpus: %v", err))
	}
	return &FSSource{name: "embedded", fsys: sub}
}

// Dir returns a source over the YAML files in dir.
func Dir(dir string) *FSSource {
	return &FSSource{name: "dir:" + dir, fsys: os.DirFS(dir)}
}

// NewFSSource wraps an arbitrary filesystem; tests use fstest.MapFS.
func NewFSSource(name string, fsys fs.FS) *FSSource {
	return &FSSource{name: name, fsys: fsys}
}

func (s *FSSource) Name() string {
	return s.name
}

func (s *FSSource) Load(ctx context.Context) ([]Entry, error) {
	files, err := fs.Glob(s.fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("listing corpus files: %w", err)
	}
	sort.Strings(files)

	docs := make([]document, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(s.fsys, name)
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}
			if err := yaml.Unmarshal(data, &docs[i]); err != nil {
				return fmt.Errorf("parsing %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []Entry
	for _, doc := range docs {
		entries = append(entries, doc.Entries...)
	}
	return entries, nil
}
