// internal/seed/seed.go

// Package seed bootstraps a registry from a TOML file.
//
//	[[items]]
//	id = "B001"
//	title = "Clean Code"
//	author = "Robert Martin"
//
//	[[members]]
//	id = "M001"
//	name = "Alice"
//	max_items = 3
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"lendingregistry/internal/circulation"
)

// File is the decoded seed document.
type File struct {
	Items   []Item   `toml:"items"`
	Members []Member `toml:"members"`
}

type Item struct {
	ID     string `toml:"id"`
	Title  string `toml:"title"`
	Author string `toml:"author"`
}

type Member struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	MaxItems int    `toml:"max_items"`
}

// Decode reads a seed document; unknown keys are rejected.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// LoadFile decodes the seed document at path.
func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Apply registers every item and member, stopping at the first failure.
func (f File) Apply(ctx context.Context, reg circulation.Registry) error {
	for _, it := range f.Items {
		if _, err := reg.RegisterItem(ctx, it.ID, it.Title, it.Author); err != nil {
			return fmt.Errorf("seed item %q: %w", it.ID, err)
		}
	}
	for _, m := range f.Members {
		if _, err := reg.RegisterMember(ctx, m.ID, m.Name, m.MaxItems); err != nil {
			return fmt.Errorf("seed member %q: %w", m.ID, err)
		}
	}
	return nil
}
