package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed menu.yaml
var defaultMenu []byte

// vendorSpec is the on-disk shape of a vendor: dishes are plain names.
type vendorSpec struct {
	Name   string   `koanf:"name"`
	Group  string   `koanf:"group"`
	Dishes []string `koanf:"dishes"`
}

type document struct {
	Vendors []vendorSpec `koanf:"vendors"`
}

// Load reads a YAML catalog from path, or the embedded default menu when
// path is empty.
func Load(_ context.Context, path string) (*Catalog, error) {
	var p koanf.Provider = rawbytes.Provider(defaultMenu)
	if path != "" {
		p = file.Provider(path)
	}
	return load(p)
}

// Parse builds a catalog from raw YAML bytes.
func Parse(_ context.Context, raw []byte) (*Catalog, error) {
	return load(rawbytes.Provider(raw))
}

// Default returns the embedded menu. It panics if the embedded file is
// broken, which can only happen at build time.
func Default() *Catalog {
	c, err := load(rawbytes.Provider(defaultMenu))
	if err != nil {
		panic(err)
	}
	return c
}

func load(p koanf.Provider) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}

	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCatalog, err)
	}

	vendors := make([]Vendor, 0, len(doc.Vendors))
	for _, s := range doc.Vendors {
		v := Vendor{Name: s.Name, Group: s.Group, Dishes: make([]Dish, 0, len(s.Dishes))}
		for _, d := range s.Dishes {
			v.Dishes = append(v.Dishes, Dish{Name: d})
		}
		vendors = append(vendors, v)
	}
	return New(vendors)
}
