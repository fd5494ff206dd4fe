// Package catalogfile reads catalogs from YAML or JSON files.
//
// Two layouts are accepted: a document with id, name and items keys, or a
// bare sequence of items.  JSON is read by the same YAML decoder.
package catalogfile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// maxFileSize bounds catalog files read from disk.
const maxFileSize = 4 << 20

// File is a decoded catalog file.
type File struct {
	Request planning.SaveCatalogRequest
	Catalog *catalog.Catalog
}

// Load reads path.  A file without an id takes its base name without
// extension.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "cannot open catalog file").WithDetail(path)
	}
	defer f.Close()

	base := filepath.Base(path)
	return Decode(f, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Decode parses r.  defaultID is used when the document names no id.
func Decode(r io.Reader, defaultID string) (*File, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "cannot read catalog file")
	}
	if len(data) > maxFileSize {
		return nil, errors.InvalidConfig("catalog file too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.InvalidConfig("catalog file is empty")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "malformed catalog file")
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	var req planning.SaveCatalogRequest
	switch doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&req.Items)
	case yaml.MappingNode:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&req)
	default:
		return nil, errors.InvalidConfig("catalog file must be a mapping or a list of items")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "malformed catalog file")
	}

	if req.ID == "" {
		req.ID = defaultID
	}
	if err := planning.ValidateStruct(&req); err != nil {
		return nil, err
	}
	c, err := req.Catalog()
	if err != nil {
		return nil, err
	}
	return &File{Request: req, Catalog: c}, nil
}

// Encode writes c as a YAML document in the mapping layout.
func Encode(w io.Writer, id, name string, c *catalog.Catalog) error {
	doc := planning.SaveCatalogRequest{ID: id, Name: name}
	for _, it := range c.Items() {
		doc.Items = append(doc.Items, planning.ItemInputFrom(it))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode catalog")
	}
	return enc.Close()
}
