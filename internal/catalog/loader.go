package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/skinconsult/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// file is the on-disk catalog shape shared by the JSON and TOML formats.
type file struct {
	Products []domain.ProductRecord `json:"products" toml:"products"`
}

// Load reads a catalog file. The format is chosen by extension: .toml files
// are parsed as TOML, everything else as JSON (either a bare array or an
// object with a "products" array).
//
// A missing or unparseable file yields an empty index and the error, so
// callers can log it and keep serving.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("read catalog %s: %w", path, err)
	}

	records, err := decode(path, data)
	if err != nil {
		return Empty(), fmt.Errorf("parse catalog %s: %w", path, err)
	}

	idx := New(records)
	slog.Info("Product catalog loaded", "path", path, "products", idx.Len())
	return idx, nil
}

func decode(path string, data []byte) ([]domain.ProductRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var f file
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return f.Products, nil
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []domain.ProductRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Products, nil
}

// CheckDomain returns the names of products whose URL is outside domain.
func (i *Index) CheckDomain(domainPrefix string) []string {
	var bad []string
	for _, p := range i.products {
		if !strings.HasPrefix(p.URL, domainPrefix) {
			bad = append(bad, p.Name)
		}
	}
	return bad
}
