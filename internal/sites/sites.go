// Package sites reduces a filtered-row table to a VCF-shaped listing of
// the retained positions.
package sites

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
	"github.com/JaydenBeckwith/DNAtools/internal/vcf"
)

// DefaultFileName is the name of the sites file written next to the input.
const DefaultFileName = "exact_sites.vcf"

// Site is one retained position.
type Site struct {
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
}

// Builder writes sites files.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{logger: zap.NewNop()}
}

// SetLogger sets the logger for info messages.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Build reads the filtered-row table at tsvPath and writes one site per row
// to sitesPath, in table order. It returns the number of sites written.
func (b *Builder) Build(tsvPath, sitesPath string) (int, error) {
	in, err := os.Open(tsvPath)
	if err != nil {
		return 0, fmt.Errorf("open filtered table: %w", err)
	}
	defer in.Close()

	rows, err := output.ReadFilteredRows(in)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", tsvPath, err)
	}

	f, err := os.Create(sitesPath)
	if err != nil {
		return 0, fmt.Errorf("create sites file: %w", err)
	}

	sw := output.NewSitesWriter(f)
	err = sw.WriteHeader()
	for i := 0; err == nil && i < len(rows); i++ {
		r := &rows[i]
		err = sw.Write(r.Chrom, r.Pos, r.Ref, r.Alt)
	}
	if err == nil {
		err = sw.Flush()
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write sites file: %w", err)
	}

	if err := output.Require("sites", sitesPath); err != nil {
		return 0, err
	}

	b.logger.Info("sites file created",
		zap.String("path", sitesPath),
		zap.Int("sites", len(rows)))
	return len(rows), nil
}

// Read loads the sites listed in a sites file.
func Read(path string) ([]Site, error) {
	parser, err := vcf.NewParser(path)
	if err != nil {
		return nil, fmt.Errorf("read sites: %w", err)
	}
	defer parser.Close()

	var out []Site
	for {
		v, err := parser.Next()
		if err != nil {
			return nil, fmt.Errorf("read sites: %w", err)
		}
		if v == nil {
			break
		}
		out = append(out, Site{Chrom: v.Chrom, Pos: v.Pos, Ref: v.Ref, Alt: v.Alt})
	}
	return out, nil
}

// Unique returns the first site at each (chrom, pos), preserving order.
// Alleles are ignored: sites select positions, not variants.
func Unique(in []Site) []Site {
	type key struct {
		chrom string
		pos   int64
	}
	seen := make(map[key]bool, len(in))
	out := make([]Site, 0, len(in))
	for _, s := range in {
		k := key{s.Chrom, s.Pos}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
