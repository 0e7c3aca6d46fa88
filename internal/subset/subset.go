// Package subset restricts an indexed VCF to the positions listed in a
// sites file.
package subset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/normalize"
	"github.com/JaydenBeckwith/DNAtools/internal/output"
	"github.com/JaydenBeckwith/DNAtools/internal/sites"
	"github.com/JaydenBeckwith/DNAtools/internal/vcf"
)

// Stats summarises one subsetting run.
type Stats struct {
	Sites     int // entries in the sites file
	Positions int // distinct (chrom, pos) queried
	Records   int // records written
}

// Subsetter writes the records of an indexed VCF found at listed positions.
type Subsetter struct {
	logger *zap.Logger
}

// New creates a Subsetter.
func New() *Subsetter {
	return &Subsetter{logger: zap.NewNop()}
}

// SetLogger sets the logger for info messages.
func (s *Subsetter) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Subset writes to out, as plain VCF, the header of vcfPath and every record
// whose CHROM and POS match an entry of sitesPath. Matching ignores alleles,
// so all records at a listed position are kept. vcfPath must be BGZF
// compressed with a CSI or tabix index.
func (s *Subsetter) Subset(vcfPath, sitesPath, out string) (*Stats, error) {
	listed, err := sites.Read(sitesPath)
	if err != nil {
		return nil, err
	}
	positions := sites.Unique(listed)
	stats := &Stats{Sites: len(listed), Positions: len(positions)}

	header, err := readHeader(vcfPath)
	if err != nil {
		return nil, err
	}

	idx, err := normalize.ReadIndex(vcfPath)
	if err != nil {
		return nil, err
	}

	src, err := os.Open(vcfPath)
	if err != nil {
		return nil, fmt.Errorf("open vcf: %w", err)
	}
	defer src.Close()

	br, err := bgzf.NewReader(src, 1)
	if err != nil {
		return nil, fmt.Errorf("read bgzf %s: %w", vcfPath, err)
	}
	defer br.Close()

	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("create subset vcf: %w", err)
	}

	vw := output.NewVCFWriter(f, header)
	err = vw.WriteHeader()
	for i := 0; err == nil && i < len(positions); i++ {
		err = s.query(br, idx, positions[i], vw)
	}
	if err == nil {
		err = vw.Flush()
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write subset vcf: %w", err)
	}
	stats.Records = vw.Records()

	if err := output.Require("subset", out); err != nil {
		return nil, err
	}

	s.logger.Info("subset vcf written",
		zap.String("path", out),
		zap.Int("sites", stats.Sites),
		zap.Int("positions", stats.Positions),
		zap.Int("records", stats.Records))
	return stats, nil
}

// query writes every record at site's position.
func (s *Subsetter) query(br *bgzf.Reader, idx *normalize.Index, site sites.Site, vw *output.VCFWriter) error {
	chunks, err := idx.Chunks(site.Chrom, int(site.Pos-1), int(site.Pos))
	if err != nil {
		return fmt.Errorf("query %s:%d: %w", site.Chrom, site.Pos, err)
	}
	if len(chunks) == 0 {
		s.logger.Debug("position not in index",
			zap.String("chrom", site.Chrom),
			zap.Int64("pos", site.Pos))
		return nil
	}

	cr, err := index.NewChunkReader(br, chunks)
	if err != nil {
		return fmt.Errorf("seek %s:%d: %w", site.Chrom, site.Pos, err)
	}
	defer cr.Close()

	r := bufio.NewReader(cr)
	for {
		line, err := r.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s:%d: %w", site.Chrom, site.Pos, err)
		}
		if strings.TrimRight(line, "\r\n") == "" || line[0] == '#' {
			continue
		}

		chrom, pos, perr := vcf.ParsePosition(line)
		if perr != nil {
			return fmt.Errorf("read %s:%d: %w", site.Chrom, site.Pos, perr)
		}
		// Chunks cover whole bins; keep only the exact position.
		if chrom != site.Chrom || pos != site.Pos {
			if chrom == site.Chrom && pos > site.Pos {
				return nil
			}
			continue
		}
		if werr := vw.WriteRecord(line); werr != nil {
			return werr
		}
	}
}

// readHeader returns the header lines of the VCF at path.
func readHeader(path string) ([]string, error) {
	parser, err := vcf.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	return parser.Header(), nil
}
