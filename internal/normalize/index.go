package normalize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/csi"
	"github.com/biogo/hts/tabix"
	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
)

// Column layout stored in the CSI auxiliary header, as htslib writes it
// for VCF: sequence name in column 1, 1-based position in column 2, end
// derived from REF, '#' header lines.
const (
	vcfFormat      = 2
	vcfNameColumn  = 1
	vcfBeginColumn = 2
	vcfMetaChar    = '#'
)

func newBGZFWriter(w io.Writer, workers int) *bgzf.Writer {
	return bgzf.NewWriter(w, workers)
}

// Index answers region queries against a compressed VCF. It is read from a
// CSI file, or from a tabix file produced by other tools.
type Index struct {
	names []string
	ids   map[string]int
	csi   *csi.Index
	tbi   *tabix.Index
}

// Names returns the chromosomes in index order.
func (x *Index) Names() []string {
	return x.names
}

// Chunks returns the BGZF chunks that may hold records overlapping the
// 0-based half-open interval [beg, end) of chrom. Unknown chromosomes
// yield no chunks.
func (x *Index) Chunks(chrom string, beg, end int) ([]bgzf.Chunk, error) {
	if x.tbi != nil {
		chunks, err := x.tbi.Chunks(chrom, beg, end)
		if errors.Is(err, index.ErrNoReference) || errors.Is(err, index.ErrInvalid) {
			return nil, nil
		}
		return chunks, err
	}
	id, ok := x.ids[chrom]
	if !ok {
		return nil, nil
	}
	return x.csi.Chunks(id, beg, end), nil
}

// locus is a VCF record's reference span in 0-based half-open coordinates.
type locus struct {
	chrom      string
	id         int
	start, end int
}

func (l locus) RefID() int { return l.id }
func (l locus) Start() int { return l.start }
func (l locus) End() int   { return l.end }

// parseLocus reads CHROM, POS and REF from a raw VCF data line.
func parseLocus(line string) (locus, error) {
	fields := strings.SplitN(line, "\t", 5)
	if len(fields) < 5 {
		return locus{}, fmt.Errorf("expected at least 5 columns, found %d", len(fields))
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil || pos < 1 {
		return locus{}, fmt.Errorf("invalid position: %s", fields[1])
	}
	span := len(fields[3])
	if span == 0 {
		span = 1
	}
	return locus{chrom: fields[0], start: pos - 1, end: pos - 1 + span}, nil
}

// BuildIndex writes a CSI index for the BGZF-compressed VCF at path to
// IndexPath(path). Records must be sorted by chromosome and position, with
// each chromosome in one contiguous run.
func (n *Normalizer) BuildIndex(path string) error {
	idx, names, records, err := buildIndex(path)
	if err != nil {
		return err
	}

	idxPath := IndexPath(path)
	if err := writeIndex(idxPath, idx); err != nil {
		os.Remove(idxPath)
		return err
	}
	if err := output.Require("index", idxPath); err != nil {
		return err
	}

	n.logger.Info("wrote csi index",
		zap.String("path", idxPath),
		zap.Int("records", records),
		zap.Int("chromosomes", len(names)))
	return nil
}

func buildIndex(path string) (*csi.Index, []string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("open compressed vcf: %w", err)
	}
	defer f.Close()

	r, err := bgzf.NewReader(f, 1)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read bgzf %s: %w", path, err)
	}
	defer r.Close()

	idx := csi.New(csi.DefaultShift, csi.DefaultDepth)
	var (
		names   []string
		ids     = make(map[string]int)
		line    []byte
		lineNum int
		records int
	)
	for {
		var chunk bgzf.Chunk
		line, chunk, err = readLine(r, line[:0])
		if err != nil && err != io.EOF {
			return nil, nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
		if len(line) == 0 {
			break
		}
		lineNum++

		text := strings.TrimRight(string(line), "\r\n")
		if text != "" && text[0] != vcfMetaChar {
			loc, perr := parseLocus(text)
			if perr != nil {
				return nil, nil, 0, fmt.Errorf("index %s line %d: %w", path, lineNum, perr)
			}
			id, ok := ids[loc.chrom]
			if !ok {
				id = len(names)
				ids[loc.chrom] = id
				names = append(names, loc.chrom)
			}
			loc.id = id
			if aerr := idx.Add(loc, chunk, true, true); aerr != nil {
				return nil, nil, 0, fmt.Errorf("index %s line %d (%s:%d): %w", path, lineNum, loc.chrom, loc.start+1, aerr)
			}
			records++
		}

		if err == io.EOF {
			break
		}
	}

	idx.Auxilliary = encodeAux(names)
	return idx, names, records, nil
}

// readLine appends the next line, including its '\n', to buf and returns
// the virtual-offset chunk it occupies. The chunk starts at the line's
// first byte, so a reader seeking to it lands on the record.
func readLine(r *bgzf.Reader, buf []byte) ([]byte, bgzf.Chunk, error) {
	var chunk bgzf.Chunk
	for {
		b, err := r.ReadByte()
		if err != nil {
			return buf, chunk, err
		}
		last := r.LastChunk()
		if len(buf) == 0 {
			chunk.Begin = last.Begin
		}
		chunk.End = last.End
		buf = append(buf, b)
		if b == '\n' {
			return buf, chunk, nil
		}
	}
}

// encodeAux lays out the tabix-style header htslib stores in a VCF CSI:
// six int32 column settings, then the NUL-terminated sequence names.
func encodeAux(names []string) []byte {
	var nm bytes.Buffer
	for _, name := range names {
		nm.WriteString(name)
		nm.WriteByte(0)
	}

	var buf bytes.Buffer
	for _, v := range []int32{vcfFormat, vcfNameColumn, vcfBeginColumn, 0, vcfMetaChar, 0, int32(nm.Len())} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.Write(nm.Bytes())
	return buf.Bytes()
}

// decodeAux returns the sequence names of a CSI auxiliary header.
func decodeAux(aux []byte) ([]string, error) {
	const fixed = 7 * 4
	if len(aux) < fixed {
		return nil, fmt.Errorf("csi auxiliary data too short: %d bytes", len(aux))
	}
	n := int(int32(binary.LittleEndian.Uint32(aux[fixed-4:])))
	if n < 0 || fixed+n > len(aux) {
		return nil, fmt.Errorf("csi names length %d out of range", n)
	}
	var names []string
	for _, name := range bytes.Split(aux[fixed:fixed+n], []byte{0}) {
		if len(name) > 0 {
			names = append(names, string(name))
		}
	}
	return names, nil
}

func writeIndex(path string, idx *csi.Index) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close index: %w", cerr)
		}
	}()

	// The index itself is stored as BGZF.
	bw := bgzf.NewWriter(f, 1)
	if err := csi.WriteTo(bw, idx); err != nil {
		bw.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("finish index: %w", err)
	}
	return nil
}

// ReadIndex loads the index of the compressed VCF at path, preferring the
// CSI written by BuildIndex over a tabix file.
func ReadIndex(path string) (*Index, error) {
	if output.Exists(IndexPath(path)) {
		return readCSI(IndexPath(path))
	}
	if output.Exists(TabixPath(path)) {
		return readTabix(TabixPath(path))
	}
	return nil, fmt.Errorf("open index for %s: %w", path, fs.ErrNotExist)
}

// openBGZF opens a BGZF file and passes its decompressed stream to fn.
func openBGZF(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	r, err := bgzf.NewReader(f, 1)
	if err != nil {
		return fmt.Errorf("read index %s: %w", path, err)
	}
	defer r.Close()
	return fn(r)
}

func readCSI(path string) (*Index, error) {
	x := &Index{ids: make(map[string]int)}
	err := openBGZF(path, func(r io.Reader) error {
		idx, err := csi.ReadFrom(r)
		if err != nil {
			return fmt.Errorf("decode index %s: %w", path, err)
		}
		names, err := decodeAux(idx.Auxilliary)
		if err != nil {
			return fmt.Errorf("decode index %s: %w", path, err)
		}
		x.csi = idx
		x.names = names
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, name := range x.names {
		x.ids[name] = i
	}
	return x, nil
}

func readTabix(path string) (*Index, error) {
	x := &Index{}
	err := openBGZF(path, func(r io.Reader) error {
		idx, err := tabix.ReadFrom(r)
		if err != nil {
			return fmt.Errorf("decode index %s: %w", path, err)
		}
		if idx == nil {
			// tabix writes no header for a file without records.
			idx = tabix.New()
		}
		x.tbi = idx
		x.names = idx.Names()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return x, nil
}
