package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const headerPrefix = "#CHROM"

// ParseError is a structural problem with a VCF line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

// Parser reads variants from a plain, gzip or BGZF VCF stream.
type Parser struct {
	r      *bufio.Reader
	closer io.Closer
	line   int
	header []string
}

// NewParser opens the VCF at path, or stdin for "-". Compression is
// detected from the gzip magic bytes, not the file name.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	p, err := newParser(f, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader reads a VCF from r. The caller keeps ownership of r.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	return newParser(r, nil)
}

func newParser(r io.Reader, closer io.Closer) (*Parser, error) {
	br := bufio.NewReader(r)
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		// BGZF is a series of gzip members; the gzip reader walks all of them.
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		br = bufio.NewReader(gz)
		closer = multiCloser{gz, closer}
	}

	p := &Parser{r: br, closer: closer}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// multiCloser closes a decompressor and then its source.
type multiCloser struct {
	gz  io.Closer
	src io.Closer
}

func (m multiCloser) Close() error {
	m.gz.Close()
	if m.src != nil {
		return m.src.Close()
	}
	return nil
}

// readLine returns the next line without its terminator. A final line
// without '\n' is returned normally; io.EOF follows it.
func (p *Parser) readLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	p.line++
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeader consumes the "##" meta lines and the "#CHROM" column line.
func (p *Parser) readHeader() error {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return &ParseError{Line: p.line, Message: "no #CHROM header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		switch {
		case strings.HasPrefix(line, headerPrefix):
			p.header = append(p.header, line)
			return nil
		case strings.HasPrefix(line, "##"):
			p.header = append(p.header, line)
		default:
			return &ParseError{Line: p.line, Message: "expected #CHROM header line"}
		}
	}
}

// Next returns the next record, skipping blank lines.
// It returns nil, nil at end of input.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line != "" {
			return p.parseRecord(line)
		}
	}
}

func (p *Parser) parseRecord(line string) (*Variant, error) {
	cols := strings.SplitN(line, "\t", numFixedCols+1)
	if len(cols) < numFixedCols {
		return nil, &ParseError{
			Line:    p.line,
			Message: fmt.Sprintf("expected at least %d columns, found %d", numFixedCols, len(cols)),
		}
	}

	pos, err := strconv.ParseInt(cols[colPos], 10, 64)
	if err != nil || pos < 1 {
		return nil, &ParseError{Line: p.line, Message: fmt.Sprintf("invalid position: %s", cols[colPos])}
	}

	v := &Variant{
		Chrom:   cols[colChrom],
		Pos:     pos,
		ID:      cols[colID],
		Ref:     cols[colRef],
		Alt:     cols[colAlt],
		Qual:    cols[colQual],
		Filter:  cols[colFilter],
		Info:    parseInfo(cols[colInfo]),
		RawInfo: cols[colInfo],
	}
	if len(cols) > numFixedCols {
		v.SampleColumns = cols[numFixedCols]
	}
	return v, nil
}

// ParsePosition reads CHROM and POS from a raw VCF data line without
// splitting the remaining columns.
func ParsePosition(line string) (chrom string, pos int64, err error) {
	chrom, rest, ok := strings.Cut(line, "\t")
	if !ok {
		return "", 0, fmt.Errorf("no POS column in %q", line)
	}
	rest, _, _ = strings.Cut(rest, "\t")
	pos, err = strconv.ParseInt(strings.TrimRight(rest, "\r\n"), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid position %q: %w", rest, err)
	}
	return chrom, pos, nil
}

// Header returns the "##" meta lines followed by the "#CHROM" line.
func (p *Parser) Header() []string {
	return p.header
}

// LineNumber returns the number of the line read last.
func (p *Parser) LineNumber() int {
	return p.line
}

// Close releases the decompressor and the file opened by NewParser.
func (p *Parser) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
