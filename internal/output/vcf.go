package output

import (
	"bufio"
	"io"
	"strings"
)

// VCFWriter copies VCF header and record lines through unchanged.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)
	records     int
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, headerLines []string) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
	}
}

// WriteHeader writes the original VCF header lines.
func (vw *VCFWriter) WriteHeader() error {
	for _, line := range vw.headerLines {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecord writes a raw record line, adding the newline if it is missing.
func (vw *VCFWriter) WriteRecord(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if _, err := vw.w.WriteString(line); err != nil {
		return err
	}
	if err := vw.w.WriteByte('\n'); err != nil {
		return err
	}
	vw.records++
	return nil
}

// Records returns the number of records written so far.
func (vw *VCFWriter) Records() int {
	return vw.records
}

// Flush flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}
