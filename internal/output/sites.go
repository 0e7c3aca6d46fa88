package output

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// SitesHeader is the minimal VCF header of a sites file.
var SitesHeader = []string{
	"##fileformat=VCFv4.2",
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
}

// SitesWriter writes a VCF-shaped listing of positions. Only CHROM, POS,
// REF and ALT are populated; every other column is ".".
type SitesWriter struct {
	w *tsv.Writer
}

// NewSitesWriter creates a new sites writer.
func NewSitesWriter(w io.Writer) *SitesWriter {
	return &SitesWriter{w: tsv.NewWriter(w)}
}

// WriteHeader writes the two fixed header lines.
func (sw *SitesWriter) WriteHeader() error {
	for _, line := range SitesHeader {
		sw.w.WriteString(line)
		if err := sw.w.EndLine(); err != nil {
			return err
		}
	}
	return nil
}

// Write writes one site.
func (sw *SitesWriter) Write(chrom string, pos int64, ref, alt string) error {
	sw.w.WriteString(chrom)
	sw.w.WriteString(strconv.FormatInt(pos, 10))
	sw.w.WriteString(".")
	sw.w.WriteString(ref)
	sw.w.WriteString(alt)
	sw.w.WriteString(".")
	sw.w.WriteString(".")
	sw.w.WriteString(".")
	return sw.w.EndLine()
}

// Flush flushes any buffered data to the underlying writer.
func (sw *SitesWriter) Flush() error {
	return sw.w.Flush()
}
