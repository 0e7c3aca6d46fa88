// Package vcf reads VCF records, keeping the columns the splice filter
// needs and the raw text of everything else.
package vcf

import "strings"

// Missing is the VCF placeholder for an absent value.
const Missing = "."

// Fixed VCF columns, 0-based.
const (
	colChrom = iota
	colPos
	colID
	colRef
	colAlt
	colQual
	colFilter
	colInfo
	numFixedCols
)

// Variant is one VCF data record.
type Variant struct {
	Chrom         string
	Pos           int64 // 1-based
	ID            string
	Ref           string
	Alt           string // comma-joined as in the file
	Qual          string
	Filter        string
	Info          map[string]string // flags map to ""
	RawInfo       string
	SampleColumns string // FORMAT and sample columns, tab-joined
}

// InfoValue returns the raw value of an INFO key, or "." when the key is
// absent. Flag-type keys also yield ".".
func (v *Variant) InfoValue(key string) string {
	if s := v.Info[key]; s != "" {
		return s
	}
	return Missing
}

// End returns the 0-based exclusive end of the reference span.
func (v *Variant) End() int64 {
	n := int64(len(v.Ref))
	if n == 0 {
		n = 1
	}
	return v.Pos - 1 + n
}

// parseInfo splits an INFO column into key/value pairs.
func parseInfo(info string) map[string]string {
	m := make(map[string]string)
	if info == Missing || info == "" {
		return m
	}
	for kv := range strings.SplitSeq(info, ";") {
		k, val, _ := strings.Cut(kv, "=")
		m[k] = val
	}
	return m
}
