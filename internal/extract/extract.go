// Package extract pulls SpliceAI delta scores out of an annotated VCF and
// keeps the variants whose maximum score clears a threshold.
package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
	"github.com/JaydenBeckwith/DNAtools/internal/splice"
	"github.com/JaydenBeckwith/DNAtools/internal/vcf"
)

// DefaultThreshold is the maximum delta score a variant must exceed.
const DefaultThreshold = 0.5

// CSQKey is the INFO tag holding VEP consequence annotations.
const CSQKey = "CSQ"

// MalformedPolicy decides what happens to a record whose SpliceAI field
// cannot be decoded.
type MalformedPolicy int

const (
	// PolicyFail stops extraction at the first malformed annotation.
	PolicyFail MalformedPolicy = iota
	// PolicySkip logs the record and leaves it out of the output.
	PolicySkip
)

// ParsePolicy converts "fail" or "skip" to a MalformedPolicy.
func ParsePolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "fail", "":
		return PolicyFail, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyFail, fmt.Errorf("unknown malformed-annotation policy %q (want fail or skip)", s)
	}
}

func (p MalformedPolicy) String() string {
	if p == PolicySkip {
		return "skip"
	}
	return "fail"
}

// Stats counts what happened to the records of one extraction.
type Stats struct {
	Records     int // data records read
	Retained    int // records written to the output
	Unannotated int // records without a SpliceAI value
	Malformed   int // records skipped under PolicySkip
}

// Extractor filters VCF records by maximum SpliceAI delta score.
type Extractor struct {
	threshold float64
	policy    MalformedPolicy
	logger    *zap.Logger
}

// New creates an Extractor using DefaultThreshold and PolicyFail.
func New() *Extractor {
	return &Extractor{
		threshold: DefaultThreshold,
		policy:    PolicyFail,
		logger:    zap.NewNop(),
	}
}

// SetThreshold sets the score a variant's maximum must exceed.
func (e *Extractor) SetThreshold(t float64) {
	e.threshold = t
}

// Threshold returns the configured threshold.
func (e *Extractor) Threshold() float64 {
	return e.threshold
}

// SetPolicy sets the handling of malformed SpliceAI annotations.
func (e *Extractor) SetPolicy(p MalformedPolicy) {
	e.policy = p
}

// SetLogger sets the logger for warning and info messages.
func (e *Extractor) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Extract reads the VCF at in and writes the retained rows to out.
func (e *Extractor) Extract(in, out string) (*Stats, error) {
	parser, err := vcf.NewParser(in)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("create filtered table: %w", err)
	}

	stats, err := e.ExtractFrom(parser, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close filtered table: %w", cerr)
	}
	if err != nil {
		return stats, err
	}

	if err := output.Require("extract", out); err != nil {
		return stats, err
	}

	e.logger.Info("filtered table written",
		zap.String("path", out),
		zap.Int("records", stats.Records),
		zap.Int("retained", stats.Retained),
		zap.Int("unannotated", stats.Unannotated),
		zap.Int("malformed", stats.Malformed))
	return stats, nil
}

// ExtractFrom reads variants from parser and writes retained rows to w in
// source order.
func (e *Extractor) ExtractFrom(parser vcf.VariantParser, w io.Writer) (*Stats, error) {
	tw := output.NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	stats := &Stats{}
	for {
		v, err := parser.Next()
		if err != nil {
			return stats, fmt.Errorf("read variant: %w", err)
		}
		if v == nil {
			break
		}
		stats.Records++

		row, err := e.filter(v)
		if err != nil {
			if errors.Is(err, splice.ErrNotAnnotated) {
				stats.Unannotated++
				continue
			}
			var merr *splice.MalformedAnnotationError
			if errors.As(err, &merr) && e.policy == PolicySkip {
				stats.Malformed++
				e.logger.Warn("skipping malformed SpliceAI annotation",
					zap.String("chrom", v.Chrom),
					zap.Int64("pos", v.Pos),
					zap.Int("line", parser.LineNumber()),
					zap.String("reason", merr.Reason))
				continue
			}
			return stats, fmt.Errorf("line %d (%s:%d): %w", parser.LineNumber(), v.Chrom, v.Pos, err)
		}
		if row == nil {
			continue
		}

		if err := tw.Write(row); err != nil {
			return stats, fmt.Errorf("write filtered row: %w", err)
		}
		stats.Retained++
	}

	if err := tw.Flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// filter returns the filtered row for v, or nil when its maximum delta
// score does not exceed the threshold.
func (e *Extractor) filter(v *vcf.Variant) (*output.FilteredRow, error) {
	field := v.InfoValue(splice.InfoKey)
	ann, err := splice.Parse(field)
	if err != nil {
		return nil, err
	}

	max := ann.Max()
	if !(max.Value > e.threshold) {
		return nil, nil
	}

	return &output.FilteredRow{
		Chrom:    v.Chrom,
		Pos:      v.Pos,
		Ref:      v.Ref,
		Alt:      v.Alt,
		CSQ:      v.InfoValue(CSQKey),
		SpliceAI: field,
		DSAG:     ann.DSAG.Raw,
		DSAL:     ann.DSAL.Raw,
		DSDG:     ann.DSDG.Raw,
		DSDL:     ann.DSDL.Raw,
		MaxDS:    max.Raw,
	}, nil
}

// FormatThreshold renders a threshold the way it is shown in logs and help.
func FormatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'g', -1, 64)
}
