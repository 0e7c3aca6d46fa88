// Package splice decodes SpliceAI INFO annotations.
//
// A SpliceAI entry has the layout
//
//	ALLELE|SYMBOL|DS_AG|DS_AL|DS_DG|DS_DL|DP_AG|DP_AL|DP_DG|DP_DL
//
// and the field may hold several comma-separated entries (one per allele
// and gene). Only the delta scores at ordinals 3 to 6 are used.
package splice

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InfoKey is the INFO tag SpliceAI writes its predictions to.
const InfoKey = "SpliceAI"

// minComponents is the number of pipe-separated components needed to
// reach DS_DL.
const minComponents = 6

// ErrNotAnnotated is returned for an empty or "." SpliceAI field.
var ErrNotAnnotated = errors.New("splice: variant has no SpliceAI annotation")

// Score is a single delta score, keeping the text it was parsed from.
type Score struct {
	Raw   string
	Value float64
}

// Annotation is the decoded first entry of a SpliceAI field.
type Annotation struct {
	Allele string
	Symbol string
	DSAG   Score // acceptor gain
	DSAL   Score // acceptor loss
	DSDG   Score // donor gain
	DSDL   Score // donor loss
}

// Scores returns the four delta scores in field order.
func (a *Annotation) Scores() [4]Score {
	return [4]Score{a.DSAG, a.DSAL, a.DSDG, a.DSDL}
}

// Max returns the largest delta score. Ties keep the earliest score.
func (a *Annotation) Max() Score {
	max := a.DSAG
	if a.DSAL.Value > max.Value {
		max = a.DSAL
	}
	if a.DSDG.Value > max.Value {
		max = a.DSDG
	}
	if a.DSDL.Value > max.Value {
		max = a.DSDL
	}
	return max
}

// MalformedAnnotationError reports a SpliceAI field that does not follow
// the expected layout.
type MalformedAnnotationError struct {
	Field  string
	Reason string
}

func (e *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("malformed SpliceAI annotation %q: %s", e.Field, e.Reason)
}

// Parse decodes the first entry of a SpliceAI INFO value.
func Parse(field string) (*Annotation, error) {
	if field == "" || field == "." {
		return nil, ErrNotAnnotated
	}

	entry := field
	if comma := strings.IndexByte(entry, ','); comma >= 0 {
		entry = entry[:comma]
	}

	parts := strings.Split(entry, "|")
	if len(parts) < minComponents {
		return nil, &MalformedAnnotationError{
			Field:  field,
			Reason: fmt.Sprintf("expected at least %d components, found %d", minComponents, len(parts)),
		}
	}

	var scores [4]Score
	for i := range scores {
		raw := parts[i+2]
		v, ok := parseScore(raw)
		if !ok {
			return nil, &MalformedAnnotationError{
				Field:  field,
				Reason: fmt.Sprintf("component %d is not numeric: %q", i+3, raw),
			}
		}
		scores[i] = Score{Raw: raw, Value: v}
	}

	return &Annotation{
		Allele: parts[0],
		Symbol: parts[1],
		DSAG:   scores[0],
		DSAL:   scores[1],
		DSDG:   scores[2],
		DSDL:   scores[3],
	}, nil
}

// parseScore accepts finite decimal numbers only. Hexadecimal forms, NaN
// and infinities are rejected.
func parseScore(raw string) (float64, bool) {
	digits := strings.TrimLeft(raw, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
