package pipeline

import "fmt"

// Stage is a point in the per-file pipeline. Runs move strictly forward
// from Raw to Subset.
type Stage int

const (
	Raw Stage = iota
	Normalized
	Filtered
	SitesBuilt
	Subset
)

var stageNames = [...]string{
	Raw:        "raw",
	Normalized: "normalized",
	Filtered:   "filtered",
	SitesBuilt: "sites-built",
	Subset:     "subset",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Next returns the stage after s. Subset has no successor and returns itself.
func (s Stage) Next() Stage {
	if s >= Subset {
		return Subset
	}
	return s + 1
}

// StageError reports the stage a run was trying to reach when it failed.
type StageError struct {
	Stage Stage
	Input string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: reaching %s stage: %v", e.Input, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
