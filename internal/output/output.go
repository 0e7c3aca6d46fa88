// Package output writes the pipeline's intermediate and final artifacts and
// checks that each one was produced.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// MissingOutputError reports that a stage finished without producing the
// file it was expected to write.
type MissingOutputError struct {
	Stage string
	Path  string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("%s: expected output %s was not created", e.Stage, e.Path)
}

// Unwrap lets errors.Is(err, fs.ErrNotExist) match a missing output.
func (e *MissingOutputError) Unwrap() error {
	return fs.ErrNotExist
}

// Require returns a *MissingOutputError when path does not exist.
func Require(stage, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingOutputError{Stage: stage, Path: path}
		}
		return fmt.Errorf("%s: stat %s: %w", stage, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: expected output %s is a directory", stage, path)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
