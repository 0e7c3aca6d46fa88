// Package normalize makes sure a VCF is BGZF-compressed and indexed
// before the rest of the pipeline reads it.
package normalize

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
)

const (
	// CompressedExt marks a BGZF-compressed VCF.
	CompressedExt = ".gz"
	// IndexExt is appended to a compressed VCF path to name its CSI index.
	IndexExt = ".csi"
	// TabixExt names a tabix index built by other tools.
	TabixExt = ".tbi"
)

// IndexPath returns the CSI index path for a compressed VCF.
func IndexPath(path string) string {
	return path + IndexExt
}

// TabixPath returns the tabix index path for a compressed VCF.
func TabixPath(path string) string {
	return path + TabixExt
}

// HasIndex reports whether a CSI or tabix index exists for path.
func HasIndex(path string) bool {
	return output.Exists(IndexPath(path)) || output.Exists(TabixPath(path))
}

// Result describes what Normalize did.
type Result struct {
	Path       string // compressed, indexed VCF
	Compressed bool   // a BGZF copy of a plain input was written
	Indexed    bool   // a CSI index was written
}

// Normalizer turns a VCF path into a compressed, indexed VCF path.
type Normalizer struct {
	workers int
	logger  *zap.Logger
}

// New creates a Normalizer with a single compression worker.
func New() *Normalizer {
	return &Normalizer{
		workers: 1,
		logger:  zap.NewNop(),
	}
}

// SetWorkers sets the number of BGZF compression goroutines.
func (n *Normalizer) SetWorkers(workers int) {
	if workers < 1 {
		workers = 1
	}
	n.workers = workers
}

// SetLogger sets the logger for progress messages.
func (n *Normalizer) SetLogger(l *zap.Logger) {
	n.logger = l
}

// Normalize returns the path of a compressed and indexed copy of path.
//
// A ".gz" input is indexed in place when it has no ".csi" or ".tbi" and returned
// unchanged. A plain input is compressed to path+".gz" and indexed, unless
// that copy and its index already exist and are not older than the input.
func (n *Normalizer) Normalize(path string) (*Result, error) {
	if strings.HasSuffix(path, CompressedExt) {
		res := &Result{Path: path}
		if HasIndex(path) {
			n.logger.Info("already bgzipped and indexed", zap.String("path", path))
			return res, nil
		}
		n.logger.Info("indexing bgzipped vcf", zap.String("path", path))
		if err := n.BuildIndex(path); err != nil {
			return nil, err
		}
		res.Indexed = true
		return res, nil
	}

	compressed := path + CompressedExt
	res := &Result{Path: compressed}

	upToDate, err := isUpToDate(path, compressed)
	if err != nil {
		return nil, err
	}
	if !upToDate {
		n.logger.Info("compressing vcf",
			zap.String("input", path),
			zap.String("output", compressed))
		if err := n.Compress(path, compressed); err != nil {
			return nil, err
		}
		if err := output.Require("compress", compressed); err != nil {
			return nil, err
		}
		res.Compressed = true
	}

	if res.Compressed || !output.Exists(IndexPath(compressed)) {
		if err := n.BuildIndex(compressed); err != nil {
			return nil, err
		}
		res.Indexed = true
	}

	if !res.Compressed && !res.Indexed {
		n.logger.Info("reusing existing bgzipped vcf", zap.String("path", compressed))
	}
	return res, nil
}

// isUpToDate reports whether compressed exists and is at least as new as src.
func isUpToDate(src, compressed string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat input vcf: %w", err)
	}
	dstInfo, err := os.Stat(compressed)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat compressed vcf: %w", err)
	}
	return !dstInfo.ModTime().Before(srcInfo.ModTime()), nil
}

// Compress writes a BGZF-compressed copy of src to dst.
func (n *Normalizer) Compress(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open vcf: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create compressed vcf: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close compressed vcf: %w", cerr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	bw := newBGZFWriter(out, n.workers)
	if _, err := io.Copy(bw, in); err != nil {
		bw.Close()
		return fmt.Errorf("compress %s: %w", src, err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("finish bgzf stream: %w", err)
	}
	return nil
}
