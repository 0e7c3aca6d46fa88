package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/JaydenBeckwith/DNAtools/internal/extract"
	"github.com/JaydenBeckwith/DNAtools/internal/pipeline"
)

// setting is a persistent default for one run or batch flag.
type setting struct {
	key   string
	usage string
	def   any
	parse func(string) (any, error)
}

// settings lists the keys config set accepts, in display order.
var settings = []setting{
	{"threshold", "minimum max delta score, exclusive, in [0,1]", extract.DefaultThreshold, parseThreshold},
	{"on-malformed", "malformed SpliceAI annotations: fail or skip", extract.PolicyFail.String(), parsePolicy},
	{"bgzf-workers", "BGZF compression goroutines per file", 1, parsePositiveInt},
	{"workers", "files processed in parallel by batch", 4, parsePositiveInt},
	{"suffix", "input file suffix for batch", pipeline.DefaultSuffix, parseNonEmpty},
	{"sites-name", "sites file name for run", "exact_sites.vcf", parseFileName},
	{"db", "DuckDB file for retained scores", "", parseString},
}

func lookupSetting(key string) (setting, error) {
	for _, s := range settings {
		if s.key == key {
			return s, nil
		}
	}
	return setting{}, &usageError{fmt.Errorf("unknown config key %q (see splicefilter config keys)", key)}
}

func parseThreshold(v string) (any, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
		return nil, fmt.Errorf("threshold must be a number in [0,1], got %q", v)
	}
	return f, nil
}

func parsePolicy(v string) (any, error) {
	p, err := extract.ParsePolicy(v)
	if err != nil {
		return nil, err
	}
	return p.String(), nil
}

func parsePositiveInt(v string) (any, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("expected a positive integer, got %q", v)
	}
	return n, nil
}

func parseNonEmpty(v string) (any, error) {
	if v == "" {
		return nil, errors.New("value must not be empty")
	}
	return v, nil
}

func parseFileName(v string) (any, error) {
	if v == "" || v != filepath.Base(v) || v == "." || v == ".." {
		return nil, fmt.Errorf("expected a bare file name, got %q", v)
	}
	return v, nil
}

func parseString(v string) (any, error) {
	return v, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage splicefilter defaults",
		Long: `Show, get, set or unset persistent defaults for run and batch. Defaults are
stored in ~/.splicefilter.yaml; SPLICEFILTER_<KEY> environment variables and
command-line flags take precedence. Values are checked when they are set.`,
		Example: `  splicefilter config                      # show the stored defaults
  splicefilter config keys                 # list accepted keys
  splicefilter config set threshold 0.8    # raise the default threshold
  splicefilter config unset db             # stop writing scores to DuckDB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "keys",
			Short: "List accepted keys with their built-in defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigKeys(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the effective value of a key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigGet(cmd.OutOrStdout(), args[0])
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a default",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove a stored default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigUnset(cmd.OutOrStdout(), args[0])
			},
		},
	)
	return cmd
}

// configPath is the file config writes to: the one loaded, or the default.
func configPath() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	return defaultConfigPath()
}

// readStored returns the keys stored in the config file, ignoring
// environment variables and flags.
func readStored() (map[string]any, string, error) {
	path, err := configPath()
	if err != nil {
		return nil, "", err
	}
	stored := make(map[string]any)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return stored, path, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &stored); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return stored, path, nil
}

func writeStored(path string, stored map[string]any) error {
	b, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func runConfigShow(w io.Writer) error {
	stored, path, err := readStored()
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		fmt.Fprintf(w, "# No defaults stored in %s\n", path)
		return nil
	}

	var unknown []string
	for k := range stored {
		if _, err := lookupSetting(k); err != nil {
			unknown = append(unknown, k)
		}
	}
	out, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprintf(w, "# %s\n%s", path, out)
	sort.Strings(unknown)
	for _, k := range unknown {
		fmt.Fprintf(w, "# %s is not a splicefilter setting and is ignored\n", k)
	}
	return nil
}

func runConfigKeys(w io.Writer) error {
	width := 0
	for _, s := range settings {
		width = max(width, len(s.key))
	}
	for _, s := range settings {
		def := fmt.Sprint(s.def)
		if def == "" {
			def = `""`
		}
		fmt.Fprintf(w, "%-*s  %s (default %s)\n", width, s.key, s.usage, def)
	}
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	s, err := lookupSetting(key)
	if err != nil {
		return err
	}
	if !viper.IsSet(key) {
		fmt.Fprintf(w, "%v\n", s.def)
		return nil
	}
	fmt.Fprintln(w, viper.Get(key))
	return nil
}

func runConfigSet(w io.Writer, key, value string) error {
	s, err := lookupSetting(key)
	if err != nil {
		return err
	}
	v, err := s.parse(strings.TrimSpace(value))
	if err != nil {
		return &usageError{fmt.Errorf("config %s: %w", key, err)}
	}

	stored, path, err := readStored()
	if err != nil {
		return err
	}
	stored[key] = v
	if err := writeStored(path, stored); err != nil {
		return err
	}
	viper.Set(key, v)

	fmt.Fprintf(w, "Set %s = %v in %s\n", key, v, path)
	return nil
}

func runConfigUnset(w io.Writer, key string) error {
	stored, path, err := readStored()
	if err != nil {
		return err
	}
	if _, ok := stored[key]; !ok {
		if _, err := lookupSetting(key); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s is not set in %s\n", key, path)
		return nil
	}
	delete(stored, key)
	if err := writeStored(path, stored); err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed %s from %s\n", key, path)
	return nil
}
