// Package main provides the rustycheck command-line interface: a
// single-invocation ownership/borrow/pointer-safety analyzer for one
// compilation unit at a time (spec §6.1).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/rustycheck/internal/config"
	"github.com/ericfisherdev/rustycheck/internal/driver"
	"github.com/ericfisherdev/rustycheck/internal/external"
	"github.com/ericfisherdev/rustycheck/internal/reporters"
)

var (
	cfgFile         string
	verbose         bool
	includePaths    []string
	annotationFiles []string
	compileCommands string
	outputFormat    string
	jsonOutputPath  string
)

// rootCmd is the base command when rustycheck is called without subcommands.
var rootCmd = &cobra.Command{
	Use:     "rustycheck",
	Short:   "rustycheck - ownership and borrow safety analysis for C++",
	Version: Version,
	Long: `rustycheck analyzes a single C++ translation unit for Rust-style
ownership, borrow, and pointer-safety violations.

It walks @safe/@unsafe annotated functions and classes, tracking moves,
borrows, and raw-pointer provenance the way a borrow checker would, and
reports every violation it finds as a line-oriented diagnostic.`,
}

// checkCmd analyzes one or more source files and reports violations.
var checkCmd = &cobra.Command{
	Use:   "check <source-file> [more-source-files...]",
	Short: "Analyze source files for ownership and borrow-safety violations",
	Long: `Analyze one or more C++ source files for ownership, borrow, and
pointer-safety violations (spec §6.1).

Examples:
  rustycheck check main.cpp
  rustycheck check src/*.cpp -I include/ -I third_party/include
  rustycheck check a.cpp b.cpp --compile-commands build/compile_commands.json`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(2)
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		if outputFormat != "" {
			cfg.Output.Format = outputFormat
		}
		if jsonOutputPath != "" {
			cfg.Output.JSON.Enabled = true
			cfg.Output.JSON.Path = jsonOutputPath
		}
		if len(includePaths) > 0 {
			cfg.Analysis.IncludePaths = includePaths
		}
		if len(annotationFiles) > 0 {
			cfg.Analysis.AnnotationFiles = annotationFiles
		}
		if compileCommands != "" {
			cfg.Analysis.CompileCommands = compileCommands
		}
		if cfg.Analysis.CompileCommands != "" {
			paths, err := includePathsFromCompileCommands(cfg.Analysis.CompileCommands)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to read compile-commands database: %v\n", err)
				os.Exit(2)
			}
			cfg.Analysis.IncludePaths = append(cfg.Analysis.IncludePaths, paths...)
		}

		files := make([]driver.SourceFile, 0, len(args))
		for _, path := range args {
			text, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
				os.Exit(2)
			}
			files = append(files, driver.SourceFile{Path: path, Text: string(text)})
		}

		reg := external.NewRegistry()
		for _, annPath := range cfg.Analysis.AnnotationFiles {
			text, err := os.ReadFile(annPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to read annotation file %s: %v\n", annPath, err)
				os.Exit(2)
			}
			external.LoadAnnotationFile(reg, string(text))
		}

		opts := driver.Options{
			IncludePaths: cfg.Analysis.IncludePaths,
			Registry:     reg,
			FileExists: func(path string) bool {
				_, err := os.Stat(path)
				return err == nil
			},
			ReadHeader: func(path string) (string, bool) {
				data, err := os.ReadFile(path)
				if err != nil {
					return "", false
				}
				return string(data), true
			},
		}

		result := driver.Run(files, opts)
		violations := result.Sink.Violations()

		manager := reporters.NewManager(cfg)
		if err := manager.Generate(violations); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate report: %v\n", err)
			os.Exit(2)
		}

		os.Exit(result.Sink.ExitCode())
	},
}

// configCmd groups configuration-management subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage rustycheck configuration",
}

// configInitCmd writes a default configuration file.
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a default configuration file",
	Long: `Initialize a default rustycheck configuration file.
If no path is specified, creates rustycheck.yaml in the current directory.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := "rustycheck.yaml"
		if len(args) > 0 {
			configPath = args[0]
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("configuration file already exists: %s\n", configPath)
			return
		}

		cfg := config.GetDefaultConfig()
		if err := config.Save(cfg, configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create configuration file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("configuration file created: %s\n", configPath)
	},
}

// versionCmd prints build/version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of rustycheck",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(GetVersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search rustycheck.yaml/.rustycheck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	checkCmd.Flags().StringSliceVarP(&includePaths, "include", "I", nil, "header search path (repeatable)")
	checkCmd.Flags().StringSliceVar(&annotationFiles, "annotations", nil, "external annotation file (repeatable, spec §6.4)")
	checkCmd.Flags().StringVar(&compileCommands, "compile-commands", "", "path to a compile_commands.json to derive include paths from")
	checkCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "output format: console or json (default: console)")
	checkCmd.Flags().StringVarP(&jsonOutputPath, "output", "o", "", "JSON report output path (implies --format json)")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// compileCommandEntry is one entry of a clang-style compilation database
// (the well-known compile_commands.json shape every build system that
// emits one follows, libclang's among them). Parsing this format is the
// CLI's job, not the core's (spec.md lists "configuration and
// compile-commands loading" among the core's out-of-scope collaborators).
type compileCommandEntry struct {
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
}

// includePathsFromCompileCommands extracts every -I/-isystem argument across
// every entry of a compilation database, deduplicated in first-seen order.
// It does not attempt to match entries to the files being analyzed — any
// -I path anywhere in the database is a reasonable header search path for a
// single-translation-unit analysis run.
func includePathsFromCompileCommands(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []compileCommandEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, e := range entries {
		args := e.Arguments
		if len(args) == 0 && e.Command != "" {
			args = strings.Fields(e.Command)
		}
		for i := 0; i < len(args); i++ {
			arg := args[i]
			switch {
			case arg == "-I" || arg == "-isystem":
				if i+1 < len(args) {
					add(args[i+1])
				}
			case strings.HasPrefix(arg, "-I"):
				add(strings.TrimPrefix(arg, "-I"))
			case strings.HasPrefix(arg, "-isystem"):
				add(strings.TrimPrefix(arg, "-isystem"))
			}
		}
	}
	return out, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
