package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"armstack/internal/arm"
	"armstack/internal/config"
	"armstack/internal/disasm"
	"armstack/internal/elfx"
	"armstack/internal/logging"
	"armstack/internal/stack"
	"armstack/internal/symtab"
)

var (
	errNoInput     = errors.New("exactly one of --elf or --listing is required")
	errStackErrors = errors.New("stack errors found")
)

// session is the loaded program and settings shared by all commands.
type session struct {
	cfg     *config.Config
	log     *logging.LoggerCloser
	profile arm.Profile
	code    disasm.Code
	table   *symtab.Table
	input   string
	elf     *elfx.File
}

// openSession reads the persistent flags, loads configuration and the
// program, and builds the function table.
func openSession(cmd *cobra.Command) (*session, error) {
	elfPath, _ := cmd.Flags().GetString("elf")
	listingPath, _ := cmd.Flags().GetString("listing")
	if (elfPath == "") == (listingPath == "") {
		return nil, errNoInput
	}
	input := elfPath + listingPath

	cfg, err := loadConfig(cmd, input)
	if err != nil {
		return nil, err
	}
	lg, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, input: input, log: lg}
	if s.profile, err = cfg.ProfileValue(); err != nil {
		s.Close()
		return nil, err
	}
	if cfg.Path != "" {
		s.log.Debug("loaded config", "path", cfg.Path)
	}

	if elfPath != "" {
		s.elf, err = elfx.Open(elfPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		src, err := disasm.NewELFSource(s.elf)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.code = src
	} else {
		l, err := disasm.LoadListing(listingPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.code = l
	}

	s.table = symtab.New(s.code.Funcs(), symtab.WithNoReturn(cfg.NoReturn.Functions...))
	s.log.Info("loaded", "input", filepath.Base(input), "functions", s.table.Len(), "profile", s.profile.Name)
	return s, nil
}

// loadConfig reads --config or the nearest armstack.toml, then applies
// flag overrides.
func loadConfig(cmd *cobra.Command, input string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		start := "."
		if input != "" {
			start = filepath.Dir(input)
		}
		cfg, err = config.FindAndLoad(start)
	}
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("profile"); v != "" {
		cfg.Analysis.Profile = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		cfg.Analysis.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if f := cmd.Flags().Lookup("strict"); f != nil && f.Changed {
		cfg.Analysis.Strict, _ = cmd.Flags().GetBool("strict")
	}
	if f := cmd.Flags().Lookup("trace"); f != nil && f.Changed {
		if trace, _ := cmd.Flags().GetBool("trace"); trace {
			cfg.Log.Level = "debug"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to the command's stderr unless ARMSTACK_LOG_TO_FILE
// redirects it.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.LoggerCloser, error) {
	var lg *logging.LoggerCloser
	if os.Getenv("ARMSTACK_LOG_TO_FILE") == "1" {
		lg = logging.NewLogger()
	} else {
		lg = logging.NewLoggerWithWriter(cmd.ErrOrStderr())
	}
	if cfg.Log.Level != "" {
		if err := logging.SetLevel(lg.Logger, cfg.Log.Level); err != nil {
			lg.Close()
			return nil, err
		}
	}
	if cfg.Log.Prefix != "" {
		lg.SetPrefix(cfg.Log.Prefix)
	}
	return lg, nil
}

// Close releases the ELF file and the log file, if any.
func (s *session) Close() error {
	var errs []error
	if s.elf != nil {
		errs = append(errs, s.elf.Close())
	}
	if s.log != nil {
		errs = append(errs, s.log.Close())
	}
	return errors.Join(errs...)
}

// newAnalyzer returns a stack analyzer over the session's code.
func (s *session) newAnalyzer(lg stack.Logger) *stack.Analyzer {
	return stack.NewAnalyzer(s.code,
		stack.WithProfile(s.profile),
		stack.WithNoReturn(s.table),
		stack.WithLogger(lg),
	)
}

// lookupFunc resolves a function name given on the command line.
func (s *session) lookupFunc(name string) (symtab.Symbol, error) {
	sym, ok := s.table.ByName(name)
	if !ok {
		return symtab.Symbol{}, fmt.Errorf("unknown function %q", name)
	}
	return sym, nil
}

// fnAnalyzer runs a fresh stack.Analyzer per function so each run can
// carry its own tracer and depth recorder.
type fnAnalyzer struct {
	s     *session
	trace bool

	mu     sync.Mutex
	depths map[uint64]map[uint64]int // nil unless recording
}

func newFnAnalyzer(s *session, trace, record bool) *fnAnalyzer {
	a := &fnAnalyzer{s: s, trace: trace}
	if record {
		a.depths = make(map[uint64]map[uint64]int)
	}
	return a
}

func (a *fnAnalyzer) Analyze(fn stack.Function) stack.Usage {
	lg := stack.NopLogger()
	if a.trace {
		lg = logging.NewTracer(a.s.log.Logger, fn.Name)
	}
	if a.depths == nil {
		return a.s.newAnalyzer(lg).Analyze(fn)
	}
	rec := logging.NewDepthRecorder(lg)
	u := a.s.newAnalyzer(rec).Analyze(fn)
	a.mu.Lock()
	a.depths[fn.Addr] = rec.Depths()
	a.mu.Unlock()
	return u
}

// Depths returns the recorded depths of the function at addr.
func (a *fnAnalyzer) Depths(addr uint64) map[uint64]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.depths[addr]
}
