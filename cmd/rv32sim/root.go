package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/timing/cache"
)

// app holds the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *logrus.Logger

	logLevel string
	verbose  bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		logger: logrus.New(),
	}
	a.logger.SetOutput(stderr)

	root := &cobra.Command{
		Use:   "rv32sim",
		Short: "A five-stage RV32 pipeline and cache simulator",
		Long: `rv32sim runs RV32IM programs on a cycle-level five-stage pipeline with
forwarding, load-use stalls and branch flushes, feeding a configurable
set-associative data cache. It also provides a functional reference
emulator and a trace-driven cache simulator.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "shorthand for --log-level=debug")

	root.AddCommand(
		a.newRunCmd(),
		a.newEmulateCmd(),
		a.newCacheCmd(),
		a.newBenchCmd(),
	)

	return root
}

func (a *app) setupLogging() error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return errors.Wrap(err, "parsing --log-level")
	}
	if a.verbose {
		level = logrus.DebugLevel
	}
	a.logger.SetLevel(level)
	return nil
}

// cacheFlags holds the cache geometry flags shared by run and cache.
type cacheFlags struct {
	configPath string
	setBits    uint
	lines      uint
	blockBits  uint
	lfu        bool
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	def := cache.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "cache-config", "", "cache config file (.json, .yaml or .yml)")
	flags.UintVarP(&f.setBits, "set-bits", "s", def.SetBits, "number of set index bits")
	flags.UintVarP(&f.lines, "lines", "E", def.LinesPerSet, "lines per set")
	flags.UintVarP(&f.blockBits, "block-bits", "b", def.BlockBits, "number of block offset bits")
	flags.BoolVar(&f.lfu, "lfu", false, "use LFU replacement instead of LRU")
}

// config builds the cache config: the config file if given, then any
// geometry flags set explicitly on the command line.
func (f *cacheFlags) config(cmd *cobra.Command) (cache.Config, error) {
	config := cache.DefaultConfig()
	if f.configPath != "" {
		var err error
		config, err = cache.LoadConfig(f.configPath)
		if err != nil {
			return cache.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("set-bits") {
		config.SetBits = f.setBits
	}
	if flags.Changed("lines") {
		config.LinesPerSet = f.lines
	}
	if flags.Changed("block-bits") {
		config.BlockBits = f.blockBits
	}
	if f.lfu {
		config.Policy = cache.PolicyLFU
	}

	return config, config.Validate()
}
