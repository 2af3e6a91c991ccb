package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/timing/cache"
)

func (a *app) newCacheCmd() *cobra.Command {
	var (
		caches cacheFlags
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "cache <trace>",
		Short: "Simulate the data cache on a memory access trace",
		Long: `Cache replays a valgrind-style memory trace ("L addr,size", "S addr,size",
"M addr,size"; "I" lines are ignored) through the data cache and prints
the outcome of every access followed by a summary. Use "-" to read the
trace from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := caches.config(cmd)
			if err != nil {
				return err
			}

			records, err := readTrace(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			c, err := cache.New(config)
			if err != nil {
				return err
			}

			stats := replayTrace(c, records, a.stdout, quiet)

			_, err = fmt.Fprintf(a.stdout, "hits: %d, misses: %d, evictions: %d\n",
				stats.Hits, stats.Misses, stats.Evictions)
			return err
		},
	}

	caches.register(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary")

	return cmd
}

func readTrace(path string, stdin io.Reader) ([]loader.TraceRecord, error) {
	if path == "-" {
		return loader.ParseTrace(stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening trace")
	}
	defer func() { _ = f.Close() }()

	records, err := loader.ParseTrace(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return records, nil
}

// replayTrace sends every data access of records through c.
func replayTrace(c *cache.Cache, records []loader.TraceRecord, w io.Writer, quiet bool) cache.Statistics {
	var stats cache.Statistics

	for _, r := range records {
		accesses := r.Accesses()
		if len(accesses) == 0 {
			continue
		}

		if !quiet {
			_, _ = io.WriteString(w, r.String())
		}
		for range accesses {
			result := c.Access(r.Addr)
			stats.Record(result)
			if !quiet {
				_, _ = fmt.Fprintf(w, " %s", result)
			}
		}
		if !quiet {
			_, _ = fmt.Fprintln(w)
		}
	}

	return stats
}
