package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pagesim/mem/vm/simulator"
	"github.com/sarchlab/pagesim/report"
	"github.com/sarchlab/pagesim/trace"
)

var runCmd = &cobra.Command{
	Use:   "run <test case>",
	Short: "Replay a test case and print the page table after every access.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		summary, _ := cmd.Flags().GetBool("summary")
		perProcess, _ := cmd.Flags().GetBool("per-process")

		s, file, err := loadSimulator(args[0])
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if quiet {
			out = io.Discard
		}

		printer := report.NewTablePrinter(out).WithSummary(summary && !quiet)
		s.AcceptHook(printer)

		err = attachRecorders(cmd, s)
		if err != nil {
			return err
		}

		var tracer *report.StatsTracer
		if perProcess {
			tracer = report.NewStatsTracer()
			s.AcceptHook(tracer)
		}

		s.InitialSnapshot()
		s.Run(file.Accesses)

		if printer.Err() != nil {
			return printer.Err()
		}

		if quiet && summary {
			stats := s.Stats()
			fmt.Fprintf(cmd.OutOrStdout(),
				"Accesses: %d  Hits: %d  Page faults: %d  Evictions: %d\n",
				stats.Accesses, stats.Hits, stats.Faults, stats.Evictions)
		}

		if tracer != nil {
			return tracer.Report(cmd.OutOrStdout())
		}

		return nil
	},
}

func init() {
	runCmd.Flags().String("csv", "",
		"Record every frame of every step into this CSV file.")
	runCmd.Flags().String("db", "",
		"Record the run into a database. Use \"auto\" for a generated name.")
	runCmd.Flags().String("db-driver", "sqlite",
		"Database to record into, sqlite or mysql.")
	runCmd.Flags().BoolP("quiet", "q", false,
		"Do not print the page table after every access.")
	runCmd.Flags().Bool("summary", true,
		"Print the hit and fault counts at the end of the run.")
	runCmd.Flags().Bool("per-process", false,
		"Print the access and fault counts of every process.")

	rootCmd.AddCommand(runCmd)
}

func loadSimulator(path string) (*simulator.Simulator, *trace.File, error) {
	file, err := trace.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("test case loaded",
		"path", path,
		"frames", file.Config.NumFrames(),
		"accesses", len(file.Accesses))

	s, err := simulator.MakeBuilder().
		WithConfig(file.Config).
		WithLogger(slog.Default()).
		Build("PageTable")
	if err != nil {
		return nil, nil, err
	}

	return s, file, nil
}

func attachRecorders(cmd *cobra.Command, s *simulator.Simulator) error {
	csvPath, _ := cmd.Flags().GetString("csv")
	if csvPath != "" {
		recorder := report.NewCSVRecorder(csvPath)

		err := recorder.Init()
		if err != nil {
			return err
		}

		s.AcceptHook(recorder)
	}

	dbName, _ := cmd.Flags().GetString("db")
	if dbName == "" {
		return nil
	}

	recorder, err := openDBRecorder(cmd, dbName)
	if err != nil {
		return err
	}

	err = recorder.Init()
	if err != nil {
		return err
	}

	s.AcceptHook(recorder)

	return nil
}

func openDBRecorder(cmd *cobra.Command, name string) (*report.DBRecorder, error) {
	driver, _ := cmd.Flags().GetString("db-driver")

	switch driver {
	case "sqlite":
		if name == "auto" {
			name = ""
		}

		return report.OpenSQLite(name)
	case "mysql":
		credentials, err := mysqlCredentialsFromEnv()
		if err != nil {
			return nil, err
		}

		return report.OpenMySQL(credentials)
	}

	return nil, fmt.Errorf("unknown database driver %q", driver)
}
