package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pagesim/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <test case>",
	Short: "Serve a test case over HTTP and step it on request.",
	Long: `monitor loads a test case and serves the simulator on a local ` +
		`port. POST /api/step simulates the next access, POST /api/run ` +
		`simulates the rest, and GET /api/frames shows the page table.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		open, _ := cmd.Flags().GetBool("open")

		s, file, err := loadSimulator(args[0])
		if err != nil {
			return err
		}

		err = attachRecorders(cmd, s)
		if err != nil {
			return err
		}

		m := monitoring.NewMonitor().WithPortNumber(port)
		m.RegisterSimulator(s, file.Accesses)

		url, err := m.StartServer()
		if err != nil {
			return err
		}

		if open {
			err = m.OpenInBrowser(url)
			if err != nil {
				slog.Warn("cannot open browser", "url", url, "error", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop.")
		<-ctx.Done()

		return m.StopServer()
	},
}

func init() {
	monitorCmd.Flags().Int("port", 0,
		"Port of the monitoring server. A random port is used if not set.")
	monitorCmd.Flags().Bool("open", false,
		"Open the monitoring API in the default browser.")
	monitorCmd.Flags().String("csv", "",
		"Record every frame of every step into this CSV file.")
	monitorCmd.Flags().String("db", "",
		"Record the run into a database. Use \"auto\" for a generated name.")
	monitorCmd.Flags().String("db-driver", "sqlite",
		"Database to record into, sqlite or mysql.")

	rootCmd.AddCommand(monitorCmd)
}
