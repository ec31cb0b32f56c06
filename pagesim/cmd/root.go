// Package cmd provides the command-line interface of pagesim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagesim",
	Short: "pagesim simulates an inverted page table with aging replacement.",
	Long: `pagesim replays the memory accesses of a test case against an ` +
		`inverted page table. Page faults are resolved with free frames ` +
		`first and with the aging replacement policy after that.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		err := applyEnv(cmd.Flags(), envBindings)
		if err != nil {
			return err
		}

		levelName, _ := cmd.Flags().GetString("log-level")
		level, err := parseLogLevel(levelName)
		if err != nil {
			return err
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: level})))

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "WARN",
		"Log level, one of DEBUG, INFO, WARN, and ERROR.")
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to load environment variables from.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The exit handlers registered by the recorders run before
// the process ends.
func Execute() {
	err := loadEnvFile(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}

	err = rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadEnvFile loads the env file before the flags are parsed so that the
// variables it defines can serve as flag defaults. A missing default file is
// not an error.
func loadEnvFile(args []string) error {
	path := ".env"
	explicit := false

	for i, arg := range args {
		switch {
		case arg == "--env-file" && i+1 < len(args):
			path = args[i+1]
			explicit = true
		case strings.HasPrefix(arg, "--env-file="):
			path = strings.TrimPrefix(arg, "--env-file=")
			explicit = true
		}
	}

	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
