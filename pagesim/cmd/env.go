package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sarchlab/pagesim/report"
)

// envBindings maps flag names to the environment variables that can set
// their defaults.
var envBindings = map[string]string{
	"log-level": "PAGESIM_LOG_LEVEL",
	"csv":       "PAGESIM_CSV",
	"db":        "PAGESIM_DB",
	"db-driver": "PAGESIM_DB_DRIVER",
	"port":      "PAGESIM_MONITOR_PORT",
}

// applyEnv sets every flag that was not given on the command line from its
// environment variable.
func applyEnv(flags *pflag.FlagSet, bindings map[string]string) error {
	for name, key := range bindings {
		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}

		value, ok := os.LookupEnv(key)
		if !ok {
			continue
		}

		err := flags.Set(name, value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}

	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// mysqlCredentialsFromEnv reads the location of the MySQL server.
func mysqlCredentialsFromEnv() (report.MySQLCredentials, error) {
	c := report.MySQLCredentials{}

	c.Username = os.Getenv("PAGESIM_TRACE_USERNAME")
	if c.Username == "" {
		return c, errors.New("trace username is not set, use environment " +
			"variable PAGESIM_TRACE_USERNAME to set it")
	}

	c.Password = os.Getenv("PAGESIM_TRACE_PASSWORD")

	c.Address = os.Getenv("PAGESIM_TRACE_IP")
	if c.Address == "" {
		c.Address = "127.0.0.1"
	}

	portString := os.Getenv("PAGESIM_TRACE_PORT")
	if portString == "" {
		portString = "3306"
	}

	port, err := strconv.Atoi(portString)
	if err != nil {
		return c, fmt.Errorf("invalid PAGESIM_TRACE_PORT: %w", err)
	}
	c.Port = port

	return c, nil
}
