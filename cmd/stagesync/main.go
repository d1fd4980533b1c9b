package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
	"github.com/ajitpratap0/stagesync/pkg/dump"
	"github.com/ajitpratap0/stagesync/pkg/logger"

	_ "github.com/ajitpratap0/stagesync/pkg/connector/destinations"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/sources"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stagesync",
		Short: "Chunked transfer of source records into a staging area with merge procedures",
		Long: `stagesync streams records from a paged source, buffers them into chunks,
flushes each chunk to a destination staging table or procedure and calls a merge
procedure to reconcile the staged rows into the final table.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newVersionCmd(),
		newListCmd(),
		newValidateCmd(),
		newRunCmd(),
		newDumpCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stagesync v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available Source Connectors:")
			for _, name := range registry.ListSources() {
				printConnector(cmd, core.ConnectorTypeSource, name)
			}
			fmt.Fprintln(out, "\nAvailable Destination Connectors:")
			for _, name := range registry.ListDestinations() {
				printConnector(cmd, core.ConnectorTypeDestination, name)
			}
		},
	}
}

func printConnector(cmd *cobra.Command, t core.ConnectorType, name string) {
	info, ok := registry.Info(t, name)
	if !ok || info.Description == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  - %-12s %s\n", name, info.Description)
}

func newValidateCmd() *cobra.Command {
	var configFile string
	var ping bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate loads and checks the configuration. With --ping it also opens a
destination connection to verify the DSN and credentials.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			dest, err := registry.CreateDestination(cfg.Destination)
			if err != nil {
				return err
			}

			if ping {
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Source.ConnectTimeout)
				defer cancel()
				conn, err := dest.Open(ctx)
				if err != nil {
					return err
				}
				defer conn.Close(context.Background())
				if p, ok := conn.(core.Pinger); ok {
					if err := p.Ping(ctx); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", cfg.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "stagesync.yaml", "Path to the YAML configuration file")
	cmd.Flags().BoolVar(&ping, "ping", false, "Open a destination connection")
	return cmd
}

func newRunCmd() *cobra.Command {
	var configFile string
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a transfer",
		Long: `Run transfers every record of the configured source into the destination
staging area and merges it. The run aborts after transfer.max_retries consecutive
destination failures; the in-flight state is then written to
transfer.abort_dump.path when configured.

Example:
  stagesync run --config stagesync.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if opts.metricsAddr != "" {
				cfg.Observability.MetricsAddr = opts.metricsAddr
			}
			if opts.dumpPath != "" {
				cfg.Transfer.AbortDump.Path = opts.dumpPath
			}

			if err := logger.Init(logger.Config{
				Level:       cfg.Logging.Level,
				Encoding:    cfg.Logging.Encoding,
				Development: cfg.Logging.Development,
			}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			log := logger.Get().With(
				zap.String("component", "stagesync-cli"),
				zap.String("source", cfg.Source.Type),
				zap.String("destination", cfg.Destination.Type),
			)
			_, err = runTransfer(ctx, cfg, log)
			return err
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "stagesync.yaml", "Path to the YAML configuration file")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides observability.metrics_addr)")
	cmd.Flags().StringVar(&opts.dumpPath, "dump-path", "", "Write the abort report here (overrides transfer.abort_dump.path)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this duration (0 disables)")
	return cmd
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Inspect abort reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the header and pending rows of an abort report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, rows, err := dump.Read(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "aborted:  %s\n", header.Time.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "step:     %s after %d attempts\n", header.Step, header.Attempts)
			fmt.Fprintf(out, "cause:    %s\n", header.Cause)
			fmt.Fprintf(out, "record:   %s\n", header.Record)
			fmt.Fprintf(out, "columns:  %v\n", header.Schema)
			fmt.Fprintf(out, "pending:  %d rows\n", len(rows))
			for _, row := range rows {
				fmt.Fprintf(out, "  %v\n", []string(row))
			}
			return nil
		},
	})
	return cmd
}
