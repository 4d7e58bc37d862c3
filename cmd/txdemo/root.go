package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"txthread/internal/buildinfo"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "txdemo",
		Short: "Run the txthread demo firmware on the simulated kernel.",
		Long: `txdemo starts a producer, a consumer, a joined worker and a ` +
			`heartbeat thread on the simulated kernel. The thread table is ` +
			`drawn in a window (or headless), and the kernel state is served ` +
			`as Prometheus metrics and JSON.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	o := defaultOptions()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return o.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	// .env and TXDEMO_* feed the flag defaults, flags override them.
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := o.applyEnv(os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	bindFlags(cmd, &o)
	return cmd
}

func bindFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.Uint32Var(&o.TickHz, "hz", o.TickHz, "Kernel tick rate.")
	f.IntVar(&o.FPS, "fps", o.FPS, "Frame rate in headless mode.")
	f.Uint64Var(&o.Frames, "frames", o.Frames, "Stop after N frames in headless mode (0 = run until interrupted).")
	f.IntVar(&o.Items, "items", o.Items, "Values the producer hands to the consumer.")
	f.BoolVar(&o.Headless, "headless", o.Headless, "Run without a window.")
	f.IntVar(&o.Width, "width", o.Width, "Framebuffer width.")
	f.IntVar(&o.Height, "height", o.Height, "Framebuffer height.")
	f.StringVar(&o.MetricsAddr, "metrics-addr", o.MetricsAddr, "Listen address for /metrics and the JSON endpoints (empty = off).")
	f.StringVar(&o.TraceDB, "trace-db", o.TraceDB, "Also write the kernel trace to this SQLite file.")
	f.IntVar(&o.TraceRing, "trace-ring", o.TraceRing, "Number of recent trace events kept in memory.")
	f.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (trace, debug, info, warn, error).")
	f.StringVar(&o.LogFormat, "log-format", o.LogFormat, "Log format (text or json).")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "txdemo "+buildinfo.String())
		},
	}
}
