// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"eqviewer/internal/config"
	applog "eqviewer/internal/log"
	"eqviewer/internal/player"
	"eqviewer/internal/session"
	"eqviewer/internal/transport"
	"eqviewer/internal/tui"
	"eqviewer/internal/workbench"
	"eqviewer/pkg/build"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// options holds the flags shared by every command.
type options struct {
	configPath  string
	sessionPath string
	verbose     bool
	pick        bool
}

// Execute parses os.Args and runs the selected command until ctx is done.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	info := build.Get()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         build.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sessionPath == "" {
				return cmd.Help()
			}
			return runInspector(cmd.Context(), opts)
		},
	}
	rootCmd.SetVersionTemplate(info.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Configuration file (default: ./config.yaml or ./eqviewer.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.sessionPath, "session", "s", "",
		"Session document (JSON) to open")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session to WebSocket clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Inspect the session in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspector(cmd.Context(), opts)
		},
	}

	modesCmd := &cobra.Command{
		Use:   "modes",
		Short: "List the modes of a session document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := session.LoadDocument(opts.sessionPath)
			if err != nil {
				return err
			}
			writeModes(cmd.OutOrStdout(), doc)
			return nil
		},
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices(cmd.OutOrStdout(), opts)
		},
	}
	devicesCmd.Flags().BoolVarP(&opts.pick, "pick", "p", false,
		"Choose a device interactively and print its playback configuration")

	rootCmd.AddCommand(serveCmd, tuiCmd, modesCmd, devicesCmd)
	return rootCmd
}

// setup loads the configuration and installs the logger.
func setup(opts *options, tuiMode bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Debug = true
	}

	logOpts := applog.Options{Level: cfg.LogLevel(), File: cfg.Log.File, JSON: cfg.Log.JSON}
	if tuiMode {
		// The alternate screen owns the terminal; logs go to a file only.
		logOpts.NoConsole = true
		if logOpts.File == "" {
			logOpts.File = filepath.Join(os.TempDir(), build.Get().Name+".log")
		}
	}
	applog.Setup(logOpts)
	applog.Debugf("Build: %s", build.Get())
	applog.Debugf("Config: %+v", *cfg)
	return cfg, nil
}

// withWorkbench builds a workbench from cfg, opens the session document and
// calls fn. PortAudio is initialized around fn when it is the playback
// backend.
func withWorkbench(ctx context.Context, cfg *config.Config, sessionPath string, fn func(*workbench.Workbench) error) error {
	if sessionPath == "" {
		return errors.New("a session document is required (--session)")
	}
	doc, err := session.LoadDocument(sessionPath)
	if err != nil {
		return err
	}

	if player.Backend(cfg.Playback.Backend) == player.BackendPortAudio {
		if err := player.Initialize(); err != nil {
			return err
		}
		defer func() {
			if err := player.Terminate(); err != nil {
				applog.Warnf("CLI: %v", err)
			}
		}()
	}

	w, err := workbench.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	// A failed initial load is shown to the user, who can switch modes or revert.
	if err := w.Open(ctx, doc); err != nil {
		applog.Warnf("CLI: Opening %s: %v", sessionPath, err)
	}
	return fn(w)
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := setup(opts, false)
	if err != nil {
		return err
	}
	return withWorkbench(ctx, cfg, opts.sessionPath, func(w *workbench.Workbench) error {
		wst := transport.NewWebSocketTransport(cfg.Server.ListenAddr, w, cfg.Server.AllowedOrigins)
		defer wst.Close()

		sinks := []transport.Transport{wst}
		if cfg.Debug {
			sinks = append(sinks, transport.NewLoggingTransport())
		}
		pub, err := transport.NewPublisher(cfg.Server.FrameInterval, w, sinks...)
		if err != nil {
			return err
		}
		pub.Start()
		defer pub.Stop()

		errCh := make(chan error, 1)
		go func() { errCh <- wst.Start() }()

		fmt.Printf("Serving %s on ws://%s/ws (Ctrl+C to stop)\n", opts.sessionPath, cfg.Server.ListenAddr)
		select {
		case <-ctx.Done():
			applog.Infof("CLI: Shutting down")
			return nil
		case err := <-errCh:
			return err
		}
	})
}

func runInspector(ctx context.Context, opts *options) error {
	cfg, err := setup(opts, true)
	if err != nil {
		return err
	}
	return withWorkbench(ctx, cfg, opts.sessionPath, func(w *workbench.Workbench) error {
		return tui.StartInspectorUI(ctx, w)
	})
}

func runDevices(out io.Writer, opts *options) error {
	cfg, err := setup(opts, opts.pick)
	if err != nil {
		return err
	}
	if err := player.Initialize(); err != nil {
		return err
	}
	defer player.Terminate()

	if !opts.pick {
		devices, err := player.Devices()
		if err != nil {
			return err
		}
		player.WriteDevices(out, devices)
		return nil
	}

	pc, ok, err := tui.StartDeviceListUI(cfg.Playback)
	if err != nil || !ok {
		return err
	}
	data, err := yaml.Marshal(struct {
		Playback config.PlaybackConfig `yaml:"playback"`
	}{pc})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# Add to your configuration file:\n%s", data)
	return nil
}

// writeModes prints one line per mode with its band counts and output.
func writeModes(out io.Writer, doc *session.Document) {
	ready := color.New(color.FgGreen).SprintFunc()
	missing := color.New(color.FgRed).SprintFunc()
	name := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(out, "Original: %s\n\n", doc.OriginalSignal)
	for _, mode := range doc.ModeNames() {
		entry := doc.Modes[mode]
		marker := ready("●")
		output := entry.OutputSignal
		if !entry.Displayable() {
			marker = missing("○")
			output = dim("no output")
		}
		fmt.Fprintf(out, "%s %s bands %-3d", marker, name(fmt.Sprintf("%-14s", mode)), len(entry.Sliders))
		if session.IsAIMode(mode) {
			fmt.Fprintf(out, " ai %-3d", len(entry.AISliders))
		}
		fmt.Fprintf(out, " %s\n", output)
	}
}
