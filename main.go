package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/olivier-w/climoji/internal/capture"
)

type options struct {
	configPath  string
	source      string
	sensitivity float64
	replay      string
	serve       string
	logLevel    string
	muted       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "climoji",
		Short: "An emoji avatar that lip-syncs to your voice",
		Long: `climoji draws an emoji face in the terminal that moves its mouth to
match live audio from your microphone or your system output.

Examples:
  climoji                        # listen to the microphone
  climoji --source system        # lip-sync to whatever is playing
  climoji --replay talk.mp3      # lip-sync to a recording
  climoji --serve :7070          # also stream frames over a websocket`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (default: user config dir)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&opts.source, "source", "", "audio source: mic or system")
	root.Flags().Float64Var(&opts.sensitivity, "sensitivity", 0, "amplitude sensitivity (0.1 to 2)")
	root.Flags().StringVar(&opts.replay, "replay", "", "lip-sync to an audio file instead of a device")
	root.Flags().BoolVar(&opts.muted, "mute", false, "do not play replayed audio aloud")
	root.Flags().StringVar(&opts.serve, "serve", "", "also serve the websocket bridge on this address")

	root.AddCommand(newReplayCmd(opts), newServeCmd(opts), newSupportCmd(), newDevicesCmd(opts))
	return root
}

func newReplayCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Lip-sync to an audio file, picking one from the current directory if none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.replay = args[0]
			} else {
				path, ok, err := pickReplayFile(".")
				if err != nil || !ok {
					return err
				}
				opts.replay = path
			}
			return runPage(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.muted, "mute", false, "do not play the file aloud")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket bridge without the terminal page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.serve, "addr", "", "listen address (default: bridge.addr or 127.0.0.1:7070)")
	cmd.Flags().StringVar(&opts.replay, "replay", "", "serve an audio file instead of a device")
	return cmd
}

func newSupportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "support",
		Short: "Report whether system audio capture is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(capture.DefaultCapabilities().SystemAudioSupport())
		},
	}
}

func newDevicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			acq := capture.NewDeviceAcquirer(app.cfg.Audio.SampleRate, app.log.Zerolog())
			defer acq.Close()
			devices, err := acq.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no capture devices found")
				return nil
			}
			for _, d := range devices {
				mark := " "
				if d.IsDefault {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, d.Name)
			}
			return nil
		},
	}
}
