package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/daemon"
	initcmd "github.com/npratt/growth/internal/init"
	"github.com/npratt/growth/internal/intent"
	"github.com/npratt/growth/internal/progress"
	"github.com/npratt/growth/internal/timer"
)

var version = "dev"

// getDaemonClient creates a daemon client by finding daemon.json in the project.
func getDaemonClient() (*daemon.Client, error) {
	info, err := daemon.FindDaemonInfo("")
	if err != nil {
		return nil, fmt.Errorf("daemon not running: %w", err)
	}
	return daemon.NewClient(info.SocketPath), nil
}

// resolvedPaths loads the configured paths and makes them absolute against
// the project root.
func resolvedPaths() (config.PathsConfig, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return config.PathsConfig{}, fmt.Errorf("load config: %w", err)
	}
	return daemon.ResolvePaths(cfg.Paths, daemon.FindProjectRoot(""))
}

// clientCommand builds a command that performs one daemon call and prints msg.
func clientCommand(use, short, msg string, call func(*daemon.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := call(client); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
}

// printStatus writes a human-readable engine status.
func printStatus(w io.Writer, status *daemon.StatusResponse) {
	st := status.Engine
	_, _ = fmt.Fprintf(w, "Timer: %s", st.Timer.State)
	if st.Timer.OwnerName != "" {
		_, _ = fmt.Fprintf(w, " (%s)", st.Timer.OwnerName)
	}
	if st.Timer.State != string(timer.StateStopped) {
		_, _ = fmt.Fprintf(w, " %s", st.Timer.Display)
	}
	_, _ = fmt.Fprintln(w)
	if st.Timer.IntervalName != "" {
		_, _ = fmt.Fprintf(w, "Interval: %s\n", st.Timer.IntervalName)
	}
	if st.Holder != "" {
		_, _ = fmt.Fprintf(w, "Held by: %s\n", st.Holder)
	}

	if st.Rest {
		_, _ = fmt.Fprintf(w, "Day %d: rest day\n", st.Day)
	} else {
		_, _ = fmt.Fprintf(w, "Day %d: %s (%d/%d methods)\n", st.Day, st.DayState, st.Completed, st.Total)
	}
	for _, m := range st.Methods {
		marker := " "
		if m.Current {
			marker = ">"
		}
		_, _ = fmt.Fprintf(w, "  %s %-10s %s", marker, m.Status, m.Name)
		if m.DurationMs > 0 {
			_, _ = fmt.Fprintf(w, " (%s)", timer.Format(time.Duration(m.DurationMs)*time.Millisecond))
		}
		_, _ = fmt.Fprintln(w)
	}

	auto := "off"
	if st.AutoProgression {
		auto = "on"
	}
	_, _ = fmt.Fprintf(w, "Auto-progression: %s\n", auto)
	if st.PromptOpen {
		_, _ = fmt.Fprintf(w, "Awaiting answer for %s (%s)\n", st.PromptOwner,
			timer.Format(time.Duration(st.PromptDurationMs)*time.Millisecond))
	}
	_, _ = fmt.Fprintf(w, "Uptime: %s (pid %d)\n", status.Uptime, status.PID)
}

func printHistory(w io.Writer, rows []progress.Completion) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "No practice logged yet")
		return
	}
	for _, c := range rows {
		name := c.MethodName
		if name == "" {
			name = c.MethodID
		}
		line := fmt.Sprintf("%s  day %-3d %-24s %s", c.CompletedAt.Local().Format("2006-01-02 15:04"),
			c.Day, name, timer.Format(c.Duration))
		if c.Skipped {
			line += "  skipped"
		}
		if c.Client != "" && c.Client != arbiter.ClientMain {
			line += "  " + c.Client
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("GROWTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "growth",
		Short: "Guided practice session timer",
		Long: `growth runs a day's practice routine: it times each method as a
countdown, stopwatch or interval sequence, asks whether to log a finished run,
advances to the next method, and keeps the timer alive across restarts.

A quick practice timer can run alongside the routine; only one of the two
holds the timer at a time.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .growth/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Event log path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for daemon control")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("growth %s\n", version)
		},
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the practice engine",
		Long: `Start the practice engine for the configured routine day.

On a terminal the interactive UI runs in the foreground; use --daemon to run
in the background and control it with the other commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, logger, logLevel)
		},
	}
	startCmd.Flags().Bool(FlagDaemon, false, "Run as a background daemon")
	startCmd.Flags().Bool(FlagTUI, false, "Enable terminal UI")
	startCmd.Flags().String(FlagRoutine, "", "Routine file (default: .growth/routine.yaml)")
	startCmd.Flags().Int(FlagDay, 0, "Routine day to practice")
	startCmd.Flags().Bool(FlagAutoProgression, true, "Start the next method automatically after a completion")
	startCmd.Flags().Bool(FlagIntentEnabled, true, "Apply actions from the widget action file")
	startCmd.Flags().Bool(FlagProgressEnabled, true, "Log completions to the progress database")
	bindFlags(startCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show timer and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool(FlagJSON)
			if asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")

	runCmd := clientCommand("run", "Start the current method's timer", "Started",
		func(c *daemon.Client) error { return c.Start() })
	pauseCmd := clientCommand("pause", "Pause the running timer", "Paused",
		func(c *daemon.Client) error { return c.Pause() })
	resumeCmd := clientCommand("resume", "Resume the paused timer", "Resumed",
		func(c *daemon.Client) error { return c.Resume() })
	nextCmd := clientCommand("next", "Move to the next method", "Moved to next method",
		func(c *daemon.Client) error { return c.Next() })
	previousCmd := clientCommand("previous", "Move back to the previous method", "Moved to previous method",
		func(c *daemon.Client) error { return c.Previous() })
	skipCmd := clientCommand("skip", "Skip the current method", "Skipped",
		func(c *daemon.Client) error { return c.Skip() })
	ackCmd := clientCommand("ack", "Dismiss the past-recommended-time warning", "Acknowledged",
		func(c *daemon.Client) error { return c.Ack() })
	resetCmd := clientCommand("reset", "Reset the day's progress", "Progress reset",
		func(c *daemon.Client) error { return c.Reset() })
	backgroundCmd := clientCommand("background", "Tell the engine its view went to the background", "Backgrounded",
		func(c *daemon.Client) error { return c.Background() })
	foregroundCmd := clientCommand("foreground", "Tell the engine its view is visible again", "Foregrounded",
		func(c *daemon.Client) error { return c.Foreground() })
	shutdownCmd := clientCommand("shutdown", "Stop the daemon, keeping a live timer for the next start", "Shutdown requested",
		func(c *daemon.Client) error { return c.Shutdown() })

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the live timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Stop(viper.GetString(FlagClient)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
			return nil
		},
	}
	stopCmd.Flags().String(FlagClient, "", "Only stop a run held by this client (main or quick-practice)")
	bindFlags(stopCmd)

	quickCmd := &cobra.Command{
		Use:   "quick",
		Short: "Start a quick practice countdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString(FlagName)
			duration, _ := cmd.Flags().GetDuration(FlagDuration)
			owner, err := client.Quick(name, duration)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Quick practice started (%s)\n", owner)
			return nil
		},
	}
	quickCmd.Flags().String(FlagName, "", "Display name (default from config)")
	quickCmd.Flags().Duration(FlagDuration, 0, "Countdown length (default from config)")

	promptCmd := &cobra.Command{
		Use:       "prompt <log|partial|dismiss>",
		Short:     "Answer the open completion prompt",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"log", "partial", "dismiss"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			duration, _ := cmd.Flags().GetDuration(FlagDuration)
			if err := client.Prompt(args[0], duration); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Prompt answered: %s\n", args[0])
			return nil
		},
	}
	promptCmd.Flags().Duration(FlagDuration, 0, "Practiced duration for a partial answer")

	autoCmd := &cobra.Command{
		Use:       "auto <on|off>",
		Short:     "Turn auto-progression on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.SetAutoProgression(enabled); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Auto-progression %s\n", args[0])
			return nil
		},
	}

	intentCmd := &cobra.Command{
		Use:       "intent <pause|resume|stop>",
		Short:     "Write a widget action for the running engine",
		Long:      "Write a timer action to the action file, the same way a home-screen widget does.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pause", "resume", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := resolvedPaths()
			if err != nil {
				return err
			}
			action := intent.Action{
				Kind:  intent.Kind(args[0]),
				Timer: viper.GetString(FlagTimer),
				At:    time.Now(),
			}
			if err := intent.WriteAction(paths.Intent, action); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s action to %s\n", args[0], paths.Intent)
			return nil
		},
	}
	intentCmd.Flags().String(FlagTimer, "", "Target timer (main or quick; default: whichever is live)")
	bindFlags(intentCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently logged practice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := resolvedPaths()
			if err != nil {
				return err
			}
			db, err := progress.Open(paths.Progress)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			count, _ := cmd.Flags().GetInt(FlagCount)
			rows, err := db.Recent(count)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool(FlagJSON); asJSON {
				data, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal history: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printHistory(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	historyCmd.Flags().Int(FlagCount, 20, "Number of entries to show")
	historyCmd.Flags().Bool(FlagJSON, false, "Output history as JSON")

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var logPath string
			if info, err := daemon.FindDaemonInfo(""); err == nil {
				logPath = info.LogPath
			} else {
				paths, err := resolvedPaths()
				if err != nil {
					return err
				}
				logPath = paths.Log
			}

			if follow, _ := cmd.Flags().GetBool(FlagFollow); follow {
				return tailFollow(cmd.Context(), cmd.OutOrStdout(), logPath)
			}
			count, _ := cmd.Flags().GetInt(FlagCount)
			return tailLast(cmd.OutOrStdout(), logPath, count)
		},
	}
	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a growth config and starter routine",
		Long: `Create the growth configuration for this project.

Creates the following structure:
  .growth/
    config.yaml
    routine.yaml (unless --minimal)
  .gitignore (managed section appended, not overwritten)

With --global, only config.yaml is written to $XDG_CONFIG_HOME/growth/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := initcmd.Options{
				DryRun:  viper.GetBool(FlagDryRun),
				Force:   viper.GetBool(FlagForce),
				Minimal: viper.GetBool(FlagMinimal),
				Global:  viper.GetBool(FlagGlobal),
				Writer:  cmd.OutOrStdout(),
			}
			_, err := initcmd.Run(opts)
			return err
		},
	}
	initCmd.Flags().Bool(FlagDryRun, false, "Show what would be changed without making changes")
	initCmd.Flags().Bool(FlagForce, false, "Overwrite changed files (keeps a .bak copy)")
	initCmd.Flags().Bool(FlagMinimal, false, "Write only the config file")
	initCmd.Flags().Bool(FlagGlobal, false, "Write the user-level config instead of the project one")
	bindFlags(initCmd)

	rootCmd.AddCommand(
		versionCmd,
		startCmd,
		statusCmd,
		runCmd,
		pauseCmd,
		resumeCmd,
		stopCmd,
		nextCmd,
		previousCmd,
		skipCmd,
		ackCmd,
		quickCmd,
		promptCmd,
		resetCmd,
		autoCmd,
		backgroundCmd,
		foregroundCmd,
		shutdownCmd,
		intentCmd,
		historyCmd,
		eventsCmd,
		initCmd,
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
