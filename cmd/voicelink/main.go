package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/voicelink/internal/bus"
	"github.com/leonardotrapani/voicelink/internal/config"
	"github.com/leonardotrapani/voicelink/internal/daemon"
	"github.com/leonardotrapani/voicelink/internal/deps"
	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/tui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var envFile string

var rootCmd = &cobra.Command{
	Use:   "voicelink",
	Short: "Stream your microphone to a conversational voice backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with VOICELINK_* overrides")
	rootCmd.AddCommand(
		connectCmd(),
		serveCmd(),
		statusCmd(),
		transcriptCmd(),
		reconnectCmd(),
		versionCmd(),
		stopCmd(),
		configureCmd(),
		doctorCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return daemon.New(mgr, daemon.Options{}).Run()
		},
	}
}

// parseReply splits a daemon reply into its verb and payload. ERR replies
// become errors.
func parseReply(resp string) (string, string, error) {
	resp = strings.TrimRight(resp, "\n")
	verb, payload, _ := strings.Cut(resp, " ")
	if verb == "ERR" {
		return verb, payload, fmt.Errorf("daemon: %s", payload)
	}
	return verb, payload, nil
}

func sendAndPrint(cmd byte, action string) error {
	resp, err := bus.SendCommand(cmd)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if _, _, err := parseReply(resp); err != nil {
		return err
	}
	fmt.Print(resp)
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get the daemon's connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdStatus, "get status")
		},
	}
}

func reconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Re-initialize the daemon's connection with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdReconnect, "reconnect")
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(bus.CmdQuit, "stop daemon")
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and daemon protocol versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("voicelink %s (protocol %s)\n", version, bus.ProtoVer)
			resp, err := bus.SendCommand(bus.CmdVersion)
			if err != nil {
				fmt.Println("daemon: not running")
				return nil
			}
			fmt.Print("daemon: ", resp)
			return nil
		},
	}
}

func decodeTranscript(resp string) ([]transcript.Entry, error) {
	verb, payload, err := parseReply(resp)
	if err != nil {
		return nil, err
	}
	if verb != "TRANSCRIPT" {
		return nil, fmt.Errorf("unexpected reply: %q", resp)
	}
	var entries []transcript.Entry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return entries, nil
}

func transcriptCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Print the daemon's conversation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdTranscript)
			if err != nil {
				return fmt.Errorf("failed to get transcript: %w", err)
			}
			entries, err := decodeTranscript(resp)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			fmt.Println(tui.RenderTranscript(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration editor for voicelink.
This lets you set:
- Backend URL, path and ticket
- Capture backend and audio format
- Reconnect policy
- Telemetry window and Prometheus endpoint
- Notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Configure(cfg)
	if err != nil {
		return fmt.Errorf("configuration editor error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	showNextSteps()
	return nil
}

func showNextSteps() {
	serviceRunning := false
	if err := exec.Command("systemctl", "--user", "is-active", "--quiet", "voicelink.service").Run(); err == nil {
		serviceRunning = true
	}

	fmt.Println("Next Steps:")
	if serviceRunning {
		fmt.Println("1. The daemon reloads the config file automatically; check it with: voicelink status")
	} else {
		fmt.Println("1. Start a conversation: voicelink connect")
		fmt.Println("2. Or run it in the background: systemctl --user start voicelink.service")
	}
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and required external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

func formatDep(st deps.Status) string {
	if !st.Installed {
		if st.Path != "" {
			return fmt.Sprintf("  [ ] %s - %s (%s not responding)", st.Name, st.Purpose, st.Path)
		}
		return fmt.Sprintf("  [ ] %s - %s (not found in PATH)", st.Name, st.Purpose)
	}
	line := fmt.Sprintf("  [x] %s - %s", st.Name, st.Purpose)
	if st.Version != "" {
		line += fmt.Sprintf(" [%s]", st.Version)
	}
	return line
}

func runDoctor() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configPath, _ := config.GetConfigPath()

	healthy := true
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  [ ] config %s: %v\n", configPath, err)
		healthy = false
	} else {
		fmt.Printf("  [x] config %s\n", configPath)
	}

	notifyType := ""
	if cfg.Notifications.Enabled {
		notifyType = cfg.Notifications.Type
	}
	for _, st := range deps.Check(cfg.Recording.Backend, notifyType) {
		fmt.Println(formatDep(st))
		if !st.Installed {
			healthy = false
		}
	}

	if resp, err := bus.SendCommand(bus.CmdStatus); err == nil {
		fmt.Print("  daemon: ", resp)
	} else {
		fmt.Println("  daemon: not running")
	}

	if !healthy {
		return errors.New("some checks failed")
	}
	return nil
}
