package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"focusforest/internal/event"
	"focusforest/internal/ipc"

	sqlitestore "focusforest/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:   "focusforest-cli",
	Short: "CLI tool to interact with the Focus Forest daemon",
	Long:  `A command-line interface to start and stop focus sessions, log moods, manage projects and read insights from the running Focus Forest daemon via its Unix socket.`,
}

// --- Client Helper Function ---
func sendCommand(cmd ipc.Command) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		log.Fatalf("Error connecting to daemon socket (%s): %v\nIs the Focus Forest daemon running?", socketPath, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(cmd); err != nil {
		log.Fatalf("Error sending command: %v", err)
	}

	var resp ipc.Response
	if err := decoder.Decode(&resp); err != nil {
		log.Fatalf("Error receiving response: %v", err)
	}

	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Message)
		os.Exit(1)
	}
	if resp.Message != "" {
		fmt.Println("Success:", resp.Message)
	}
	if resp.Data != nil {
		prettyData, err := json.MarshalIndent(resp.Data, "", "  ")
		if err == nil {
			fmt.Println(string(prettyData))
		} else {
			fmt.Println("Data (raw):", resp.Data)
		}
	}
}

// simple builds a command that sends name with no arguments.
func simple(use, short, name string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sendCommand(ipc.Command{Name: name})
		},
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the next session (focus or break, whichever is due)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		project, _ := cmd.Flags().GetString("project")
		sendCommand(ipc.Command{
			Name: ipc.CmdStartSession,
			Args: ipc.StartSessionArgs{ProjectID: project},
		})
	},
}

var visitCmd = &cobra.Command{
	Use:   "visit <url>",
	Short: "Report a page visit; distracting sites damage the growing tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Command{
			Name: ipc.CmdReportVisit,
			Args: ipc.ReportVisitArgs{URL: args[0]},
		})
	},
}

var moodCmd = &cobra.Command{
	Use:       "mood <great|good|okay|tired|stressed>",
	Short:     "Log how you feel right now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"great", "good", "okay", "tired", "stressed"},
	Run: func(cmd *cobra.Command, args []string) {
		energy, _ := cmd.Flags().GetInt("energy")
		sendCommand(ipc.Command{
			Name: ipc.CmdSetMood,
			Args: ipc.SetMoodArgs{Mood: args[0], Energy: energy},
		})
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project to credit focus time to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		color, _ := cmd.Flags().GetString("color")
		description, _ := cmd.Flags().GetString("description")
		sendCommand(ipc.Command{
			Name: ipc.CmdCreateProject,
			Args: ipc.CreateProjectArgs{Name: name, Color: color, Description: description},
		})
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show personal productivity insights",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		refresh, _ := cmd.Flags().GetBool("refresh")
		if refresh {
			sendCommand(ipc.Command{Name: ipc.CmdRefreshInsights})
			return
		}
		sendCommand(ipc.Command{Name: ipc.CmdGetPersonalInsights})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a detailed report for a timeframe",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		timeframe, _ := cmd.Flags().GetString("timeframe")
		sendCommand(ipc.Command{
			Name: ipc.CmdGetDetailedReport,
			Args: ipc.DetailedReportArgs{Timeframe: timeframe},
		})
	},
}

// historyCmd reads the event journal directly, so it works while the
// daemon is stopped.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the recorded session and distraction journal",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			log.Fatalf("Error: Database file not found at %s. Ensure the daemon has run or specify path with --db.", dbPath)
		}

		store := sqlitestore.NewSQLiteStore(dbPath)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			log.Fatalf("Failed to initialize storage connection: %v", err)
		}
		defer store.Close()

		end := time.Now()
		start := end.AddDate(0, 0, -days)
		events, err := store.GetEvents(ctx, start, end,
			event.EventTypeSessionStart, event.EventTypeSessionEnd, event.EventTypeDistraction, event.EventTypeMood)
		if err != nil {
			log.Fatalf("Failed to fetch events: %v", err)
		}
		if len(events) == 0 {
			fmt.Println("No sessions recorded for the specified period.")
			return
		}

		var focus time.Duration
		var completed, distractions int
		for _, e := range events {
			fmt.Printf("%s  %-13s %-12s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Type, e.Tag, e.Notes)
			switch e.Type {
			case event.EventTypeSessionEnd:
				if e.Tag == string(event.SessionWork) && strings.HasPrefix(e.Notes, "completed") {
					completed++
					focus += time.Duration(e.Value * float64(time.Second))
				}
			case event.EventTypeDistraction:
				distractions++
			}
		}
		fmt.Printf("\n%d focus sessions completed, %s focused, %d distractions\n", completed, formatDurationHuman(focus), distractions)
	},
}

func formatDurationHuman(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", ipc.DefaultSocketPath, "Path to the daemon's unix socket")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "focusforest.db", "Path to the Focus Forest database file (history only)")

	// --- Session Commands ---
	startCmd.Flags().StringP("project", "p", "", "Project id or name to credit the session to")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(simple("stop", "Abandon the running session", ipc.CmdEndSession))
	rootCmd.AddCommand(visitCmd)

	// --- Mood and Project Commands ---
	moodCmd.Flags().IntP("energy", "e", 3, "Energy level from 1 to 5")
	rootCmd.AddCommand(moodCmd)

	projectCreateCmd.Flags().StringP("name", "n", "", "Project name (required)")
	projectCreateCmd.Flags().StringP("color", "c", "", "Hex color, e.g. #2d5a27")
	projectCreateCmd.Flags().StringP("description", "d", "", "Optional description")
	projectCreateCmd.MarkFlagRequired("name")
	projectCmd.AddCommand(projectCreateCmd)
	rootCmd.AddCommand(projectCmd)

	// --- Insight Commands ---
	insightsCmd.Flags().BoolP("refresh", "r", false, "Rerun the daily analysis first")
	rootCmd.AddCommand(insightsCmd)
	reportCmd.Flags().StringP("timeframe", "t", "week", "day, week, month or all")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(simple("optimal", "Show the next optimal time to start focusing", ipc.CmdGetOptimalStartTime))
	rootCmd.AddCommand(simple("goals", "Show personalized goals", ipc.CmdGetPersonalizedGoals))
	rootCmd.AddCommand(simple("break", "Suggest what to do on the next break", ipc.CmdGetBreakSuggestion))
	rootCmd.AddCommand(simple("moods", "Show how mood correlates with focus", ipc.CmdGetMoodAnalysis))
	rootCmd.AddCommand(simple("theme", "Show the current forest theme", ipc.CmdGetForestTheme))

	historyCmd.Flags().IntP("days", "d", 7, "Number of past days to include")
	rootCmd.AddCommand(historyCmd)

	// --- Other Commands ---
	rootCmd.AddCommand(simple("ping", "Check if the Focus Forest daemon is running", ipc.CmdPing))
	rootCmd.AddCommand(simple("state", "Show the timer, current tree and forest", ipc.CmdGetState))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
