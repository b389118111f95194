// Package main is the entry point for the Inword CLI.
// Inword is a private journaling companion: entries and goals live in a local
// SQLite database, and the knowledge base distilled from them is encrypted
// end to end with a key that never leaves the device.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucascarsonbrown/Inword/internal/config"
	"github.com/lucascarsonbrown/Inword/internal/data"
	"github.com/lucascarsonbrown/Inword/internal/extract"
	"github.com/lucascarsonbrown/Inword/internal/journal"
	"github.com/lucascarsonbrown/Inword/internal/kb"
	"github.com/lucascarsonbrown/Inword/internal/kbstore"
	"github.com/lucascarsonbrown/Inword/internal/logging"
	"github.com/lucascarsonbrown/Inword/internal/orchestrator"
	"github.com/lucascarsonbrown/Inword/internal/security"
)

var (
	version  = "0.1.0"
	cfgPath  string
	verbose  bool
	cfg      *config.Config
	logClose = func() {}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inword",
		Short: "Inword - private journaling with an encrypted knowledge base",
		Long: `Inword is a private journaling companion. Entries and goals stay in a
local database; the knowledge base distilled from them is encrypted with a
device key held in the OS secure store.

Write an entry:       inword journal add "Slept badly, but the demo went well" --mood 3
Refresh the KB:       inword kb update
See what chats see:   inword kb context`,
		PersistentPreRunE: initApp,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logClose()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.inword/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Inword v%s\n", version)
		},
	})

	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(kbCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadFromPath(getConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logClose, err = logging.Setup(level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	return nil
}

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".inword/config.yaml"
	}
	return filepath.Join(home, ".inword", "config.yaml")
}

// ═══════════════════════════════════════════════════════════════════════════════
// WIRING
// ═══════════════════════════════════════════════════════════════════════════════

// app bundles the wired stores a command needs.
type app struct {
	db      *data.Store
	vault   *security.Vault
	journal *journal.Store
	rows    *kbstore.SQLRowStore
	kb      *kbstore.Client
}

func openApp() (*app, func(), error) {
	db, err := data.NewDB(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	vault := security.NewVault(cfg.Storage.DataDir)
	rows := kbstore.NewSQLRowStore(db.DB())

	a := &app{
		db:      db,
		vault:   vault,
		journal: journal.NewStore(db.DB()),
		rows:    rows,
		kb:      kbstore.NewClient(rows, vault, currentUser),
	}

	cleanup := func() {
		db.Close()
	}
	return a, cleanup, nil
}

// currentUser resolves the signed-in user from config.
func currentUser() (string, error) {
	return cfg.User.ID, nil
}

// requireUser returns the signed-in user id or an instructive error.
func requireUser() (string, error) {
	if cfg.User.ID == "" {
		return "", fmt.Errorf("no signed-in user; run 'inword user set <id>' first")
	}
	return cfg.User.ID, nil
}

// newUpdater builds the background kb updater from the configured
// extraction service.
func (a *app) newUpdater() *orchestrator.Updater {
	svc := extract.NewHTTPService(cfg.Extractor.ToClientConfig())
	orch := orchestrator.New(svc, a.journal, a.kb)
	return orchestrator.NewUpdater(orch, cfg.Extractor.UpdateTimeout())
}

// reportUpdate prints the outcome of a kb refresh.
func reportUpdate(res orchestrator.UpdateResult) {
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Warning: kb update failed: %v\n", res.Err)
		return
	}
	if len(res.Sections) == 0 {
		fmt.Println("KB unchanged (nothing to extract).")
		return
	}
	fmt.Printf("KB updated to v%d (%s) in %s\n",
		res.Version, strings.Join(res.Sections, ", "), res.Duration.Round(time.Millisecond))
}

// ═══════════════════════════════════════════════════════════════════════════════
// JOURNAL COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "journal",
		Aliases: []string{"j"},
		Short:   "Write and read journal entries",
	}

	var mood int
	var noUpdate bool
	addCmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a journal entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			var moodPtr *int
			if mood != 0 {
				moodPtr = &mood
			}

			entry, err := a.journal.AddEntry(context.Background(), userID, strings.Join(args, " "), moodPtr)
			if err != nil {
				return fmt.Errorf("failed to add entry: %w", err)
			}
			fmt.Printf("✅ Entry saved: %s\n", entry.ID)

			if noUpdate {
				return nil
			}

			// The entry is already on disk; a kb refresh failure only warns.
			updater := a.newUpdater()
			updater.Trigger(userID, entry)
			updater.Close()
			for res := range updater.Results() {
				reportUpdate(res)
			}
			return nil
		},
	}
	addCmd.Flags().IntVar(&mood, "mood", 0, "mood rating 1-5 (0 = not recorded)")
	addCmd.Flags().BoolVar(&noUpdate, "no-kb-update", false, "skip the knowledge base refresh")
	cmd.AddCommand(addCmd)

	var days, limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			since := time.Now().AddDate(0, 0, -days)
			entries, err := a.journal.EntriesSince(context.Background(), userID, since, limit)
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No entries found.")
				return nil
			}

			fmt.Printf("Found %d entries:\n\n", len(entries))
			for _, e := range entries {
				moodStr := "-"
				if e.MoodRating != nil {
					moodStr = fmt.Sprintf("%d", *e.MoodRating)
				}
				fmt.Printf("  %s  mood:%s  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"), moodStr, truncate(e.Content, 60))
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&days, "days", 30, "how many days back to list")
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	cmd.AddCommand(listCmd)

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// GOAL COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func goalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goal",
		Aliases: []string{"g"},
		Short:   "Track longer-term goals",
	}

	var detail string
	addCmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			goal, err := a.journal.AddGoal(context.Background(), userID, strings.Join(args, " "), detail)
			if err != nil {
				return fmt.Errorf("failed to add goal: %w", err)
			}
			fmt.Printf("✅ Goal added: %s (%s)\n", goal.Title, goal.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&detail, "detail", "", "longer description of the goal")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			goals, err := a.journal.ListGoals(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to list goals: %w", err)
			}

			if len(goals) == 0 {
				fmt.Println("No goals yet.")
				return nil
			}

			fmt.Printf("Found %d goals:\n\n", len(goals))
			for _, g := range goals {
				fmt.Printf("  [%s] %s (%s)\n", g.Status, g.Title, g.ID)
				if g.Detail != "" {
					fmt.Printf("        %s\n", truncate(g.Detail, 70))
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "done [goal-id]",
		Short: "Mark a goal as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.journal.UpdateGoalStatus(context.Background(), userID, args[0], journal.StatusDone); err != nil {
				return fmt.Errorf("failed to update goal: %w", err)
			}
			fmt.Println("✅ Goal marked done.")
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// KB COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and refresh the encrypted knowledge base",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Decrypt and print the full knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(); err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := a.kb.Fetch(context.Background())
			if err != nil && snap == nil {
				return fmt.Errorf("failed to fetch kb: %w", err)
			}
			if err != nil {
				// Show what decrypted; the rest renders as a placeholder.
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}

			out, err := json.MarshalIndent(renderKB(snap), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render kb: %w", err)
			}
			fmt.Printf("Version %d\n%s\n", snap.Version, out)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "context",
		Short: "Print the compact context injected into chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := a.kb.Fetch(context.Background())
			if err != nil && snap == nil {
				return fmt.Errorf("failed to fetch kb: %w", err)
			}
			if err != nil {
				// Unreadable sections contribute nothing to the context.
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}

			goals, err := a.journal.ListGoals(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to list goals: %w", err)
			}

			infos := make([]kb.GoalInfo, 0, len(goals))
			for _, g := range goals {
				infos = append(infos, kb.GoalInfo{ID: g.ID, Title: g.Title})
			}

			out, err := json.MarshalIndent(kb.BuildCompactContext(snap.KB, infos), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render context: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Re-extract facts from recent entries and save the kb",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			updater := a.newUpdater()
			updater.Trigger(userID, nil)
			updater.Close()
			for res := range updater.Results() {
				if res.Err != nil {
					return fmt.Errorf("kb update failed: %w", res.Err)
				}
				reportUpdate(res)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show kb version and recent update outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()

			row, err := a.rows.GetRow(ctx, userID)
			switch {
			case errors.Is(err, kbstore.ErrRowNotFound):
				fmt.Println("No knowledge base yet. It is created on the first save.")
			case err != nil:
				return fmt.Errorf("failed to read kb row: %w", err)
			default:
				fmt.Printf("Version:           %d\n", row.Version)
				fmt.Printf("Updated:           %s\n", row.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Printf("Key backup stored: %t\n", row.EncryptedKeyBackup != nil)
			}

			updates, err := a.rows.RecentUpdates(ctx, userID, 10)
			if err != nil {
				return fmt.Errorf("failed to read update log: %w", err)
			}
			if len(updates) == 0 {
				return nil
			}

			fmt.Printf("\nRecent updates:\n")
			for _, u := range updates {
				line := fmt.Sprintf("  %s  %-6s  v%d",
					u.CreatedAt.Local().Format("2006-01-02 15:04"), u.Outcome, u.Version)
				if len(u.Sections) > 0 {
					line += "  " + strings.Join(u.Sections, ",")
				}
				if u.Detail != "" {
					line += "  " + truncate(u.Detail, 40)
				}
				fmt.Println(line)
			}
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// KEY COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the device encryption key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show where the key lives and whether backup is on",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Printf("Key present: %t\n", a.vault.HasKey())
			if a.vault.UsingFallback() {
				fmt.Println("Key store:   file fallback (OS secure store unavailable)")
			} else {
				fmt.Println("Key store:   OS secure store")
			}

			backup, err := a.vault.BackupEnabled()
			if err != nil {
				return fmt.Errorf("failed to read backup flag: %w", err)
			}
			fmt.Printf("Backup:      %t\n", backup)
			return nil
		},
	})

	var backupPassphrase string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Wrap the key under a passphrase and store it with the kb row",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			if backupPassphrase == "" {
				return fmt.Errorf("--passphrase is required")
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()

			wrapped, err := a.vault.ExportWrapped(backupPassphrase)
			if err != nil {
				return fmt.Errorf("failed to wrap key: %w", err)
			}

			// The backup lives on the kb row; create the row on first use.
			if _, err := a.rows.GetRow(ctx, userID); errors.Is(err, kbstore.ErrRowNotFound) {
				if _, err := a.kb.Save(ctx, kb.NewPrivateKB(), 0); err != nil {
					return fmt.Errorf("failed to create kb row: %w", err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to read kb row: %w", err)
			}

			if err := a.rows.SetKeyBackup(ctx, userID, &wrapped); err != nil {
				return fmt.Errorf("failed to store key backup: %w", err)
			}
			if err := a.vault.SetBackupEnabled(true); err != nil {
				return fmt.Errorf("failed to record backup flag: %w", err)
			}

			fmt.Println("✅ Key backup stored. The passphrase is the only way to recover it.")
			return nil
		},
	}
	backupCmd.Flags().StringVar(&backupPassphrase, "passphrase", "", "passphrase protecting the backup")
	cmd.AddCommand(backupCmd)

	var restorePassphrase string
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Recover the key from its passphrase-wrapped backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUser()
			if err != nil {
				return err
			}
			if restorePassphrase == "" {
				return fmt.Errorf("--passphrase is required")
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			row, err := a.rows.GetRow(context.Background(), userID)
			if errors.Is(err, kbstore.ErrRowNotFound) {
				return fmt.Errorf("no key backup stored for this user")
			}
			if err != nil {
				return fmt.Errorf("failed to read kb row: %w", err)
			}
			if row.EncryptedKeyBackup == nil {
				return fmt.Errorf("no key backup stored for this user")
			}

			if err := a.vault.ImportWrapped(*row.EncryptedKeyBackup, restorePassphrase); err != nil {
				return fmt.Errorf("failed to restore key: %w", err)
			}

			fmt.Println("✅ Key restored.")
			return nil
		},
	}
	restoreCmd.Flags().StringVar(&restorePassphrase, "passphrase", "", "passphrase the backup was wrapped with")
	cmd.AddCommand(restoreCmd)

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the device key (everything encrypted under it is lost)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the key without --yes; the encrypted kb becomes unrecoverable")
			}

			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.vault.DeleteKey(); err != nil {
				return fmt.Errorf("failed to delete key: %w", err)
			}
			fmt.Println("Key deleted. Encrypted kb sections can no longer be read.")
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.AddCommand(deleteCmd)

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// USER + CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the signed-in user",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the signed-in user",
		Run: func(cmd *cobra.Command, args []string) {
			if cfg.User.ID == "" {
				fmt.Println("No user signed in.")
				return
			}
			fmt.Println(cfg.User.ID)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [id]",
		Short: "Set the signed-in user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.User.ID = args[0]
			if err := cfg.SaveToPath(getConfigPath()); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("Signed in as %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			userID := cfg.User.ID
			if userID == "" {
				userID = "(not signed in)"
			}

			fmt.Println("Inword Configuration:")
			fmt.Println("─────────────────────")
			fmt.Printf("Data Dir:  %s\n", cfg.Storage.DataDir)
			fmt.Printf("Extractor: %s\n", cfg.Extractor.Endpoint)
			fmt.Printf("Log Level: %s\n", cfg.Logging.Level)
			fmt.Printf("User:      %s\n", userID)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(getConfigPath())
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// renderKB shapes a snapshot for display. A section that failed to decrypt
// shows a "cannot decrypt" placeholder instead of empty defaults, so loss
// of the key reads differently from an empty kb.
func renderKB(snap *kbstore.Snapshot) map[string]any {
	out := map[string]any{
		kb.SectionGeneral:       snap.KB.General,
		kb.SectionStateRecent:   snap.KB.StateRecent,
		kb.SectionGoalsProgress: snap.KB.GoalsProgress,
	}
	for _, name := range snap.Unreadable {
		out[name] = "cannot decrypt"
	}
	return out
}
