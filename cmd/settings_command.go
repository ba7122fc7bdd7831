package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/live-sub-translator/internal/persistence"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change stored overlay settings",
		Long: `Reads and writes the settings database of the data directory.

Running servers pick up changes made through their HTTP API; changes made
here apply to sessions created afterwards.`,
	}
	cmd.PersistentFlags().StringVarP(&profile, "profile", "p", persistence.DefaultProfile, "Settings profile")

	withStore := func(fn func(*persistence.SQLiteStore) error) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		store, err := persistence.NewSQLiteStore(cfg.DBPath())
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(store)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show every setting of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *persistence.SQLiteStore) error {
				rows, err := store.ListSettings(cmd.Context(), profile)
				if err != nil {
					return err
				}
				stored := make(map[string]persistence.SettingRow, len(rows))
				for _, row := range rows {
					stored[row.Key] = row
				}
				st, err := store.LoadSettings(cmd.Context(), profile)
				if err != nil {
					return err
				}

				table := make([][]string, 0, len(settings.Keys()))
				for _, key := range settings.Keys() {
					value, err := st.Value(key)
					if err != nil {
						return err
					}
					updated := "default"
					if row, ok := stored[key]; ok {
						updated = row.UpdatedAt.Local().Format("2006-01-02 15:04:05")
					}
					table = append(table, []string{key, string(value), updated})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value", "Updated"}, table))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *persistence.SQLiteStore) error {
				st, err := store.LoadSettings(cmd.Context(), profile)
				if err != nil {
					return err
				}
				value, err := st.Value(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(value))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "set <key> <json>",
		Short:   "Store one setting",
		Example: `  livesub settings set targetLang '"ja"'
  livesub settings set position '{"bottom": 80}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *persistence.SQLiteStore) error {
				st, err := store.PutSetting(cmd.Context(), profile, args[0], json.RawMessage(args[1]))
				if err != nil {
					return err
				}
				value, _ := st.Value(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop every stored setting of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *persistence.SQLiteStore) error {
				if err := store.ResetSettings(cmd.Context(), profile); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s reset to defaults\n", profile)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "profiles",
		Short: "List profiles with stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *persistence.SQLiteStore) error {
				profiles, err := store.ListProfiles(cmd.Context())
				if err != nil {
					return err
				}
				for _, p := range profiles {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	})

	return cmd
}
