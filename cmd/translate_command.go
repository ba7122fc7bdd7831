package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var (
		target  string
		source  string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "translate <text>...",
		Short: "Translate text once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}
			if target == "" {
				target = cfg.Translate.TargetLanguage.String()
			}
			if err := settings.ValidateLanguage(target); err != nil {
				return err
			}
			if source == "" {
				source = cfg.Translate.SourceLanguage
			}

			res, err := newTranslator(cfg).Translate(cmd.Context(), provider.Request{
				Text:       text,
				SourceLang: source,
				TargetLang: target,
			})
			if err != nil {
				return err
			}
			if res.SourceLang == "" {
				res.SourceLang = provider.DetectLanguage(text)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"text":        text,
					"translated":  res.Text,
					"source_lang": res.SourceLang,
				})
			}
			fmt.Fprintln(out, res.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language; overrides TARGET_LANGUAGE")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source language; overrides TRANSLATE_SOURCE_LANGUAGE")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	return cmd
}
