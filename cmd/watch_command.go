package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/live-sub-translator/internal/config"
	"github.com/MimeLyc/live-sub-translator/internal/pipeline"
	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

type watchOptions struct {
	file         string
	target       string
	linger       time.Duration
	speed        float64
	showOriginal bool
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Translate a caption stream and print the overlay",
		Long: `Reads caption snapshots and prints translations as the overlay would show them.

Plain input is one snapshot per line; tab separated fields are joined as
caption segments. A .srt file is replayed word by word on its own timing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(runCtx, cmd, cfg, newTranslator(cfg), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Caption file (.srt or one snapshot per line); stdin when empty")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Target language; overrides TARGET_LANGUAGE")
	cmd.Flags().DurationVar(&opts.linger, "linger", 2*time.Second, "How long to wait for translations after the input ends")
	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "Playback speed for .srt files")
	cmd.Flags().BoolVar(&opts.showOriginal, "show-original", false, "Print captions before their translation")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, tr provider.Translator, opts watchOptions) error {
	st := settings.Default()
	st.TargetLang = cfg.Translate.TargetLanguage.String()
	if opts.target != "" {
		st.TargetLang = opts.target
	}
	st.ShowOriginal = opts.showOriginal
	if err := st.Validate(); err != nil {
		return err
	}

	source, closeSource, err := openSource(cmd, opts)
	if err != nil {
		return err
	}
	defer closeSource()

	session := pipeline.NewSession(
		tr,
		newTermRenderer(cmd.OutOrStdout()),
		pipeline.WithOptions(pipelineOptions(cfg)),
		pipeline.WithSettings(st),
		pipeline.WithCache(newCache(cfg)),
	)

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = session.Run(sessCtx) }()

	subtitle.NewSampler(cfg.Pipeline.Throttle).Run(ctx, source.Observe(ctx), session.Observe)

	if ctx.Err() == nil && opts.linger > 0 {
		log.Debug("input finished, waiting %s for translations", opts.linger)
		select {
		case <-time.After(opts.linger):
		case <-ctx.Done():
		}
	}

	cancel()
	<-session.Done()
	return nil
}

func openSource(cmd *cobra.Command, opts watchOptions) (subtitle.Source, func(), error) {
	if opts.file == "" || opts.file == "-" {
		return subtitle.NewLineSource(cmd.InOrStdin()), func() {}, nil
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return nil, nil, err
	}
	closeFile := func() { _ = f.Close() }

	if strings.EqualFold(filepath.Ext(opts.file), ".srt") {
		defer closeFile()
		cues, err := subtitle.ParseSRT(f)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", opts.file, err)
		}
		return subtitle.CueSource{Cues: cues, Speed: opts.speed}, func() {}, nil
	}
	return subtitle.NewLineSource(f), closeFile, nil
}
