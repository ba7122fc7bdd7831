package main

import (
	"time"

	"github.com/MimeLyc/live-sub-translator/internal/cache"
	"github.com/MimeLyc/live-sub-translator/internal/config"
	"github.com/MimeLyc/live-sub-translator/internal/pipeline"
	"github.com/MimeLyc/live-sub-translator/internal/provider"
)

// newTranslator builds the provider chain shared by every session:
// coalescing in front of the circuit breaker in front of the endpoint.
func newTranslator(cfg *config.Config) provider.Translator {
	client := provider.NewGoogleClient(
		time.Duration(cfg.Translate.Timeout)*time.Second,
		provider.WithEndpoint(cfg.Translate.Endpoint),
		provider.WithClientID(cfg.Translate.ClientID),
	)
	breaker := provider.NewBreaker("translate", client, cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown)
	return provider.NewCoalescer(breaker, time.Duration(cfg.Translate.Timeout)*time.Second)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		SourceLang:       cfg.Translate.SourceLanguage,
		DebounceDelay:    cfg.Pipeline.DebounceDelay,
		RateInterval:     cfg.Pipeline.RateInterval,
		MaxCaptionLength: cfg.Pipeline.MaxCaptionLength,
		HideAfterIdle:    cfg.Pipeline.HideAfterIdle,
		RequestTimeout:   time.Duration(cfg.Translate.Timeout) * time.Second,
	}
}

func newCache(cfg *config.Config) *cache.Cache {
	return cache.New(cache.WithMaxSize(cfg.Cache.MaxSize), cache.WithTTL(cfg.Cache.TTL))
}
