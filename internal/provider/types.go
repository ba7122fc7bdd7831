// Package provider calls the public translation endpoint and wraps it with
// failure isolation and request coalescing.
package provider

import "context"

// AutoDetect asks the provider to detect the source language.
const AutoDetect = "auto"

type Request struct {
	Text       string
	SourceLang string
	TargetLang string
}

type Result struct {
	// Text is the reassembled translation, or the input when the response
	// carried no usable fragment.
	Text string
	// SourceLang is the detected source language, empty when unknown.
	SourceLang string
}

// Translator is a best-effort single-text translation call.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, req Request) (Result, error)

func (f TranslatorFunc) Translate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
