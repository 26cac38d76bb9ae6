// Package guard screens text before it reaches a generation backend.
package guard

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/mdombrov-33/go-promptguard/detector"
)

// MaxInputLength is the longest input the detector inspects.
const MaxInputLength = 2000

var (
	// ErrPromptInjection is returned when text looks like an injection attempt.
	ErrPromptInjection = errors.New("input rejected: possible prompt injection")
	// ErrOffTopic is returned for questions outside the benefits vocabulary.
	ErrOffTopic = errors.New("question is outside health and benefits topics")
)

// promptGuard runs pattern and statistical detectors only; no LLM judge.
var promptGuard = detector.New(
	detector.WithThreshold(0.6),
	detector.WithAllDetectors(),
	detector.WithMaxInputLength(MaxInputLength),
)

// fallbackPatterns catch phrasing the detector scores below threshold.
var fallbackPatterns = []string{
	"ignore previous",
	"ignore all previous",
	"disregard previous",
	"disregard all previous",
	"you are now",
	"new instructions",
	"system prompt",
	"<system>",
	"</system>",
}

// CheckPrompt returns ErrPromptInjection when text is unsafe.
func CheckPrompt(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) > MaxInputLength {
		text = text[:MaxInputLength]
	}
	if !promptGuard.Detect(ctx, text).Safe {
		return ErrPromptInjection
	}
	lower := strings.ToLower(text)
	for _, p := range fallbackPatterns {
		if strings.Contains(lower, p) {
			return ErrPromptInjection
		}
	}
	return nil
}

// topics is the benefits vocabulary a reader question must touch.
var topics = []string{
	"health insurance", "employee benefits", "benefits", "hsa", "fsa", "hra",
	"cobra", "compliance", "health plan", "medicare", "medicaid", "deductible",
	"copay", "coinsurance", "premium", "network", "dependent coverage",
	"open enrollment", "enrollment", "vision", "dental", "telemedicine",
	"telehealth", "eob", "hr", "wellness", "aca", "erisa", "hipaa", "pbm",
	"prescription", "pharmacy", "coverage", "claim", "out-of-pocket",
}

// IsOnTopic reports whether text mentions a benefits topic. Terms match
// case-insensitively on word boundaries, so "aca" does not match "vacation".
func IsOnTopic(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, t := range topics {
		if strings.Contains(padded, " "+t+" ") {
			return true
		}
		// Plurals: "claims", "premiums", "deductibles".
		if strings.Contains(padded, " "+t+"s ") {
			return true
		}
	}
	return false
}

// CheckQuestion applies both screens to a reader question.
func CheckQuestion(ctx context.Context, question string) error {
	if err := CheckPrompt(ctx, question); err != nil {
		return err
	}
	if !IsOnTopic(question) {
		return ErrOffTopic
	}
	return nil
}
