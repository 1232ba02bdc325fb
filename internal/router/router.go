// Package router classifies inbound updates into handler actions. Pure
// classification: no side effects, no backend calls.
package router

import (
	"strings"

	"zathurabot/internal/domain"
)

const (
	cmdStart    = "start"
	cmdGenerate = "generate"
)

// Classify maps one inbound update to exactly one action. Total: every
// update yields an action, unrecognized input maps to ActionIgnore.
func Classify(u domain.InboundUpdate) domain.Action {
	if u.Command != "" {
		switch strings.ToLower(u.Command) {
		case cmdStart:
			return domain.Action{Kind: domain.ActionWelcome}
		case cmdGenerate:
			prompt := strings.TrimSpace(strings.Join(u.Args, " "))
			if prompt == "" {
				return domain.Action{Kind: domain.ActionUsageError}
			}
			return domain.Action{Kind: domain.ActionGenerateImage, Prompt: prompt}
		default:
			return domain.Action{Kind: domain.ActionIgnore}
		}
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		return domain.Action{Kind: domain.ActionIgnore}
	}
	return domain.Action{Kind: domain.ActionGenerateText, Prompt: text}
}
