// Package ratelimit enforces per-action request quotas keyed by client origin.
package ratelimit

import (
	"strings"
	"time"

	"riverbank/internal/config"
	"riverbank/internal/riverbank"
)

// Policy allows Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Policies maps an action name (the part of a key before the first ':') to
// its quota. Keys whose action has no entry use Default.
type Policies struct {
	ByAction map[string]Policy
	Default  Policy
}

// PoliciesFromConfig builds the per-action policies from cfg.
func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	window := cfg.Window.Or(time.Minute)
	byAction := map[string]Policy{
		string(riverbank.ActionThrow):         {Limit: orDefault(cfg.Throw, 5), Window: window},
		string(riverbank.ActionReport):        {Limit: orDefault(cfg.Report, 20), Window: window},
		string(riverbank.ActionReact):         {Limit: orDefault(cfg.React, 20), Window: window},
		string(riverbank.ActionFalsePositive): {Limit: orDefault(cfg.FalsePositive, 5), Window: window},
	}
	return Policies{ByAction: byAction, Default: Policy{Limit: 20, Window: window}}
}

func (p Policies) forKey(key string) Policy {
	if policy, ok := p.ByAction[actionOf(key)]; ok {
		return policy
	}
	return p.Default
}

func actionOf(key string) string {
	action, _, _ := strings.Cut(key, ":")
	return action
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
