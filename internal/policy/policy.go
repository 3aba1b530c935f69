// Package policy holds the operator-tunable rules consulted around an
// evaluation: where the commands may be used, and whether a composed response
// may be sent at all.
package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/doublevcodes/bot/internal/chat"
)

// Config is the on-disk shape of a policy file.
type Config struct {
	Gate   GateConfig   `yaml:"gate"`
	Filter FilterConfig `yaml:"filter"`
}

// GateConfig restricts where evaluation commands may run. Users holding a
// bypass role are exempt from channel and category blocks.
type GateConfig struct {
	BypassRoles       []string `yaml:"bypass_roles"`
	BlockedChannels   []string `yaml:"blocked_channels"`
	BlockedCategories []string `yaml:"blocked_categories"`
	RedirectChannel   string   `yaml:"redirect_channel"`
}

// FilterConfig lists regular expressions that veto a composed response.
type FilterConfig struct {
	Patterns []string `yaml:"patterns"`
}

// Policy is a compiled, ready-to-consult rule set.
type Policy struct {
	Gate   *Gate
	Filter *Filter
}

// Load reads and compiles a policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing policy file: %w", err)
	}
	return New(cfg)
}

// New compiles a policy from config. A zero Config yields a policy that
// allows everything and filters nothing.
func New(cfg Config) (*Policy, error) {
	f, err := newFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	return &Policy{
		Gate:   newGate(cfg.Gate),
		Filter: f,
	}, nil
}

// Verdict is the gate's decision for one invocation.
type Verdict struct {
	Allowed bool
	// RedirectChannelID, when set, is where the response should go instead
	// of the invoking channel.
	RedirectChannelID string
}

// Gate answers whether an evaluation command may run for a given message.
type Gate struct {
	bypassRoles       map[string]struct{}
	blockedChannels   map[string]struct{}
	blockedCategories map[string]struct{}
	redirect          string
}

func newGate(cfg GateConfig) *Gate {
	return &Gate{
		bypassRoles:       toSet(cfg.BypassRoles),
		blockedChannels:   toSet(cfg.BlockedChannels),
		blockedCategories: toSet(cfg.BlockedCategories),
		redirect:          cfg.RedirectChannel,
	}
}

// Check decides whether the message's author may evaluate code here. In a
// blocked channel or category, non-bypass users are redirected to the
// configured channel, or denied outright when no redirect is configured.
func (g *Gate) Check(m chat.Message) Verdict {
	if g.HasBypassRole(m.Roles) {
		return Verdict{Allowed: true}
	}

	_, channelBlocked := g.blockedChannels[m.ChannelID]
	_, categoryBlocked := g.blockedCategories[m.CategoryID]
	if channelBlocked || categoryBlocked {
		if g.redirect == "" {
			return Verdict{}
		}
		return Verdict{Allowed: true, RedirectChannelID: g.redirect}
	}
	return Verdict{Allowed: true}
}

// HasBypassRole reports whether any of the roles is a configured bypass role.
func (g *Gate) HasBypassRole(roles []string) bool {
	for _, r := range roles {
		if _, ok := g.bypassRoles[r]; ok {
			return true
		}
	}
	return false
}

// RedirectChannel returns the configured redirect channel id, if any.
func (g *Gate) RedirectChannel() string {
	return g.redirect
}

// Filter vetoes responses matching any configured pattern.
type Filter struct {
	patterns []*regexp.Regexp
}

func newFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling filter pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Triggered reports whether the body matches any filter pattern.
func (f *Filter) Triggered(body string) bool {
	for _, re := range f.patterns {
		if re.MatchString(body) {
			return true
		}
	}
	return false
}

func toSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}
