// Package config loads and validates the needrestart-go configuration:
// a declarative, data-only YAML document (gopkg.in/yaml.v3). Every
// recognized configuration key has a field here; unknown keys are
// rejected by strict decoding so a typo fails loudly instead of being
// silently ignored.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RestartMode is the -r flag / restart config value.
type RestartMode string

const (
	RestartList        RestartMode = "l"
	RestartInteractive RestartMode = "i"
	RestartAutomatic   RestartMode = "a"
)

// DetailMode is the -m flag / detail config value.
type DetailMode string

const (
	DetailEasy     DetailMode = "e"
	DetailAdvanced DetailMode = "a"
)

// KernelHints controls how kernel-upgrade hints are surfaced.
type KernelHints int

const (
	KernelHintsOn     KernelHints = 1
	KernelHintsOff    KernelHints = 0
	KernelHintsTerse  KernelHints = -1
)

// raw is the shape decoded directly from YAML; every field is optional
// and defaults are applied in Load.
type raw struct {
	Verbosity       *int              `yaml:"verbosity"`
	HookD           *string           `yaml:"hook_d"`
	NotifyD         *string           `yaml:"notify_d"`
	SendNotify      *bool             `yaml:"sendnotify"`
	Restart         *string           `yaml:"restart"`
	DefNo           *bool             `yaml:"defno"`
	UIMode          *string           `yaml:"ui_mode"`
	SystemctlCombine *bool            `yaml:"systemctl_combine"`
	Blacklist       []string          `yaml:"blacklist"`
	BlacklistRC     []string          `yaml:"blacklist_rc"`
	OverrideRC      map[string]bool   `yaml:"override_rc"`
	OverrideCont    map[string]bool   `yaml:"override_cont"`
	InterpScan      *bool             `yaml:"interpscan"`
	KernelHints     *int              `yaml:"kernelhints"`
}

// Config is the fully-resolved configuration value, passed by value (not
// through a pointer) to every component; nothing modifies it after the
// CLI overrides are applied.
type Config struct {
	Verbosity        int
	HookD            string
	NotifyD          string
	SendNotify       bool
	Restart          RestartMode
	DefNo            bool
	UIMode           DetailMode
	SystemctlCombine bool

	BlacklistExe []*regexp.Regexp
	BlacklistRC  []*regexp.Regexp
	OverrideRC   map[*regexp.Regexp]bool
	OverrideCont map[*regexp.Regexp]bool

	InterpScan  bool
	KernelHints KernelHints
}

// Defaults returns the configuration in effect before any file or CLI
// overrides are applied.
func Defaults() Config {
	return Config{
		Verbosity:        1,
		HookD:            "/etc/needrestart/hook.d",
		NotifyD:          "/etc/needrestart/notify.d",
		SendNotify:       true,
		Restart:          RestartInteractive,
		DefNo:            false,
		UIMode:           DetailAdvanced,
		SystemctlCombine: false,
		InterpScan:       true,
		KernelHints:      KernelHintsOn,
	}
}

// Load reads and strictly decodes the YAML file at path, merging it onto
// Defaults(). An unreadable file or a key that fails regex compilation
// is treated as a fatal configuration error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var r raw
	if err := dec.Decode(&r); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := applyRaw(&cfg, r); err != nil {
		return Config{}, fmt.Errorf("validate config %q: %w", path, err)
	}

	return cfg, nil
}

func applyRaw(cfg *Config, r raw) error {
	if r.Verbosity != nil {
		cfg.Verbosity = *r.Verbosity
	}
	if r.HookD != nil {
		cfg.HookD = *r.HookD
	}
	if r.NotifyD != nil {
		cfg.NotifyD = *r.NotifyD
	}
	if r.SendNotify != nil {
		cfg.SendNotify = *r.SendNotify
	}
	if r.Restart != nil {
		cfg.Restart = RestartMode(*r.Restart)
	}
	if r.DefNo != nil {
		cfg.DefNo = *r.DefNo
	}
	if r.UIMode != nil {
		cfg.UIMode = DetailMode(*r.UIMode)
	}
	if r.SystemctlCombine != nil {
		cfg.SystemctlCombine = *r.SystemctlCombine
	}
	if r.InterpScan != nil {
		cfg.InterpScan = *r.InterpScan
	}
	if r.KernelHints != nil {
		cfg.KernelHints = KernelHints(*r.KernelHints)
	}

	var err error
	cfg.BlacklistExe, err = compileAll(r.Blacklist)
	if err != nil {
		return fmt.Errorf("blacklist: %w", err)
	}
	cfg.BlacklistRC, err = compileAll(r.BlacklistRC)
	if err != nil {
		return fmt.Errorf("blacklist_rc: %w", err)
	}

	cfg.OverrideRC, err = compileMap(r.OverrideRC)
	if err != nil {
		return fmt.Errorf("override_rc: %w", err)
	}
	cfg.OverrideCont, err = compileMap(r.OverrideCont)
	if err != nil {
		return fmt.Errorf("override_cont: %w", err)
	}

	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func compileMap(m map[string]bool) (map[*regexp.Regexp]bool, error) {
	out := make(map[*regexp.Regexp]bool, len(m))
	for pattern, v := range m {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		out[re] = v
	}
	return out, nil
}

// BlacklistedRC reports whether name matches any blacklist_rc pattern.
func (c Config) BlacklistedRC(name string) bool {
	for _, re := range c.BlacklistRC {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// OverrideForRC reports whether name matches an override_rc pattern and,
// if so, the forced inclusion value: true pins the unit into the restart
// set regardless of blacklist_rc, false drops it regardless of normal
// detection. ok is false when no pattern matches, leaving the caller to
// fall back to ordinary blacklist handling.
func (c Config) OverrideForRC(name string) (forced bool, ok bool) {
	return matchOverride(c.OverrideRC, name)
}

// OverrideForCont is OverrideForRC for container names matched against
// override_cont.
func (c Config) OverrideForCont(name string) (forced bool, ok bool) {
	return matchOverride(c.OverrideCont, name)
}

func matchOverride(overrides map[*regexp.Regexp]bool, name string) (forced bool, ok bool) {
	for re, v := range overrides {
		if re.MatchString(name) {
			return v, true
		}
	}
	return false, false
}
