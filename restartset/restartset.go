// Package restartset implements the stale-set reducer: it collapses
// stale PIDs, via parent-process chains and cgroup membership, into the
// minimal set of restartable units, and the Unit type that names them.
package restartset

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags the variant a Unit holds.
type Kind int

const (
	KindSystemdService Kind = iota
	KindSystemdManager
	KindSysVInit
	KindInitScript
	KindUserSession
	KindContainer
)

func (k Kind) String() string {
	switch k {
	case KindSystemdService:
		return "systemd service"
	case KindSystemdManager:
		return "systemd manager"
	case KindSysVInit:
		return "sysv init"
	case KindInitScript:
		return "init script"
	case KindUserSession:
		return "user session"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Unit is the tagged restart-unit value. Only the fields relevant to
// Kind are populated.
type Unit struct {
	Kind Kind

	// SystemdService / InitScript
	Name string

	// SystemdService, populated only when a matching unit file could be
	// parsed; empty when no unit file was found or it had no ExecStart=.
	ExecStart string

	// InitScript
	HasLSB                 bool
	DefaultStartRunlevels  []int
	PidFiles               []string

	// UserSession
	Uid       int
	SessionID string
	Commands  map[string][]int // command -> pids

	// Container
	RestartArgv []string
}

// Key returns the identity used for deduplication in the final restart
// set: same Kind+Name (or Uid+SessionID for sessions) merge.
func (u Unit) Key() string {
	switch u.Kind {
	case KindSystemdManager:
		return "systemd-manager"
	case KindSysVInit:
		return "sysv-init"
	case KindUserSession:
		return fmt.Sprintf("session:%d:%s", u.Uid, u.SessionID)
	case KindContainer:
		return "container:" + u.Name
	default:
		return "unit:" + u.Name
	}
}

// DisplayName returns the name used in NEEDRESTART-SVC / NEEDRESTART-CONT
// output lines.
func (u Unit) DisplayName() string {
	switch u.Kind {
	case KindSystemdManager:
		return "systemd manager"
	case KindSysVInit:
		return "sysvinit"
	case KindUserSession:
		return "user manager service"
	default:
		return u.Name
	}
}

// Set is the mutable accumulator the driver owns for the duration of one
// run: the restart-unit map, keyed by Unit.Key so duplicates merge
// instead of appearing twice in the final restart set.
type Set struct {
	units    map[string]Unit
	skipped  []string // service/unit names skipped for logging (e.g. runlevel mismatch)
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{units: make(map[string]Unit)}
}

// Add merges u into the set, keyed by u.Key(). For KindUserSession, an
// existing entry's Commands map is merged rather than overwritten.
func (s *Set) Add(u Unit) {
	key := u.Key()
	existing, ok := s.units[key]
	if !ok {
		s.units[key] = u
		return
	}

	if u.Kind == KindUserSession {
		for cmd, pids := range u.Commands {
			existing.Commands[cmd] = append(existing.Commands[cmd], pids...)
		}
		s.units[key] = existing
	}
}

// Skip records a unit name that was considered but not added (e.g. its
// default-start runlevels exclude the current runlevel).
func (s *Set) Skip(name string) {
	s.skipped = append(s.skipped, name)
}

// Skipped returns the names recorded via Skip.
func (s *Set) Skipped() []string {
	return append([]string(nil), s.skipped...)
}

// Reconcile applies three rules, in order:
//   - an override_rc match wins outright: forced=false drops the unit,
//     forced=true keeps it and skips the blacklist check below;
//   - entries matching a blacklist_rc pattern are dropped;
//   - if both "foo" and "foo.service" are present, drop the bare "foo".
func (s *Set) Reconcile(blacklisted func(name string) bool, overrideRC func(name string) (forced bool, ok bool)) {
	for key, u := range s.units {
		if u.Kind != KindSystemdService && u.Kind != KindInitScript {
			continue
		}

		if overrideRC != nil {
			if forced, ok := overrideRC(u.Name); ok {
				if !forced {
					delete(s.units, key)
				}
				continue
			}
		}

		if blacklisted != nil && blacklisted(u.Name) {
			delete(s.units, key)
			continue
		}
	}

	names := make(map[string]bool)
	for _, u := range s.units {
		if u.Kind == KindSystemdService || u.Kind == KindInitScript {
			names[u.Name] = true
		}
	}

	for key, u := range s.units {
		if u.Kind != KindInitScript && u.Kind != KindSystemdService {
			continue
		}
		if strings.HasSuffix(u.Name, ".service") {
			continue
		}
		if names[u.Name+".service"] {
			delete(s.units, key)
		}
	}
}

// Units returns the final restart set, sorted by DisplayName for
// deterministic output ordering.
func (s *Set) Units() []Unit {
	out := make([]Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayName() < out[j].DisplayName()
	})
	return out
}

// ServiceNames returns the sorted names of every systemd-service/init-
// script unit in the set. The driver's restart commands are built from
// Units, not from this list.
func (s *Set) ServiceNames() []string {
	var out []string
	for _, u := range s.units {
		if u.Kind == KindSystemdService || u.Kind == KindInitScript {
			out = append(out, u.Name)
		}
	}
	sort.Strings(out)
	return out
}
