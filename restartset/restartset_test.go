package restartset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcileDropsBareNameWhenServiceSuffixPresent(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindInitScript, Name: "sshd"})
	s.Add(Unit{Kind: KindSystemdService, Name: "sshd.service"})

	s.Reconcile(nil, nil)

	names := s.ServiceNames()
	require.Equal(t, []string{"sshd.service"}, names)
}

func TestReconcileDropsBlacklisted(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindSystemdService, Name: "blocked.service"})
	s.Add(Unit{Kind: KindSystemdService, Name: "kept.service"})

	s.Reconcile(func(name string) bool { return name == "blocked.service" }, nil)

	require.Equal(t, []string{"kept.service"}, s.ServiceNames())
}

func TestReconcileOverrideFalseDropsEvenWithoutBlacklist(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindSystemdService, Name: "forced-off.service"})
	s.Add(Unit{Kind: KindSystemdService, Name: "kept.service"})

	s.Reconcile(nil, func(name string) (bool, bool) {
		if name == "forced-off.service" {
			return false, true
		}
		return false, false
	})

	require.Equal(t, []string{"kept.service"}, s.ServiceNames())
}

func TestReconcileOverrideTrueSurvivesBlacklist(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindSystemdService, Name: "forced-on.service"})

	blacklisted := func(name string) bool { return true } // would drop everything
	override := func(name string) (bool, bool) {
		if name == "forced-on.service" {
			return true, true
		}
		return false, false
	}

	s.Reconcile(blacklisted, override)

	require.Equal(t, []string{"forced-on.service"}, s.ServiceNames())
}

func TestUnitsSortedByDisplayName(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindSystemdService, Name: "zeta.service"})
	s.Add(Unit{Kind: KindSystemdService, Name: "alpha.service"})

	units := s.Units()
	require.Len(t, units, 2)
	require.Equal(t, "alpha.service", units[0].DisplayName())
	require.Equal(t, "zeta.service", units[1].DisplayName())
}

func TestServiceNamesSortedForCombinedRestart(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindSystemdService, Name: "foo.service"})
	s.Add(Unit{Kind: KindSystemdService, Name: "bar.service"})

	require.Equal(t, []string{"bar.service", "foo.service"}, s.ServiceNames())
}

func TestUserSessionMergesCommands(t *testing.T) {
	s := NewSet()
	s.Add(Unit{Kind: KindUserSession, Uid: 1000, SessionID: "pts/3", Commands: map[string][]int{"bash": {10}}})
	s.Add(Unit{Kind: KindUserSession, Uid: 1000, SessionID: "pts/3", Commands: map[string][]int{"bash": {11}}})

	units := s.Units()
	require.Len(t, units, 1)
	require.ElementsMatch(t, []int{10, 11}, units[0].Commands["bash"])
}
