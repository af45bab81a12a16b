package service

import (
	"github.com/needrestart-go/needrestart/nrlog"
	"github.com/needrestart-go/needrestart/restartset"
)

var log = nrlog.For("service")

// Resolver, given a representative PID and exe, invokes package-manager
// hooks, parses any init scripts they name, and decides which one (if
// any) is the canonical restart unit for pid. blacklist_rc filtering
// happens downstream in restartset.Set.Reconcile.
type Resolver struct {
	HookDir  string
	Verbose  bool
	Runlevel int
}

// Resolve runs the hooks for exe: an RC candidate with a pidfile
// matching pid wins outright and short-circuits remaining hooks;
// otherwise every runlevel-matching, no-pidfile candidate is queued and
// added only if its ".service" variant isn't already present elsewhere
// in the set (checked by the caller via restartset.Set.Reconcile).
func (r Resolver) Resolve(exe string, pid int) []restartset.Unit {
	results, err := RunHooks(r.HookDir, exe, r.Verbose)
	if err != nil {
		log.Warnf("failed to run hooks in %s: %s", r.HookDir, err)
		return nil
	}

	var noPidfileCandidates []string

	for _, res := range results {
		for _, rcName := range res.RCNames {
			scriptPath := InitScriptPath(rcName)
			header, err := ParseInitScript(scriptPath)
			if err != nil {
				log.Warnf("hook %s named RC %q but %s is unreadable: %s", res.HookPath, rcName, scriptPath, err)
				continue
			}

			if !header.Found {
				noPidfileCandidates = append(noPidfileCandidates, rcName)
				continue
			}

			if !header.MatchesRunlevel(r.Runlevel) {
				log.Debugf("skipping %s: runlevel %d not in default-start", rcName, r.Runlevel)
				continue
			}

			if _, ok := header.PidFileMatches(pid); ok {
				return []restartset.Unit{{
					Kind:                  restartset.KindInitScript,
					Name:                  rcName,
					HasLSB:                true,
					DefaultStartRunlevels: header.DefaultStartRunlevels,
					PidFiles:              header.PidFiles,
				}}
			}

			if len(header.PidFiles) == 0 {
				noPidfileCandidates = append(noPidfileCandidates, rcName)
			}
		}
	}

	units := make([]restartset.Unit, 0, len(noPidfileCandidates))
	for _, name := range noPidfileCandidates {
		units = append(units, restartset.Unit{Kind: restartset.KindInitScript, Name: name})
	}
	return units
}
