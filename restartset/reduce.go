package restartset

import (
	"fmt"

	"github.com/needrestart-go/needrestart/procfs"
)

// NamerFunc resolves a "stage-2" candidate PID (after parent-chain
// collapsing) to zero or more Units, consulting the service resolver.
// It is the seam between this package and package service, kept as a
// function value so tests can supply a fake.
type NamerFunc func(candidatePid int, rec procfs.Record) []Unit

// TtyResolver maps a controlling tty device number to a display string
// (e.g. "pts/3"), used to key user sessions.
type TtyResolver func(ttyDevice int) (string, bool)

// Reduce collapses a set of stale PIDs into restart units across two
// passes.
//
// stalePids is the set of PIDs already classified stale by the mapping
// and interpreter checks. snapshot is the full process-table snapshot.
// targetUid selects user mode (only that uid's processes are considered);
// pass -1 for root mode (all PIDs).
// usesSystemdSessions reports whether the host groups user sessions via
// systemd-logind (changes whether a tty'd process becomes a UserSession
// directly in pass 1, or is deferred to stage-2 naming in pass 2).
// isRoot gates pass 2 (service-unit naming): only performed when running
// as root.
func Reduce(
	stalePids map[int]bool,
	snapshot map[int]procfs.Record,
	targetUid int,
	userMode bool,
	usesSystemdSessions bool,
	isRoot bool,
	selfPid, parentOfSelfPid int,
	ttyResolve TtyResolver,
	name NamerFunc,
) *Set {
	set := NewSet()

	visitedGuard := func(start int) int {
		// Iterative walk up the parent chain with a visited-PID
		// guard, tolerating a zombie PID reparented to itself or
		// any other parent cycle.
		visited := map[int]bool{start: true}
		pid := start
		for {
			rec, ok := snapshot[pid]
			if !ok {
				return pid
			}
			if rec.Ppid == 1 || rec.Ppid == pid {
				return pid
			}
			if visited[rec.Ppid] {
				return pid
			}
			visited[rec.Ppid] = true
			pid = rec.Ppid
		}
	}

	stage2 := make(map[int]bool)

	for pid := range stalePids {
		if pid == selfPid || pid == parentOfSelfPid {
			continue
		}

		rec, ok := snapshot[pid]
		if !ok {
			continue
		}

		if userMode && rec.Uid != targetUid {
			continue
		}

		if rec.TtyDevice != 0 && !usesSystemdSessions {
			ttyName, ok := ttyResolve(rec.TtyDevice)
			if !ok {
				ttyName = fmt.Sprintf("tty%d", rec.TtyDevice)
			}
			u := Unit{
				Kind:      KindUserSession,
				Uid:       rec.Uid,
				SessionID: ttyName,
				Commands:  map[string][]int{rec.Fname: {pid}},
			}
			set.Add(u)
			continue
		}

		parentRec, hasParent := snapshot[rec.Ppid]
		if rec.Ppid != 1 && rec.Ppid != pid && hasParent {
			if parentRec.Uid != rec.Uid {
				stage2[pid] = true
			} else {
				stage2[visitedGuard(pid)] = true
			}
			continue
		}

		stage2[pid] = true
	}

	if !isRoot {
		return set
	}

	for pid := range stage2 {
		rec, ok := snapshot[pid]
		if !ok {
			continue
		}
		for _, u := range name(pid, rec) {
			set.Add(u)
		}
	}

	return set
}
