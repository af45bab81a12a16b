// Package driver wires the process-table reader, mapping inspector,
// interpreter registry, container detector, stale-set reducer, service
// resolver, and kernel comparator into one single-threaded run and
// produces a Report consumed by the output formatters.
package driver

import (
	"os"
	"os/user"
	"sort"
	"strconv"
	"strings"

	"github.com/needrestart-go/needrestart/config"
	"github.com/needrestart-go/needrestart/container"
	"github.com/needrestart-go/needrestart/interp"
	"github.com/needrestart-go/needrestart/kernelcheck"
	"github.com/needrestart-go/needrestart/mapping"
	"github.com/needrestart-go/needrestart/notify"
	"github.com/needrestart-go/needrestart/nrlog"
	"github.com/needrestart-go/needrestart/procfs"
	"github.com/needrestart-go/needrestart/restartset"
	"github.com/needrestart-go/needrestart/service"
)

var log = nrlog.For("driver")

// Report is the immutable result of one run, handed to the output layer.
type Report struct {
	ToolVersion string

	RunningKernel   string
	ExpectedKernel  string
	KernelStatus    kernelcheck.Status
	KernelSkipped   bool // PID 1 is containerized, or kernel check disabled

	Units      []restartset.Unit
	Skipped    []string
	Containers []container.Container

	// UserSessionPids maps a command name to the PIDs observed for it,
	// populated only in user mode.
	UserSessionPids map[string][]int

	// RestartCommands is the ordered list of restart commands the
	// caller should execute (systemd services already combined if
	// systemctl_combine).
	RestartCommands []RestartCommand

	// NotifiedSessions counts how many user-session notify dispatches
	// succeeded, for verbose logging; it does not gate any other field.
	NotifiedSessions int
}

// RestartCommand is one restart invocation as an argv, never a shell
// string, so the caller can exec it directly without a shell in between.
type RestartCommand struct {
	Argv []string
}

// String renders the command the way it is shown in human/log output.
func (c RestartCommand) String() string {
	return strings.Join(c.Argv, " ")
}

// Options controls a single run of the driver.
type Options struct {
	ProcRoot string // normally "/proc", overridable for tests
	BootDir  string // normally "/boot"

	UserMode bool
	TargetUid int

	IsRoot   bool
	Runlevel int

	SelfPid         int
	ParentOfSelfPid int

	KernelCheckOnly  bool
	LibraryCheckOnly bool

	ToolVersion string
}

// Run executes one full detection pass.
func Run(cfg config.Config, opts Options) Report {
	report := Report{ToolVersion: opts.ToolVersion}

	snapshot := procfs.Snapshot(opts.ProcRoot)
	bootTime, err := procfs.BootTime(opts.ProcRoot)
	if err != nil {
		log.Warnf("failed to read boot time: %s", err)
	}

	pid1Containerized := false
	if rec, ok := snapshot[1]; ok {
		pid1Containerized = container.InContainer(opts.ProcRoot, rec.Pid)
	}

	if !opts.LibraryCheckOnly {
		runKernelCheck(&report, opts, pid1Containerized)
	} else {
		report.KernelSkipped = true
	}

	if opts.KernelCheckOnly {
		return report
	}

	stalePids := classifyStale(cfg, opts, snapshot, bootTime)

	containers := container.Enumerate(pid1IndexByInitCandidate(snapshot), func(pid int) bool {
		return stalePids[pid]
	})
	for _, c := range containers {
		if forced, ok := cfg.OverrideForCont(c.Name); ok && !forced {
			continue
		}
		report.Containers = append(report.Containers, c)
	}
	sort.Slice(report.Containers, func(i, j int) bool { return report.Containers[i].Name < report.Containers[j].Name })

	for pid := range stalePids {
		if container.InContainer(opts.ProcRoot, pid) {
			delete(stalePids, pid)
		}
	}

	ttyResolve := func(ttyDevice int) (string, bool) {
		if ttyDevice == 0 {
			return "", false
		}
		return strconv.Itoa(ttyDevice), true
	}

	var dbusConn *service.DBusConn
	if _, ok := service.IsSystemd(); ok {
		if conn, err := service.DialSystemBus(); err == nil {
			dbusConn = conn
			defer conn.Close()
		} else {
			log.Warnf("failed to dial systemd bus, falling back to systemctl: %s", err)
		}
	}

	namer := func(candidatePid int, rec procfs.Record) []restartset.Unit {
		return nameCandidate(cfg, opts, rec, dbusConn)
	}

	targetUid := -1
	if opts.UserMode {
		targetUid = opts.TargetUid
	}

	set := restartset.Reduce(stalePids, snapshot, targetUid, opts.UserMode, usesSystemdSessions(opts), opts.IsRoot,
		opts.SelfPid, opts.ParentOfSelfPid, ttyResolve, namer)

	set.Reconcile(cfg.BlacklistedRC, cfg.OverrideForRC)

	report.Units = set.Units()
	report.Skipped = set.Skipped()

	if opts.UserMode {
		report.UserSessionPids = make(map[string][]int)
		for _, u := range report.Units {
			if u.Kind != restartset.KindUserSession {
				continue
			}
			for cmd, pids := range u.Commands {
				report.UserSessionPids[cmd] = append(report.UserSessionPids[cmd], pids...)
			}
		}
	}

	report.RestartCommands = buildRestartCommands(report.Units, cfg.SystemctlCombine)

	if cfg.SendNotify {
		report.NotifiedSessions = dispatchNotifications(cfg, report.Units)
	}

	return report
}

// dispatchNotifications runs the session-notify helper chain once per
// user-session restart unit, telling each logged-in session that a
// restart is pending. Returns how many dispatches succeeded.
func dispatchNotifications(cfg config.Config, units []restartset.Unit) int {
	succeeded := 0
	for _, u := range units {
		if u.Kind != restartset.KindUserSession {
			continue
		}
		if notify.Dispatch(cfg.NotifyD, sessionFor(u)) {
			succeeded++
		}
	}
	return succeeded
}

// sessionFor builds the notify.Session for a UserSession unit. ParentPid
// is approximated as the lowest PID recorded against the session, since
// the restart-unit model does not track a dedicated session-leader PID.
func sessionFor(u restartset.Unit) notify.Session {
	s := notify.Session{Uid: u.Uid, SessionID: u.SessionID}

	if name, err := user.LookupId(strconv.Itoa(u.Uid)); err == nil {
		s.Username = name.Username
	}

	leader := -1
	for _, pids := range u.Commands {
		for _, pid := range pids {
			if leader == -1 || pid < leader {
				leader = pid
			}
		}
	}
	if leader != -1 {
		s.ParentPid = leader
	}

	return s
}

func runKernelCheck(report *Report, opts Options, pid1Containerized bool) {
	if pid1Containerized {
		report.KernelSkipped = true
		return
	}

	running, err := kernelcheck.Running()
	if err != nil {
		log.Warnf("failed to read running kernel version: %s", err)
		report.KernelStatus = kernelcheck.Unknown
		return
	}
	report.RunningKernel = running

	newest, found := kernelcheck.NewestInstalled(opts.BootDir)
	if found {
		report.ExpectedKernel = newest
	}
	report.KernelStatus = kernelcheck.Compare(running, newest, found)
}

func classifyStale(cfg config.Config, opts Options, snapshot map[int]procfs.Record, bootTime int64) map[int]bool {
	stale := make(map[int]bool)

	for pid, rec := range snapshot {
		if pid == opts.SelfPid || pid == opts.ParentOfSelfPid {
			continue
		}
		if rec.IsKernelThread {
			continue
		}
		if opts.UserMode && rec.Uid != opts.TargetUid {
			continue
		}

		if rec.Deleted {
			stale[pid] = true
			continue
		}

		isStale, err := mapping.IsStalePID(opts.ProcRoot, pid, rec.ExePath, cfg.BlacklistExe)
		if err != nil {
			continue
		}
		if isStale {
			stale[pid] = true
			continue
		}

		if cfg.InterpScan {
			if interpStale, _ := interp.Check(opts.ProcRoot, pid, rec.ExePath, procfs.StartTimeSeconds(rec), bootTime); interpStale {
				stale[pid] = true
			}
		}
	}

	return stale
}

func nameCandidate(cfg config.Config, opts Options, rec procfs.Record, dbusConn *service.DBusConn) []restartset.Unit {
	pid1Exe, _, _ := procfs.ReadlinkExe(opts.ProcRoot, 1)

	if systemctlPath, ok := service.IsSystemd(); ok {
		if service.IsPid1Systemd(pid1Exe) && rec.Pid == 1 {
			return []restartset.Unit{{Kind: restartset.KindSystemdManager}}
		}

		cg, err := service.ResolveCgroupUnit(opts.ProcRoot, rec.Pid)
		if err == nil {
			switch cg.Kind {
			case "session":
				return []restartset.Unit{{Kind: restartset.KindUserSession, Uid: cg.Uid, SessionID: cg.SessionID}}
			case "user-service":
				return []restartset.Unit{{Kind: restartset.KindUserSession, Uid: cg.Uid}}
			case "unit":
				if unitConfirmed(dbusConn, cg.ServiceName) {
					return []restartset.Unit{systemdServiceUnit(cg.ServiceName)}
				}
			}
		}

		if name, ok := service.SystemctlStatusUnit(systemctlPath, rec.Pid); ok {
			return []restartset.Unit{systemdServiceUnit(name)}
		}
	} else if service.IsPid1SysVInit(pid1Exe) && rec.Pid == 1 {
		return []restartset.Unit{{Kind: restartset.KindSysVInit}}
	}

	resolver := service.Resolver{HookDir: cfg.HookD, Runlevel: opts.Runlevel}
	return resolver.Resolve(rec.ExePath, rec.Pid)
}

// unitConfirmed reports whether the systemd manager actually knows about
// name. With no reachable D-Bus connection the cgroup-derived name is
// trusted as-is; a query error is treated the same way rather than
// dropping an otherwise-valid candidate.
func unitConfirmed(conn *service.DBusConn, name string) bool {
	if conn == nil {
		return true
	}
	ok, err := conn.UnitExists(name)
	if err != nil {
		return true
	}
	return ok
}

// systemdServiceUnit builds a KindSystemdService Unit, filling in
// ExecStart from the on-disk unit file when one can be found and parsed.
func systemdServiceUnit(name string) restartset.Unit {
	u := restartset.Unit{Kind: restartset.KindSystemdService, Name: name}

	path, found := service.FindUnitFile(name)
	if !found {
		return u
	}
	opts, err := service.ValidateUnitFile(path)
	if err != nil {
		log.Warnf("failed to parse unit file %s: %s", path, err)
		return u
	}
	if execStart, ok := service.ExecStartOf(opts); ok {
		u.ExecStart = execStart
	}
	return u
}

func usesSystemdSessions(opts Options) bool {
	_, ok := service.IsSystemd()
	return ok
}

func pid1IndexByInitCandidate(snapshot map[int]procfs.Record) map[string]int {
	out := make(map[string]int)
	for pid, rec := range snapshot {
		if rec.Ppid == 1 {
			out[rec.Fname] = pid
		}
	}
	return out
}

// buildRestartCommands turns the final restart set into the ordered argv
// commands the caller should execute: systemd services first (combined
// into one systemctl invocation when combine is set), then a single
// `systemctl daemon-reexec` if the systemd manager itself needs it, then
// one `service <name> restart` per SysV init script. KindSysVInit (PID 1
// itself is SysV init) has no corresponding command: restarting the init
// manager out from under itself isn't a restart, it's a reboot, and
// nothing in this design issues reboots.
func buildRestartCommands(units []restartset.Unit, combine bool) []RestartCommand {
	var cmds []RestartCommand

	var serviceNames, initScripts []string
	daemonReexec := false

	for _, u := range units {
		switch u.Kind {
		case restartset.KindSystemdService:
			serviceNames = append(serviceNames, u.Name)
		case restartset.KindSystemdManager:
			daemonReexec = true
		case restartset.KindInitScript:
			initScripts = append(initScripts, u.Name)
		}
	}

	if len(serviceNames) > 0 {
		sort.Strings(serviceNames)
		if combine {
			cmds = append(cmds, RestartCommand{Argv: append([]string{"systemctl", "restart"}, serviceNames...)})
		} else {
			for _, n := range serviceNames {
				cmds = append(cmds, RestartCommand{Argv: []string{"systemctl", "restart", n}})
			}
		}
	}

	if daemonReexec {
		cmds = append(cmds, RestartCommand{Argv: []string{"systemctl", "daemon-reexec"}})
	}

	sort.Strings(initScripts)
	for _, n := range initScripts {
		cmds = append(cmds, RestartCommand{Argv: []string{"service", n, "restart"}})
	}

	return cmds
}

// EffectiveUid returns the real uid the current process runs as, used to
// populate Options.TargetUid in user mode.
func EffectiveUid() int {
	return os.Getuid()
}
