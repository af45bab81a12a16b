package service

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/dbus"
	systemdunit "github.com/coreos/go-systemd/unit"

	"github.com/needrestart-go/needrestart/hookrun"
)

// systemdDir is where a systemd install keeps its system unit files;
// used here only to detect "PID 1's exe lives under the systemd
// directory" for the SystemdManager case.
const systemdDir = "/lib/systemd"

// IsSystemd locates systemctl and checks that it runs successfully; when
// it does not, the host still counts as systemd-managed if
// /run/systemd/system exists.
func IsSystemd() (systemctlPath string, ok bool) {
	path, err := exePath("systemctl", []string{"/bin", "/usr/bin"})
	if err != nil {
		return "", false
	}
	if _, err := hookrun.Run(path); err != nil {
		// systemctl with no args still exits 0 on a working system;
		// an execution failure means "not systemd" unless
		// /run/systemd/system is present.
		if _, statErr := os.Stat("/run/systemd/system"); statErr != nil {
			return "", false
		}
	}
	return path, true
}

func exePath(name string, dirs []string) (string, error) {
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("failed to locate %q in %v", name, dirs)
}

// IsPid1Systemd reports whether PID 1's resolved exe lives under the
// systemd install directory, which marks the host as systemd-managed.
func IsPid1Systemd(pid1Exe string) bool {
	return strings.HasPrefix(pid1Exe, systemdDir)
}

// IsPid1SysVInit reports whether PID 1's exe begins with /sbin/init,
// the SysV fallback case when PID 1 is not systemd.
func IsPid1SysVInit(pid1Exe string) bool {
	return strings.HasPrefix(pid1Exe, "/sbin/init")
}

var (
	sessionScopeRe = regexp.MustCompile(`user-(\d+)\.slice/session-(\S+)\.scope`)
	userServiceRe  = regexp.MustCompile(`user@(\d+)\.service`)
	unitSuffixRe   = regexp.MustCompile(`/([^/]+\.service)$`)
)

// CgroupUnit describes what a PID's cgroup membership line resolved to.
type CgroupUnit struct {
	Kind        string // "session", "user-service", "unit", "" (no match)
	Uid         int
	SessionID   string
	ServiceName string
}

// ResolveCgroupUnit reads /proc/<pid>/cgroup and matches it against the
// three systemd cgroup patterns: a user login session scope, a per-user
// systemd instance, or a plain system unit.
func ResolveCgroupUnit(procRoot string, pid int) (CgroupUnit, error) {
	f, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return CgroupUnit{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()

		if m := sessionScopeRe.FindStringSubmatch(line); m != nil {
			uid, _ := strconv.Atoi(m[1])
			return CgroupUnit{Kind: "session", Uid: uid, SessionID: m[2]}, nil
		}
		if m := userServiceRe.FindStringSubmatch(line); m != nil {
			uid, _ := strconv.Atoi(m[1])
			return CgroupUnit{Kind: "user-service", Uid: uid}, nil
		}
		if m := unitSuffixRe.FindStringSubmatch(line); m != nil {
			return CgroupUnit{Kind: "unit", ServiceName: m[1]}, nil
		}
	}
	if err := sc.Err(); err != nil {
		return CgroupUnit{}, err
	}

	return CgroupUnit{}, nil
}

// SystemctlStatusUnit runs `systemctl status <pid>` and extracts the
// first "<name>.service" token from its first output line, the
// fallback used when cgroup parsing fails to resolve a unit.
func SystemctlStatusUnit(systemctlPath string, pid int) (string, bool) {
	res, _ := hookrun.Run(systemctlPath, "status", strconv.Itoa(pid))
	firstLine := res.Stdout
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	return hookrun.FirstServiceToken(firstLine)
}

// DBusConn wraps a systemd D-Bus connection, preferred over shelling out
// to systemctl for unit queries. The exec-based path is kept as a
// fallback for hosts where no system bus is reachable, e.g. inside a
// minimal container.
type DBusConn struct {
	conn *dbus.Conn
}

// DialSystemBus opens a connection to the systemd manager over D-Bus.
func DialSystemBus() (*DBusConn, error) {
	conn, err := dbus.NewSystemConnection()
	if err != nil {
		return nil, err
	}
	return &DBusConn{conn: conn}, nil
}

// Close releases the D-Bus connection.
func (d *DBusConn) Close() {
	if d != nil && d.conn != nil {
		d.conn.Close()
	}
}

// UnitExists reports whether systemd currently knows about a unit named
// name (loaded or not), via ListUnits.
func (d *DBusConn) UnitExists(name string) (bool, error) {
	units, err := d.conn.ListUnits()
	if err != nil {
		return false, err
	}
	for _, u := range units {
		if u.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// unitDirs are searched in order for a named unit file, matching
// systemd's own override precedence (admin-edited units first).
var unitDirs = []string{"/etc/systemd/system", "/run/systemd/system", "/lib/systemd/system", "/usr/lib/systemd/system"}

// FindUnitFile locates name under the standard systemd unit directories.
func FindUnitFile(name string) (string, bool) {
	for _, dir := range unitDirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// ValidateUnitFile parses a systemd unit file with go-systemd/unit,
// confirming it is well-formed before it is treated as the canonical
// source for a unit's ExecStart (used by the advanced detail listing).
func ValidateUnitFile(path string) ([]*systemdunit.UnitOption, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return systemdunit.Deserialize(f)
}

// ExecStartOf returns the Service/ExecStart= value from a parsed unit
// file, if present.
func ExecStartOf(opts []*systemdunit.UnitOption) (string, bool) {
	for _, o := range opts {
		if o.Section == "Service" && o.Name == "ExecStart" {
			return o.Value, true
		}
	}
	return "", false
}
