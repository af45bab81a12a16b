// Package procfs implements the process table reader:
// a single point-in-time snapshot of every PID on the host, giving each
// record's uid, ppid, start time, controlling tty, and resolved exe path.
//
// Field layout follows /proc/<pid>/stat as documented in proc(5); the
// parsing approach (find the closing "<pid> (comm) " prefix, then treat
// everything after as whitespace-separated numeric fields) is the same
// technique used to handle command names containing spaces or
// parentheses.
package procfs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is an immutable snapshot of one process. Nothing is mutated
// after construction.
type Record struct {
	Pid       int
	Ppid      int
	Uid       int
	StartTicks uint64 // clock ticks since boot (field 22 of stat)
	Fname     string  // short command name, from stat's comm field
	ExePath   string  // canonical path, deleted-marker stripped
	Deleted   bool    // exe symlink carried a "(deleted)" marker
	TtyDevice int     // controlling tty device number (field 7 of stat)
	IsKernelThread bool
}

const deletedSuffix = " (deleted)"
const deletedPrefixVServer = "(deleted)"

// Snapshot enumerates every readable PID directory under root (normally
// "/proc") and returns one Record per process. Per-PID errors (the
// process exited mid-scan, permission denied) are silently skipped; the
// snapshot as a whole never fails because of a single missing PID.
func Snapshot(root string) map[int]Record {
	out := make(map[int]Record)

	entries, err := os.ReadDir(root)
	if err != nil {
		return out
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		rec, ok := readRecord(root, pid)
		if !ok {
			continue
		}
		out[pid] = rec
	}

	return out
}

func readRecord(root string, pid int) (Record, bool) {
	dir := filepath.Join(root, strconv.Itoa(pid))

	ppid, ttyNr, fname, starttime, ok := readStat(dir)
	if !ok {
		return Record{}, false
	}

	uid, err := readUid(dir)
	if err != nil {
		// Process raced out from under us or we lack permission;
		// treat as transient and skip.
		return Record{}, false
	}

	exePath, deleted, isKernelThread := ReadlinkExe(root, pid)

	return Record{
		Pid:            pid,
		Ppid:           ppid,
		Uid:            uid,
		StartTicks:     starttime,
		Fname:          fname,
		ExePath:        exePath,
		Deleted:        deleted,
		TtyDevice:      ttyNr,
		IsKernelThread: isKernelThread,
	}, true
}

// ReadlinkExe resolves /proc/<pid>/exe, preserving the "(deleted)"
// marker for the classifier and then stripping it from the canonical
// path. An unreadable exe symlink means pid is a kernel thread and is
// omitted from downstream staleness analysis.
func ReadlinkExe(root string, pid int) (path string, deleted bool, isKernelThread bool) {
	link := filepath.Join(root, strconv.Itoa(pid), "exe")

	target, err := os.Readlink(link)
	if err != nil {
		return "", false, true
	}

	if strings.HasSuffix(target, deletedSuffix) {
		return strings.TrimSuffix(target, deletedSuffix), true, false
	}
	if strings.HasPrefix(target, deletedPrefixVServer) {
		return strings.TrimSpace(strings.TrimPrefix(target, deletedPrefixVServer)), true, false
	}

	return target, false, false
}

// readStat parses the subset of /proc/<pid>/stat needed here: ppid (4),
// tty_nr (7), comm (2, inside parens), starttime (22).
func readStat(dir string) (ppid, ttyNr int, comm string, starttime uint64, ok bool) {
	f, err := os.Open(filepath.Join(dir, "stat"))
	if err != nil {
		return 0, 0, "", 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	if !sc.Scan() {
		return 0, 0, "", 0, false
	}
	line := sc.Text()

	open := strings.IndexByte(line, '(')
	closeParen := strings.LastIndexByte(line, ')')
	if open < 0 || closeParen < 0 || closeParen < open {
		return 0, 0, "", 0, false
	}
	comm = line[open+1 : closeParen]

	rest := strings.Fields(line[closeParen+1:])
	// rest[0] = state, rest[1] = ppid, ..., rest[4] = tty_nr (field 7),
	// rest[19] = starttime (field 22).
	if len(rest) < 20 {
		return 0, 0, "", 0, false
	}

	ppid, err = strconv.Atoi(rest[1])
	if err != nil {
		return 0, 0, "", 0, false
	}
	ttyNr, err = strconv.Atoi(rest[4])
	if err != nil {
		return 0, 0, "", 0, false
	}
	starttime, err = strconv.ParseUint(rest[19], 10, 64)
	if err != nil {
		return 0, 0, "", 0, false
	}

	return ppid, ttyNr, comm, starttime, true
}

// readUid returns the real uid from the Uid line of /proc/<pid>/status.
func readUid(dir string) (int, error) {
	f, err := os.Open(filepath.Join(dir, "status"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed Uid line %q", line)
		}
		return strconv.Atoi(fields[1])
	}
	return 0, fmt.Errorf("no Uid line in %s", dir)
}

// ClockTicksPerSecond returns sysconf(_SC_CLK_TCK). A pure-Go build can't
// call sysconf without cgo, so like the rest of the pack we fall back to
// the near-universal Linux default of 100, with an environment override
// for tests.
func ClockTicksPerSecond() uint64 {
	if v, err := strconv.ParseUint(os.Getenv("NEEDRESTART_CLK_TCK"), 10, 64); err == nil && v > 0 {
		return v
	}
	return 100
}

// BootTime returns the boot time (seconds since epoch) from /proc/stat's
// "btime" line under root.
func BootTime(root string) (int64, error) {
	f, err := os.Open(filepath.Join(root, "stat"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "btime ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed btime line %q", line)
		}
		return strconv.ParseInt(fields[1], 10, 64)
	}
	return 0, fmt.Errorf("no btime line in %s/stat", root)
}

// StartTimeSeconds converts a process's boot-relative start ticks into
// boot-relative seconds, the same clock basis used for mtime comparisons
// in the interpreter check — both sides must be measured from the same
// clock source or the comparison is meaningless.
func StartTimeSeconds(rec Record) float64 {
	return float64(rec.StartTicks) / float64(ClockTicksPerSecond())
}
