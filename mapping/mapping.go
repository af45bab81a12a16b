// Package mapping implements the memory-map inspector: for a
// given PID, it walks /proc/<pid>/maps and classifies each executable
// mapping as fresh or stale by comparing the mapped (dev, inode) pair
// against the current on-disk stat of the same path.
//
// Device-number decomposition uses golang.org/x/sys/unix's Major/Minor,
// the same approach taken by shared-library watchers that key
// mappings by (device, inode) (see usm's pathIdentifier in the reference
// corpus): the kernel macro layout is glibc-specific, so non-glibc Linux
// or non-Linux kernels are out of scope (documented Open Question).
package mapping

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Entry is one line of /proc/<pid>/maps.
type Entry struct {
	StartAddr uint64
	Perms     string
	Offset    uint64
	Dev       string // "MM:mm" as printed by the kernel
	Inode     uint64
	Path      string
}

var pseudoMappingRe = []*regexp.Regexp{
	regexp.MustCompile(`^/SYSV00000000`),
	regexp.MustCompile(`/drm`),
	regexp.MustCompile(`^/dev/`),
	regexp.MustCompile(`^/\[aio\]`),
	regexp.MustCompile(`/orcexec\.[0-9a-fA-F]+`),
}

// ParseMaps reads and parses a /proc/<pid>/maps file.
func ParseMaps(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		e, ok := parseMapsLine(sc.Text())
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, sc.Err()
}

// parseMapsLine parses one line of the form:
//
//	00400000-00452000 r-xp 00000000 08:02 173521 /usr/sbin/nginx
func parseMapsLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Entry{}, false
	}

	addrRange := strings.SplitN(fields[0], "-", 2)
	if len(addrRange) != 2 {
		return Entry{}, false
	}
	start, err := strconv.ParseUint(addrRange[0], 16, 64)
	if err != nil {
		return Entry{}, false
	}

	perms := fields[1]
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Entry{}, false
	}
	dev := fields[3]
	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return Entry{}, false
	}

	var path string
	if len(fields) >= 6 {
		path = strings.Join(fields[5:], " ")
	}

	return Entry{
		StartAddr: start,
		Perms:     perms,
		Offset:    offset,
		Dev:       dev,
		Inode:     inode,
		Path:      path,
	}, true
}

// skip reports whether e should be excluded from staleness checks:
// mappings with no backing inode, non-executable mappings, and known
// pseudo-mapping paths never count toward staleness.
func skip(e Entry) bool {
	if e.Inode == 0 || e.Path == "" {
		return true
	}
	if !strings.Contains(e.Perms, "x") {
		return true
	}
	for _, re := range pseudoMappingRe {
		if re.MatchString(e.Path) {
			return true
		}
	}
	return false
}

// tolerated prefixes: paths under these directories never count as stale
// even if the backing file has vanished, since temp/runtime files are
// expected to be ephemeral.
var toleratedVanishedPrefixes = []string{"/tmp/", "/var/run/", "/run/"}

func vanishedIsTolerated(path string) bool {
	for _, p := range toleratedVanishedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Blacklist reports whether exe matches any configured blacklist regex; a
// blacklisted exe is declared fresh without mapping inspection.
func Blacklist(exe string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(exe) {
			return true
		}
	}
	return false
}

// RootPath joins the process's root view (normally "/", or /proc/<pid>/root
// for a process inside a different mount namespace/chroot) with path.
func RootPath(procRoot string, pid int, path string) string {
	return filepath.Join(procRoot, strconv.Itoa(pid), "root", path)
}

// devCandidates synthesizes the three device-string forms a stat result
// can be printed as in /proc/<pid>/maps:
//
//	(a) the "new" libc macro encoding of major/minor combined,
//	(b) the traditional 8-bit/8-bit major:minor encoding,
//	(c) the literal 00:00 used by a BSD-like /proc with no device IDs.
func devCandidates(dev uint64) []string {
	// (a) the "new" libc macro form: unix.Major/Minor decode the glibc
	// 64-bit dev_t encoding that syscall.Stat_t.Dev is already in.
	newMajor, newMinor := unix.Major(dev), unix.Minor(dev)

	// (b) the traditional 8-bit/8-bit encoding used directly by the
	// kernel when it prints a mapping's device in /proc/<pid>/maps.
	oldMajor := (dev >> 8) & 0xff
	oldMinor := dev & 0xff

	return []string{
		fmt.Sprintf("%02x:%02x", newMajor, newMinor),
		fmt.Sprintf("%02x:%02x", oldMajor, oldMinor),
		"00:00",
	}
}

// devMatches implements the device comparison rule: the mapping's
// "MM:mm" string must equal one of the stat-derived candidates, OR begin
// with "00:" (copy-on-write filesystem tolerance for anonymous devices).
func devMatches(mappingDev string, statDev uint64) bool {
	if strings.HasPrefix(mappingDev, "00:") {
		return true
	}
	for _, cand := range devCandidates(statDev) {
		if strings.EqualFold(mappingDev, cand) {
			return true
		}
	}
	return false
}

// StatResult is the (dev, inode) pair of a stat'd candidate path.
type StatResult struct {
	Dev   uint64
	Inode uint64
}

func statPath(path string) (StatResult, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return StatResult{}, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return StatResult{}, false
	}
	return StatResult{Dev: uint64(st.Dev), Inode: st.Ino}, true
}

// IsStale classifies a single mapping entry against the live filesystem
// by comparing the mapping's recorded device/inode against the inode the
// backing path resolves to today. procRoot is normally "/proc".
func IsStale(procRoot string, pid int, e Entry) bool {
	if skip(e) {
		return false
	}

	rootView := RootPath(procRoot, pid, e.Path)
	_, rootErr := os.Stat(rootView)
	_, hostErr := os.Stat(e.Path)

	if rootErr != nil && hostErr != nil {
		return !vanishedIsTolerated(e.Path)
	}

	var stats []StatResult
	if rootErr == nil {
		if s, ok := statPath(rootView); ok {
			stats = append(stats, s)
		}
	}
	if hostErr == nil {
		if s, ok := statPath(e.Path); ok {
			stats = append(stats, s)
		}
	}

	if len(stats) == 0 {
		// Transient: existence check passed moments ago but stat
		// failed now (race). Don't flag staleness on this mapping.
		return false
	}

	for _, s := range stats {
		if s.Inode == e.Inode && devMatches(e.Dev, s.Dev) {
			return false
		}
	}

	return true
}

// IsStalePID evaluates every executable mapping of pid and reports
// whether any one of them is stale. exe is the process's own resolved
// executable path, used only for the blacklist check.
func IsStalePID(procRoot string, pid int, exe string, blacklist []*regexp.Regexp) (bool, error) {
	if Blacklist(exe, blacklist) {
		return false, nil
	}

	entries, err := ParseMaps(filepath.Join(procRoot, strconv.Itoa(pid), "maps"))
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		if IsStale(procRoot, pid, e) {
			return true, nil
		}
	}

	return false, nil
}
