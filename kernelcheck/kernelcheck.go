// Package kernelcheck implements the kernel comparator: it
// reads the running kernel's version/ABI and compares it against the
// newest installed kernel image on disk, producing one of NoUpgrade,
// AbiUpgrade, VerUpgrade, or Unknown.
//
// The match-method/result enum shape is grounded on the kernel-module
// staleness matcher in other_examples/dfa4374c_jmylchreest-refind-btrfs-snapshots
// (MatchBinaryHeader/MatchPkgbase/MatchAssumedFresh), adapted from
// "is this snapshot's module set stale" to "is the running kernel
// stale relative to what's installed".
package kernelcheck

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Status is the result of comparing the running kernel to the newest
// installed kernel image.
type Status int

const (
	NoUpgrade Status = iota
	AbiUpgrade
	VerUpgrade
	Unknown
)

// Int returns the NEEDRESTART-KSTA integer encoding.
func (s Status) Int() int {
	return int(s)
}

func (s Status) String() string {
	switch s {
	case NoUpgrade:
		return "none"
	case AbiUpgrade:
		return "abi"
	case VerUpgrade:
		return "ver"
	default:
		return "unknown"
	}
}

// Running returns the running kernel's release string (e.g.
// "5.10.0-21-amd64"), as reported by uname(2).
func Running() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return cstr(uts.Release[:]), nil
}

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

var kernelImageRe = regexp.MustCompile(`^vmlinuz-(.+)$`)

// NewestInstalled scans bootDir (normally "/boot") for vmlinuz-* image
// files and returns the name of the lexicographically (by kernel version
// ordering, not plain string ordering) greatest one.
func NewestInstalled(bootDir string) (string, bool) {
	entries, err := os.ReadDir(bootDir)
	if err != nil {
		return "", false
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := kernelImageRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		versions = append(versions, m[1])
	}

	if len(versions) == 0 {
		return "", false
	}

	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) < 0
	})

	return versions[len(versions)-1], true
}

// splitVersion breaks a kernel version string into its dot/dash-delimited
// components for numeric-where-possible comparison.
func splitVersion(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-'
	})
}

// compareVersions compares two kernel version strings component-wise:
// numeric components compare numerically, everything else compares
// lexically. Returns <0, 0, or >0 like strings.Compare.
func compareVersions(a, b string) int {
	as := splitVersion(a)
	bs := splitVersion(b)

	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareComponent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func compareComponent(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// versionBase strips the trailing ABI/flavor suffix (everything from the
// third "-"-delimited field onward, e.g. "-amd64") to get the "X.Y.Z-N"
// base shared between an ABI upgrade pair.
func versionBase(v string) string {
	parts := strings.SplitN(v, "-", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "-" + parts[1]
}

// Compare classifies the relationship between the running kernel and
// the newest installed image into one of four states: no upgrade
// pending, an ABI-only bump (same version, different flavor/build), a
// full version upgrade, or unknown (nothing installed was found).
func Compare(running, newestInstalled string, newestFound bool) Status {
	if !newestFound {
		return Unknown
	}
	if running == newestInstalled {
		return NoUpgrade
	}
	if versionBase(running) == versionBase(newestInstalled) {
		return AbiUpgrade
	}
	return VerUpgrade
}

// ExpectedVersion returns the version string to report as
// NEEDRESTART-KEXP, or "" if unknown.
func ExpectedVersion(bootDir string) (string, bool) {
	return NewestInstalled(bootDir)
}
