// Package container implements the container detector:
// deciding whether a PID executes inside a container runtime by comparing
// its namespace identifiers against the host's and inspecting its cgroup
// membership, and enumerating containers that themselves need restarting.
//
// The mountinfo-scanning technique for locating cgroup hierarchies is
// grounded on the cgroup-version detector in the consumption package
// (pkg/system/cgroup/cgroup.go): parse the " - <fstype> " suffix of each
// /proc/<pid>/mountinfo line.
package container

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// namespaceKinds are the /proc/<pid>/ns/* entries compared between a
// candidate PID and PID 1 (the host's namespace) to decide containment.
var namespaceKinds = []string{"pid", "mnt", "uts", "ipc", "net"}

// InContainer reports whether pid appears to run inside a container,
// i.e. its namespaces differ from the host's (PID 1) AND its cgroup path
// contains a recognizable container-runtime marker.
func InContainer(procRoot string, pid int) bool {
	if !namespacesDiffer(procRoot, pid, 1) {
		return false
	}
	return cgroupLooksContainerized(procRoot, pid)
}

func namespacesDiffer(procRoot string, pid, hostPid int) bool {
	diffCount := 0
	checked := 0
	for _, kind := range namespaceKinds {
		a, aok := readNamespaceID(procRoot, pid, kind)
		b, bok := readNamespaceID(procRoot, hostPid, kind)
		if !aok || !bok {
			continue
		}
		checked++
		if a != b {
			diffCount++
		}
	}
	// Require at least one namespace to differ; if we couldn't read
	// any namespace links (permission, race) assume not containerized
	// rather than over-reporting.
	return checked > 0 && diffCount > 0
}

func readNamespaceID(procRoot string, pid int, kind string) (string, bool) {
	link := filepath.Join(procRoot, strconv.Itoa(pid), "ns", kind)
	target, err := os.Readlink(link)
	if err != nil {
		return "", false
	}
	return target, true
}

var containerCgroupMarkers = []*regexp.Regexp{
	regexp.MustCompile(`/docker/`),
	regexp.MustCompile(`/docker-[0-9a-f]+\.scope`),
	regexp.MustCompile(`/lxc/`),
	regexp.MustCompile(`/machine\.slice/`),
	regexp.MustCompile(`/kubepods`),
	regexp.MustCompile(`/podman-[0-9a-f]+\.scope`),
}

func cgroupLooksContainerized(procRoot string, pid int) bool {
	f, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		for _, re := range containerCgroupMarkers {
			if re.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// Container is a container runtime's identity plus the command needed to
// restart it.
type Container struct {
	Name        string
	RestartArgv []string
}

// Enumerate returns the set of containers whose init process (PID 1
// inside the container) is itself stale, using isStale to classify it.
// initPids maps a container's host-visible name to its init PID, as
// resolved by whatever container runtime integration supplies it (out of
// scope for this package; callers provide the mapping).
func Enumerate(initPids map[string]int, isStale func(pid int) bool) map[string]Container {
	out := make(map[string]Container)
	for name, pid := range initPids {
		if isStale(pid) {
			out[name] = Container{
				Name:        name,
				RestartArgv: []string{"docker", "restart", name},
			}
		}
	}
	return out
}

// MountinfoFilesystems returns the set of filesystem types (every type,
// not only cgroup ones) mounted according to /proc/<pid>/mountinfo.
// InContainer does not call it.
func MountinfoFilesystems(procRoot string, pid int) (map[string]bool, error) {
	f, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "mountinfo"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		const sep = " - "
		i := strings.LastIndex(line, sep)
		if i < 0 {
			continue
		}
		tail := strings.Fields(line[i+len(sep):])
		if len(tail) < 1 {
			continue
		}
		out[tail[0]] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan mountinfo: %w", err)
	}
	return out, nil
}
