package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/needrestart-go/needrestart/hookrun"
)

var serviceSearchDirs = []string{"/sbin", "/usr/sbin"}

// IsSystemv locates the `service` binary and confirms it produces the
// expected usage banner, then decides whether the host is Red
// Hat-flavored (chkconfig) or Debian-flavored (update-rc.d) by the
// presence of /etc/redhat-release.
func IsSystemv() (servicePath string, isRedHat bool, whyNot string, ok bool) {
	path, err := exePath("service", serviceSearchDirs)
	if err != nil {
		return "", false, err.Error(), false
	}

	out, _ := hookrun.Run(path)
	if !strings.HasPrefix(out.Stdout, "Usage: service") {
		return "", false, fmt.Sprintf("%q did not produce the expected usage output", path), false
	}

	info, statErr := os.Stat("/etc/redhat-release")
	if statErr != nil || info.IsDir() {
		return path, false, "", true
	}
	return path, true, "", true
}

// initScriptPathOverride lets tests redirect init-script lookups away
// from /etc/init.d without touching the real filesystem.
var initScriptPathOverride func(name string) string

// InitScriptPath returns the conventional /etc/init.d/<name> path.
func InitScriptPath(name string) string {
	if initScriptPathOverride != nil {
		return initScriptPathOverride(name)
	}
	return "/etc/init.d/" + name
}
