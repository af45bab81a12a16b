// Package notify dispatches session-notification helpers: small
// executables that tell a logged-in user's desktop session that a
// restart is pending. Helpers run in byte-wise lexical name order until
// one succeeds.
package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/needrestart-go/needrestart/hookrun"
	"github.com/needrestart-go/needrestart/nrlog"
)

var log = nrlog.For("notify")

// Session identifies the logged-in session to notify.
type Session struct {
	Uid        int
	Username   string
	SessionID  string
	ParentPid  int
}

func envFor(s Session) []string {
	return []string{
		"NR_UID=" + strconv.Itoa(s.Uid),
		"NR_USERNAME=" + s.Username,
		"NR_SESSION=" + s.SessionID,
		"NR_SESSPPID=" + strconv.Itoa(s.ParentPid),
	}
}

func skip(name string) bool {
	if strings.HasSuffix(name, "~") {
		return true
	}
	if strings.Contains(name, ".dpkg-") {
		return true
	}
	return false
}

// Dispatch runs every eligible executable in notifyDir, in byte-wise
// lexical name order (digit runs are not compared numerically), until one
// exits successfully. Returns true if any helper succeeded.
func Dispatch(notifyDir string, s Session) bool {
	entries, err := os.ReadDir(notifyDir)
	if err != nil {
		log.Warnf("failed to list notify directory %s: %s", notifyDir, err)
		return false
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || skip(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(notifyDir, name)
		info, err := os.Stat(path)
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}

		res, err := hookrun.RunWithEnv(path, envFor(s))
		if err != nil {
			log.Warnf("notify helper %s failed: %s", path, err)
			continue
		}
		if res.ExitCode == 0 {
			log.Infof("notify helper %s succeeded", path)
			return true
		}
	}

	return false
}

// Describe renders a human-readable label for a Session.
func Describe(s Session) string {
	return fmt.Sprintf("%s (uid %d, session %s)", s.Username, s.Uid, s.SessionID)
}
