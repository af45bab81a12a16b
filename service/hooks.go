package service

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/needrestart-go/needrestart/hookrun"
)

// HookResult is the parsed output of one package-manager hook invocation.
type HookResult struct {
	HookPath string
	Packages []string
	RCNames  []string
}

// RunHooks invokes every executable in hookDir in byte-wise lexical name
// order (digit runs are not compared numerically, so "9x" sorts after
// "10x"), passing exe (preceded by "-v" in verbose mode) as the last
// argument, and parses each hook's "TAG|value" stdout lines. A nonzero
// exit is logged at verbose level; malformed output lines are ignored.
// Neither stops the remaining hooks from running.
func RunHooks(hookDir string, exe string, verbose bool) ([]HookResult, error) {
	entries, err := os.ReadDir(hookDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var results []HookResult
	for _, name := range names {
		hookPath := filepath.Join(hookDir, name)
		info, err := os.Stat(hookPath)
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}

		args := []string{}
		if verbose {
			args = append(args, "-v")
		}
		args = append(args, exe)

		out, err := hookrun.Run(hookPath, args...)
		if err != nil {
			log.Debugf("hook %s failed: %s", hookPath, err)
		}
		results = append(results, parseHookOutput(hookPath, out.Stdout))
	}

	return results, nil
}

func parseHookOutput(hookPath, stdout string) HookResult {
	r := HookResult{HookPath: hookPath}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(parts[0])) {
		case "PACKAGE":
			r.Packages = append(r.Packages, strings.TrimSpace(parts[1]))
		case "RC":
			r.RCNames = append(r.RCNames, strings.TrimSpace(parts[1]))
		}
	}
	return r
}
