// Package output renders a driver.Report in one of three formats: the
// default human-readable listing, the stable NEEDRESTART-* batch lines,
// or a single Nagios-plugin status line with perfdata.
package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/needrestart-go/needrestart/config"
	"github.com/needrestart-go/needrestart/driver"
)

// DetailMode selects how much the human formatter prints.
type DetailMode int

const (
	DetailEasy DetailMode = iota
	DetailAdvanced
)

// Human writes the default, operator-facing listing. hints controls how
// much kernel-upgrade detail is shown: KernelHintsOff suppresses the
// section entirely, KernelHintsTerse prints a one-line status, and
// KernelHintsOn (the default) prints the full running/installed detail.
func Human(w io.Writer, r driver.Report, detail DetailMode, hints config.KernelHints) {
	if !r.KernelSkipped && hints != config.KernelHintsOff {
		switch {
		case hints == config.KernelHintsTerse:
			fmt.Fprintf(w, "Kernel: %s\n", r.KernelStatus.String())
		case r.KernelStatus.String() == "none":
			fmt.Fprintln(w, "No kernel upgrade pending.")
		default:
			fmt.Fprintf(w, "Kernel upgrade pending: running %s, installed %s (%s)\n",
				r.RunningKernel, orDash(r.ExpectedKernel), r.KernelStatus.String())
		}
	}

	if len(r.Units) == 0 {
		fmt.Fprintln(w, "No services need to be restarted.")
	} else {
		fmt.Fprintln(w, "Services to be restarted:")
		for _, u := range r.Units {
			if detail == DetailAdvanced {
				fmt.Fprintf(w, "  %s  [%s]\n", u.DisplayName(), u.Kind.String())
				if u.ExecStart != "" {
					fmt.Fprintf(w, "    ExecStart=%s\n", u.ExecStart)
				}
			} else {
				fmt.Fprintf(w, "  %s\n", u.DisplayName())
			}
		}
	}

	if len(r.Containers) > 0 {
		fmt.Fprintln(w, "Containers to be restarted:")
		for _, c := range r.Containers {
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}

	if len(r.UserSessionPids) > 0 {
		fmt.Fprintln(w, "Outdated processes in your session:")
		for _, cmd := range sortedKeys(r.UserSessionPids) {
			fmt.Fprintf(w, "  %s: %s\n", cmd, joinPids(r.UserSessionPids[cmd]))
		}
	}
}

// Batch writes the stable, machine-parsable NEEDRESTART-* lines.
func Batch(w io.Writer, r driver.Report) {
	fmt.Fprintf(w, "NEEDRESTART-VER: %s\n", r.ToolVersion)

	if !r.KernelSkipped {
		fmt.Fprintf(w, "NEEDRESTART-KCUR: %s\n", r.RunningKernel)
		if r.ExpectedKernel != "" {
			fmt.Fprintf(w, "NEEDRESTART-KEXP: %s\n", r.ExpectedKernel)
		}
		fmt.Fprintf(w, "NEEDRESTART-KSTA: %d\n", r.KernelStatus.Int())
	}

	for _, u := range r.Units {
		fmt.Fprintf(w, "NEEDRESTART-SVC: %s\n", u.DisplayName())
	}

	for _, c := range r.Containers {
		fmt.Fprintf(w, "NEEDRESTART-CONT: %s\n", c.Name)
	}

	for _, cmd := range sortedKeys(r.UserSessionPids) {
		fmt.Fprintf(w, "NEEDRESTART-PID: %s=%s\n", cmd, joinPids(r.UserSessionPids[cmd]))
	}
}

// NagiosState is one of the standard plugin return codes.
type NagiosState int

const (
	StateOK NagiosState = iota
	StateWarn
	StateCrit
	StateUnknown
)

func (s NagiosState) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateWarn:
		return "WARNING"
	case StateCrit:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Nagios writes the single plugin status line with perfdata and returns
// the exit code to use, the maximum of each category's state.
func Nagios(w io.Writer, r driver.Report) NagiosState {
	kernelState := StateOK
	kernelText := "n/a"
	if !r.KernelSkipped {
		kernelText = r.KernelStatus.String()
		switch r.KernelStatus.Int() {
		case 1:
			kernelState = StateWarn
		case 2:
			kernelState = StateCrit
		case 3:
			kernelState = StateUnknown
		}
	}

	servicesState := StateOK
	if len(r.Units) > 0 {
		servicesState = StateWarn
	}

	containersState := StateOK
	if len(r.Containers) > 0 {
		containersState = StateWarn
	}

	sessionsState := StateOK
	if len(r.UserSessionPids) > 0 {
		sessionsState = StateWarn
	}

	overall := maxState(kernelState, servicesState, containersState, sessionsState)

	bang := func(s NagiosState) string {
		if s != StateOK {
			return " (!)"
		}
		return ""
	}

	fmt.Fprintf(w, "%s - Kernel: %s, Services: %d%s, Containers: %d%s, Sessions: %d%s|Kernel=%d Services=%d Containers=%d Sessions=%d\n",
		overall.String(), kernelText,
		len(r.Units), bang(servicesState),
		len(r.Containers), bang(containersState),
		len(r.UserSessionPids), bang(sessionsState),
		r.KernelStatus.Int(), len(r.Units), len(r.Containers), len(r.UserSessionPids))

	return overall
}

func maxState(states ...NagiosState) NagiosState {
	max := StateOK
	for _, s := range states {
		if s > max {
			max = s
		}
	}
	return max
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPids(pids []int) string {
	strs := make([]string, len(pids))
	for i, p := range pids {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ",")
}
