// Command needrestart detects processes running stale code after a
// package upgrade and reports (or restarts) the services that own them.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/needrestart-go/needrestart/config"
	"github.com/needrestart-go/needrestart/driver"
	"github.com/needrestart-go/needrestart/hookrun"
	"github.com/needrestart-go/needrestart/nrlog"
	"github.com/needrestart-go/needrestart/output"
	"github.com/needrestart-go/needrestart/ui"
)

const toolVersion = "0.1.0"

type flags struct {
	verbose      bool
	quiet        bool
	defaultNo    bool
	configPath   string
	restartMode  string
	detailMode   string
	batch        bool
	plugin       bool
	frontendName string
	kernelOnly   bool
	libraryOnly  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr *os.File) int {
	var f flags
	exitCode := 0

	root := &cobra.Command{
		Use:     "needrestart",
		Short:   "Check which services need to be restarted after library/kernel upgrades",
		Version: toolVersion,
		RunE: func(cmd *cobra.Command, cliArgs []string) error {
			code, err := execute(f, stdin, stdout, stderr)
			exitCode = code
			return err
		},
		SilenceUsage: true,
	}

	root.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "increase verbosity")
	root.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "decrease verbosity")
	root.Flags().BoolVarP(&f.defaultNo, "no", "n", false, "default answer \"no\" in interactive prompts")
	root.Flags().StringVarP(&f.configPath, "config", "c", "", "configuration file path")
	root.Flags().StringVarP(&f.restartMode, "restart", "r", "", "restart mode: l|i|a")
	root.Flags().StringVarP(&f.detailMode, "detail", "m", "", "detail level: e|a")
	root.Flags().BoolVarP(&f.batch, "batch", "b", false, "batch mode, machine-readable output")
	root.Flags().BoolVarP(&f.plugin, "plugin", "p", false, "Nagios plugin mode (implies -b)")
	root.Flags().StringVarP(&f.frontendName, "frontend", "f", "", "interactive dialog frontend override")
	root.Flags().BoolVarP(&f.kernelOnly, "kernelonly", "k", false, "perform kernel check only")
	root.Flags().BoolVarP(&f.libraryOnly, "libraryonly", "l", false, "perform library/process check only")

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = 1
		}
	}

	return exitCode
}

func execute(f flags, stdin, stdout, stderr *os.File) (int, error) {
	verbosity := nrlog.Default
	if f.verbose {
		verbosity = nrlog.Verbose
	}
	if f.quiet {
		verbosity = nrlog.Quiet
	}
	nrlog.Configure(verbosity, stderr)
	log := nrlog.For("main")

	cfg := config.Defaults()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			if !f.batch {
				fmt.Fprintf(stderr, "needrestart: %s\n", err)
			}
			return 1, nil
		}
		cfg = loaded
	} else if !f.batch {
		fmt.Fprintln(stderr, "needrestart: no configuration file given (-c), using built-in defaults")
	}

	if f.restartMode != "" {
		cfg.Restart = config.RestartMode(f.restartMode)
	}
	if f.detailMode != "" {
		cfg.UIMode = config.DetailMode(f.detailMode)
	}
	if f.defaultNo {
		cfg.DefNo = true
	}

	isRoot := os.Geteuid() == 0

	if f.plugin && !isRoot {
		fmt.Fprintln(stdout, "UNKN - needrestart must run as root in plugin mode")
		return 3, nil
	}

	runlevel := currentRunlevel()

	report := driver.Run(cfg, driver.Options{
		ProcRoot:         "/proc",
		BootDir:          "/boot",
		UserMode:         !isRoot,
		TargetUid:        driver.EffectiveUid(),
		IsRoot:           isRoot,
		Runlevel:         runlevel,
		SelfPid:          os.Getpid(),
		ParentOfSelfPid:  os.Getppid(),
		KernelCheckOnly:  f.kernelOnly && isRoot,
		LibraryCheckOnly: f.libraryOnly,
		ToolVersion:      toolVersion,
	})

	if f.plugin {
		state := output.Nagios(stdout, report)
		return int(state), nil
	}

	if f.batch {
		output.Batch(stdout, report)
		return 0, nil
	}

	detail := output.DetailEasy
	if cfg.UIMode == config.DetailAdvanced {
		detail = output.DetailAdvanced
	}
	output.Human(stdout, report, detail, cfg.KernelHints)

	switch cfg.Restart {
	case config.RestartInteractive:
		frontend := pickFrontend(cfg.Restart, cfg.DefNo, stdin, stdout)
		for _, cmd := range report.RestartCommands {
			if frontend.Confirm("Run '"+cmd.String()+"'?", !cfg.DefNo) {
				runRestartCommand(log, cmd)
			}
		}
	case config.RestartAutomatic:
		for _, cmd := range report.RestartCommands {
			runRestartCommand(log, cmd)
		}
	}

	if report.NotifiedSessions > 0 {
		log.Infof("notified %d session(s) of outdated processes", report.NotifiedSessions)
	}

	return 0, nil
}

// runRestartCommand executes cmd via exec.Command (through hookrun.Run, no
// shell involved) and logs the outcome.
func runRestartCommand(log nrlog.Logger, cmd driver.RestartCommand) {
	if len(cmd.Argv) == 0 {
		return
	}
	if _, err := hookrun.Run(cmd.Argv[0], cmd.Argv[1:]...); err != nil {
		log.Errorf("%s: %s", cmd.String(), err)
		return
	}
	log.Infof("executed: %s", cmd.String())
}

// pickFrontend selects the Frontend implementation for the run: automatic
// restart mode never needs to prompt, so it gets AutoFrontend; anything
// else reads a line from stdin, where -n (default-no) only changes the
// default answer passed to Confirm.
func pickFrontend(mode config.RestartMode, defNo bool, stdin, stdout *os.File) ui.Frontend {
	if mode == config.RestartAutomatic {
		return ui.AutoFrontend{Answer: !defNo}
	}
	return ui.NewLineFrontend(stdin, stdout)
}

// currentRunlevel reads the active SysV runlevel from the "runlevel"
// utility's conventional output file, defaulting to 2 (the common
// Debian default) when it cannot be determined.
func currentRunlevel() int {
	data, err := os.ReadFile("/var/run/utmp.runlevel")
	if err != nil {
		return 2
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 2
	}
	return n
}
