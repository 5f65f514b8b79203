package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// ErrPipelineFailed is returned by Run when any matrix entry or the deploy
// failed. The report still describes everything that ran.
var ErrPipelineFailed = errors.New("pipeline failed")

// Phase names the pipeline phase a step belongs to.
type Phase string

const (
	PhaseInstall      Phase = "install"
	PhaseScript       Phase = "script"
	PhaseAfterSuccess Phase = "after_success"
	PhaseDeploy       Phase = "deploy"
)

type (
	StepResult struct {
		Phase    Phase
		Command  string
		Duration time.Duration
		Err      error
	}
	EntryResult struct {
		Entry  Entry
		Steps  []StepResult
		Failed bool
	}
	DeployResult struct {
		Attempted   bool
		SkipReasons []string
		Steps       []StepResult
		Err         error
	}
	// Report is the full record of one pipeline run.
	Report struct {
		Language string
		Context  BuildContext
		Entries  []EntryResult
		Deploy   DeployResult
	}
)

// Passed reports whether every matrix entry completed its install and
// script phases.
func (r *Report) Passed() bool {
	if len(r.Entries) == 0 {
		return false
	}
	for _, entry := range r.Entries {
		if entry.Failed {
			return false
		}
	}
	return true
}

// Deployed reports whether the deploy phase ran to completion.
func (r *Report) Deployed() bool {
	return r.Deploy.Attempted && r.Deploy.Err == nil
}

// RunCommandFunc executes a single pipeline step. Tests substitute it to
// run pipelines without spawning shells.
type RunCommandFunc func(ctx context.Context, command string, env []string, dir string, out io.Writer) error

// Runner executes a pipeline sequentially, one matrix entry at a time.
type Runner struct {
	Pipeline   *Pipeline
	Workdir    string
	Context    BuildContext
	Output     io.Writer
	RunCommand RunCommandFunc
	log        zerolog.Logger
}

// NewRunner builds a Runner with the build context resolved from the
// working tree and steps running through the platform shell.
func NewRunner(p *Pipeline, workdir string, log zerolog.Logger) *Runner {
	return &Runner{
		Pipeline:   p,
		Workdir:    workdir,
		Context:    ResolveBuildContext(workdir),
		Output:     os.Stdout,
		RunCommand: runShellCommand,
		log:        log,
	}
}

// Run executes every matrix entry and then considers the deploy. The first
// failing install or script step stops its entry; remaining entries still
// run, matching the per-job isolation of a hosted matrix build.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Language: r.Pipeline.Language, Context: r.Context}
	for _, entry := range r.Pipeline.Matrix() {
		report.Entries = append(report.Entries, r.runEntry(ctx, entry))
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}
	r.runDeploy(ctx, report)
	if !report.Passed() || report.Deploy.Err != nil {
		return report, ErrPipelineFailed
	}
	return report, nil
}

func (r *Runner) runEntry(ctx context.Context, entry Entry) EntryResult {
	result := EntryResult{Entry: entry}
	environ := entry.Environ(os.Environ())
	r.log.Info().Str("entry", entry.Name()).Msg("matrix entry starting")
	phases := []struct {
		phase Phase
		steps []string
	}{
		{PhaseInstall, r.Pipeline.Install},
		{PhaseScript, r.Pipeline.Script},
	}
	for _, phase := range phases {
		for _, command := range phase.steps {
			step := r.runStep(ctx, phase.phase, command, environ)
			result.Steps = append(result.Steps, step)
			if step.Err != nil {
				result.Failed = true
				r.log.Error().Str("entry", entry.Name()).Str("phase", string(phase.phase)).
					Str("command", command).Err(step.Err).Msg("step failed, entry aborted")
				return result
			}
		}
	}
	// after_success steps report but never fail the entry and never gate
	// the deploy.
	for _, command := range r.Pipeline.AfterSuccess {
		step := r.runStep(ctx, PhaseAfterSuccess, command, environ)
		result.Steps = append(result.Steps, step)
		if step.Err != nil {
			r.log.Warn().Str("entry", entry.Name()).Str("command", command).
				Err(step.Err).Msg("after_success step failed")
		}
	}
	r.log.Info().Str("entry", entry.Name()).Msg("matrix entry passed")
	return result
}

func (r *Runner) runDeploy(ctx context.Context, report *Report) {
	d := r.Pipeline.Deploy
	if d == nil {
		return
	}
	candidate, found := deployCandidate(report, d.On.Version)
	if !found {
		report.Deploy.SkipReasons = []string{"no matrix entry matches deploy.on.version"}
		return
	}
	if candidate.Failed {
		report.Deploy.SkipReasons = []string{"designated matrix entry failed"}
		r.log.Info().Str("entry", candidate.Entry.Name()).Msg("deploy skipped, entry failed")
		return
	}
	b := r.Context
	b.Version = candidate.Entry.Version
	ok, unmet := d.On.Evaluate(b)
	if !ok {
		report.Deploy.SkipReasons = unmet
		for _, reason := range unmet {
			r.log.Info().Str("reason", reason).Msg("deploy skipped")
		}
		return
	}
	report.Deploy.Attempted = true
	environ := candidate.Entry.Environ(os.Environ())
	if d.Provider == "pypi" && d.User != "" {
		environ = append(environ, "TWINE_USERNAME="+d.User)
	}
	r.log.Info().Str("provider", d.Provider).Msg("deploying")
	for _, command := range deployCommands(d) {
		step := r.runStep(ctx, PhaseDeploy, command, environ)
		report.Deploy.Steps = append(report.Deploy.Steps, step)
		if step.Err != nil {
			report.Deploy.Err = step.Err
			r.log.Error().Str("command", command).Err(step.Err).Msg("deploy failed")
			return
		}
	}
	r.log.Info().Str("provider", d.Provider).Msg("deploy finished")
}

func (r *Runner) runStep(ctx context.Context, phase Phase, command string, environ []string) StepResult {
	r.log.Debug().Str("phase", string(phase)).Str("command", command).Msg("running step")
	start := time.Now()
	err := r.RunCommand(ctx, command, environ, r.Workdir, r.Output)
	return StepResult{
		Phase:    phase,
		Command:  command,
		Duration: time.Since(start),
		Err:      err,
	}
}

// deployCandidate picks the matrix entry the deploy runs under: the one
// matching deploy.on.version, or the last entry when no version is pinned.
func deployCandidate(report *Report, version string) (EntryResult, bool) {
	if version == "" {
		if len(report.Entries) == 0 {
			return EntryResult{}, false
		}
		return report.Entries[len(report.Entries)-1], true
	}
	for _, entry := range report.Entries {
		if entry.Entry.Version == version {
			return entry, true
		}
	}
	return EntryResult{}, false
}

// deployCommands maps a deploy block to concrete commands. The pypi
// provider builds and uploads with twine; TWINE_PASSWORD has to be in the
// runner's environment.
func deployCommands(d *Deploy) []string {
	if d.Provider == "script" {
		return d.Script
	}
	return []string{
		"python -m pip install --upgrade build twine",
		"python -m build",
		"python -m twine upload dist/*",
	}
}

func runShellCommand(ctx context.Context, command string, env []string, dir string, out io.Writer) error {
	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/c"
	}
	cmd := exec.CommandContext(ctx, shell, flag, command)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
