package pvinstall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pvgeo/pvinstall/pipeline"
)

// Exit codes. Usage errors include a missing installation target, since
// the fix is always on the caller's side.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitUsageError  = 2
	ExitConfigError = 3
)

var (
	appConfig     *Config
	appSettings   Settings
	appTranslator *Translator
	appLog        zerolog.Logger

	exitCode = ExitSuccess

	flagTarget   string
	flagSource   string
	flagLang     string
	flagLogLevel string
	flagPipeline string
)

// Run wires up the command tree and executes it, returning the process
// exit code.
func Run() int {
	var err error
	if appConfig, err = NewConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	if appSettings, err = LoadUserSettings(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	if appTranslator, err = NewTranslatorVar(appConfig.Variables); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	if appSettings.Language != "" {
		if err := appTranslator.SetLanguage(appSettings.Language); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitConfigError
		}
	}

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error.
		if exitCode == ExitSuccess {
			return ExitUsageError
		}
	}
	return exitCode
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "pvinstall",
		Short:        fmt.Sprintf("Register %s with a ParaView installation and run its CI pipeline", appConfig.Product),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagLang != "" {
				if err := appTranslator.SetLanguage(flagLang); err != nil {
					return err
				}
			}
			level := appSettings.LogLevel
			if flagLogLevel != "" {
				level = flagLogLevel
			}
			logger, closeLog, err := NewLogger(level)
			if err != nil {
				return err
			}
			appLog = logger
			cobra.OnFinalize(closeLog)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&flagLang, "lang", "",
		"message language, one of: "+strings.Join(appTranslator.GetLanguages(), ", "))
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Create the directory links inside the ParaView installation",
		Args:  cobra.NoArgs,
		Run:   runInstall,
	}
	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the directory links again",
		Args:  cobra.NoArgs,
		Run:   runUninstall,
	}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report the state of each link without changing anything",
		Args:  cobra.NoArgs,
		Run:   runStatus,
	}
	for _, cmd := range []*cobra.Command{installCmd, uninstallCmd, statusCmd} {
		cmd.Flags().StringVar(&flagTarget, "target", "",
			fmt.Sprintf("ParaView installation root (overrides %s)", appConfig.EnvVar))
		cmd.Flags().StringVar(&flagSource, "source", ".", "suite checkout directory")
	}

	ciCmd := &cobra.Command{
		Use:   "ci",
		Short: "Work with the pipeline file",
	}
	ciRunCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline: matrix entries, then the gated deploy",
		Args:  cobra.NoArgs,
		Run:   runCI,
	}
	ciCheckCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the pipeline file and show what a run would do",
		Args:  cobra.NoArgs,
		Run:   checkCI,
	}
	pipelineFile := appConfig.PipelineFile
	if pipelineFile == "" {
		pipelineFile = pipeline.DefaultFile
	}
	for _, cmd := range []*cobra.Command{ciRunCmd, ciCheckCmd} {
		cmd.Flags().StringVar(&flagPipeline, "file", pipelineFile, "pipeline file")
	}
	ciCmd.AddCommand(ciRunCmd, ciCheckCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the suite version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s installer %s\n", appConfig.Product, appConfig.Version)
		},
	}

	rootCmd.AddCommand(installCmd, uninstallCmd, statusCmd, ciCmd, versionCmd)
	return rootCmd
}

// installTarget resolves the installation root: flag, then environment
// variable, then the settings file default.
func installTarget() string {
	if flagTarget != "" {
		return flagTarget
	}
	if root := os.Getenv(appConfig.EnvVar); root != "" {
		return root
	}
	return appSettings.Target
}

func newAppInstaller() (*Installer, error) {
	installer, err := NewInstaller(appConfig, flagSource, appLog)
	if err != nil {
		return nil, err
	}
	installer.SetProgressFunction(func(entry LinkEntry) {
		appLog.Debug().Str("link", entry.Spec.Name).Stringer("state", entry.State).Msg("progress")
	})
	return installer, nil
}

// reportInstallerErr translates the installer failure taxonomy into user
// messages and an exit code.
func reportInstallerErr(err error) {
	switch {
	case errors.Is(err, ErrNoInstallRoot):
		fmt.Println(appTranslator.Get("err_no_target"))
		exitCode = ExitUsageError
	case errors.Is(err, ErrRootNotDir):
		fmt.Println(appTranslator.Get("err_target_invalid"))
		fmt.Println(err)
		exitCode = ExitUsageError
	case errors.Is(err, ErrPathOccupied):
		fmt.Println(appTranslator.Get("err_occupied"))
		fmt.Println(err)
		exitCode = ExitFailure
	default:
		fmt.Println(err)
		exitCode = ExitFailure
	}
}

func runInstall(cmd *cobra.Command, args []string) {
	installer, err := newAppInstaller()
	if err != nil {
		reportInstallerErr(err)
		return
	}
	if err := installer.CheckInstallRoot(installTarget()); err != nil {
		reportInstallerErr(err)
		return
	}
	fmt.Println(appTranslator.Get("installing"))
	if err := installer.Install(); err != nil {
		reportInstallerErr(err)
		fmt.Println(appTranslator.Get("install_failed"))
		return
	}
	for _, entry := range installer.Entries() {
		fmt.Printf("  %s -> %s\n", entry.Target, entry.LinksTo)
	}
	fmt.Println(appTranslator.Get("install_done"))
}

func runUninstall(cmd *cobra.Command, args []string) {
	installer, err := newAppInstaller()
	if err != nil {
		reportInstallerErr(err)
		return
	}
	if err := installer.CheckInstallRoot(installTarget()); err != nil {
		reportInstallerErr(err)
		return
	}
	removed, err := installer.Uninstall()
	if err != nil {
		reportInstallerErr(err)
		return
	}
	fmt.Printf("%s (%d)\n", appTranslator.Get("uninstall_done"), removed)
}

func runStatus(cmd *cobra.Command, args []string) {
	installer, err := newAppInstaller()
	if err != nil {
		reportInstallerErr(err)
		return
	}
	if err := installer.ResolveRoot(installTarget()); err != nil {
		reportInstallerErr(err)
		return
	}
	if err := installer.Refresh(); err != nil {
		reportInstallerErr(err)
		return
	}
	fmt.Println(appTranslator.Get("status_header"))
	for _, entry := range installer.Entries() {
		switch entry.State {
		case StateLinked:
			fmt.Printf("  %-14s %-10s %s -> %s\n", entry.Spec.Name, entry.State, entry.Target, entry.LinksTo)
		case StateForeign:
			fmt.Printf("  %-14s %-10s %s -> %s\n", entry.Spec.Name, entry.State, entry.Target, entry.LinksTo)
			exitCode = ExitFailure
		case StateOccupied:
			fmt.Printf("  %-14s %-10s %s\n", entry.Spec.Name, entry.State, entry.Target)
			exitCode = ExitFailure
		default:
			fmt.Printf("  %-14s %-10s %s\n", entry.Spec.Name, entry.State, entry.Target)
		}
	}
}

func runCI(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	p, err := pipeline.Load(flagPipeline)
	if err != nil {
		fmt.Println(err)
		exitCode = ExitConfigError
		return
	}
	runner := pipeline.NewRunner(p, ".", appLog)
	report, runErr := runner.Run(ctx)
	if p.Notifications.Webhook != "" {
		if err := pipeline.NewNotifier(p.Notifications.Webhook).Notify(ctx, report); err != nil {
			appLog.Warn().Err(err).Msg("notification failed")
		}
	}
	printReport(report)
	if runErr != nil {
		exitCode = ExitFailure
	}
}

func printReport(report *pipeline.Report) {
	summary := report.Summarize()
	for _, entry := range summary.Entries {
		verdict := appTranslator.Get("ci_entry_passed")
		if !entry.Passed {
			verdict = appTranslator.Get("ci_entry_failed")
		}
		fmt.Printf("  %s %s: %s (%d steps)\n", summary.Language, entry.Version, verdict, entry.Steps)
	}
	switch {
	case summary.Deployed:
		fmt.Println(appTranslator.Get("ci_deployed"))
	case len(report.Deploy.SkipReasons) > 0:
		fmt.Println(appTranslator.Get("ci_deploy_skipped"))
		for _, reason := range report.Deploy.SkipReasons {
			fmt.Printf("  - %s\n", reason)
		}
	}
	if summary.Passed {
		fmt.Println(appTranslator.Get("ci_passed"))
	} else {
		fmt.Println(appTranslator.Get("ci_failed"))
	}
}

func checkCI(cmd *cobra.Command, args []string) {
	p, err := pipeline.Load(flagPipeline)
	if err != nil {
		fmt.Println(err)
		exitCode = ExitConfigError
		return
	}
	fmt.Println(appTranslator.Get("ci_check_ok"))
	for _, entry := range p.Matrix() {
		fmt.Printf("  %s: %d install, %d script, %d after_success steps\n",
			entry.Name(), len(p.Install), len(p.Script), len(p.AfterSuccess))
	}
	if p.Deploy == nil {
		fmt.Println(appTranslator.Get("ci_check_nodeploy"))
		return
	}
	b := pipeline.ResolveBuildContext(".")
	b.Version = p.Deploy.On.Version
	if b.Version == "" {
		b.Version = p.Versions[len(p.Versions)-1]
	}
	if ok, unmet := p.Deploy.On.Evaluate(b); ok {
		fmt.Println(appTranslator.Get("ci_check_woulddeploy"))
	} else {
		fmt.Println(appTranslator.Get("ci_deploy_skipped"))
		for _, reason := range unmet {
			fmt.Printf("  - %s\n", reason)
		}
	}
}
