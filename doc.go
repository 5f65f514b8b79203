// Installer and CI runner for the PVGeo ParaView plugin suite.
//
// The installer registers the suite with a host ParaView installation by
// creating two directory links inside the installation root: one placing
// the Python package on ParaView's package search path, one placing the
// plugin binaries in its plugin directory. The root is taken from the
// PVPATH environment variable, or from the --target flag which overrides
// it.
//
// The ci subcommand runs the suite's pipeline file: it expands the
// version matrix, executes install/script/after_success steps per entry,
// and deploys only when the configured matrix entry, branch and tag
// conditions all hold.
package pvinstall
