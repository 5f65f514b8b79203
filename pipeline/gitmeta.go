package pipeline

import (
	"os"
	"os/exec"
	"strings"
)

// ResolveBuildContext determines the branch and tag of the working tree.
// CI environment variables win over asking git, so a hosted runner's view
// of a detached checkout is authoritative. Outside both, branch and tag
// stay empty and only unconditional deploys can fire.
func ResolveBuildContext(dir string) BuildContext {
	b := BuildContext{
		Branch: firstEnv("PVCI_BRANCH", "TRAVIS_BRANCH", "GITHUB_REF_NAME"),
		Tag:    firstEnv("PVCI_TAG", "TRAVIS_TAG"),
	}
	if b.Branch == "" {
		branch, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
		if err == nil && branch != "HEAD" {
			b.Branch = branch
		}
	}
	if b.Tag == "" {
		tag, err := gitOutput(dir, "describe", "--tags", "--exact-match")
		if err == nil {
			b.Tag = tag
		}
	}
	return b
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
