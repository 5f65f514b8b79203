package pipeline

import "testing"

func TestResolveBuildContextPrefersEnv(t *testing.T) {
	t.Setenv("PVCI_BRANCH", "master")
	t.Setenv("PVCI_TAG", "v2.1.0")
	b := ResolveBuildContext(t.TempDir())
	if b.Branch != "master" {
		t.Errorf("Branch = %q, want master", b.Branch)
	}
	if b.Tag != "v2.1.0" {
		t.Errorf("Tag = %q, want v2.1.0", b.Tag)
	}
}

func TestResolveBuildContextHostedRunnerVars(t *testing.T) {
	t.Setenv("PVCI_BRANCH", "")
	t.Setenv("PVCI_TAG", "")
	t.Setenv("TRAVIS_BRANCH", "develop")
	t.Setenv("TRAVIS_TAG", "")
	b := ResolveBuildContext(t.TempDir())
	if b.Branch != "develop" {
		t.Errorf("Branch = %q, want develop", b.Branch)
	}
}

func TestResolveBuildContextOutsideGit(t *testing.T) {
	for _, name := range []string{"PVCI_BRANCH", "PVCI_TAG", "TRAVIS_BRANCH", "TRAVIS_TAG", "GITHUB_REF_NAME"} {
		t.Setenv(name, "")
	}
	// A bare temp dir is not a git repository, so both stay empty.
	b := ResolveBuildContext(t.TempDir())
	if b.Branch != "" || b.Tag != "" {
		t.Errorf("BuildContext = %+v, want empty", b)
	}
}

func TestFirstEnvTrimsAndSkipsEmpty(t *testing.T) {
	t.Setenv("PVTEST_A", "  ")
	t.Setenv("PVTEST_B", " value ")
	if got := firstEnv("PVTEST_A", "PVTEST_B"); got != "value" {
		t.Errorf("firstEnv = %q, want value", got)
	}
}
