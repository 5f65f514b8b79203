package pipeline

import "fmt"

// BuildContext is the state the deploy conditions are evaluated against:
// the branch and tag of the checkout being built, and the matrix version
// of the entry considering the deploy.
type BuildContext struct {
	Branch  string
	Tag     string
	Version string
}

// Evaluate checks every set condition against the build context. It returns
// whether the deploy may proceed and, when not, one reason per unmet
// condition. Unset conditions always pass.
func (c Conditions) Evaluate(b BuildContext) (bool, []string) {
	var unmet []string
	if c.Tags && b.Tag == "" {
		unmet = append(unmet, "no tag on the current commit")
	}
	if c.Branch != "" && b.Branch != c.Branch {
		unmet = append(unmet, fmt.Sprintf("branch %q is not %q", b.Branch, c.Branch))
	}
	if c.Version != "" && b.Version != c.Version {
		unmet = append(unmet, fmt.Sprintf("matrix version %q is not %q", b.Version, c.Version))
	}
	return len(unmet) == 0, unmet
}
