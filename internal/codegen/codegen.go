// Package codegen renders a validated Deploy IR unit as CI configuration.
package codegen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/surc/internal/deploy"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/model"
)

// Supported platforms.
const (
	GitHub = "github"
	GitLab = "gitlab"
)

const runner = "ubuntu-latest"

// InvalidError is returned when the deploy unit fails its checks.
type InvalidError struct {
	Diagnostics []diag.Diagnostic
}

func (e *InvalidError) Error() string {
	errs, _ := diag.Count(e.Diagnostics)
	return fmt.Sprintf("deploy unit has %d error(s); fix them before generating CI configuration", errs)
}

// Generate renders d for platform.
func Generate(d *model.DeployUnit, platform string) ([]byte, error) {
	switch platform {
	case GitHub:
		return GitHubActions(d)
	case GitLab:
		return GitLabCI(d)
	}
	return nil, fmt.Errorf("unknown platform %q (supported: %s, %s)", platform, GitHub, GitLab)
}

// jobOrder validates d and returns its job names so every job follows the
// jobs it requires, ties broken by name.
func jobOrder(d *model.DeployUnit) ([]string, error) {
	if diags := deploy.Check(d); diag.HasErrors(diags) {
		return nil, &InvalidError{Diagnostics: diags}
	}
	order, err := deploy.JobGraph(d).TopoOrder()
	if err != nil {
		return nil, fmt.Errorf("ordering jobs: %w", err)
	}
	return order, nil
}

func header(d *model.DeployUnit) string {
	var b strings.Builder
	b.WriteString("# Generated from Deploy IR by surc\n")
	if d.Pipeline != nil {
		fmt.Fprintf(&b, "# Pipeline: %s\n", d.Pipeline.Name)
		if d.Pipeline.Description != "" {
			fmt.Fprintf(&b, "# %s\n", d.Pipeline.Description)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// gated reports whether job deploys to a target that needs manual approval.
// Production targets are gated whenever the unit declares a gate.
func gated(d *model.DeployUnit, job *model.Job) bool {
	if d.Gate == nil || job.UsesTarget == "" {
		return false
	}
	if d.Gate.Requires(job.UsesTarget) {
		return true
	}
	t := d.TargetFor(job)
	return t != nil && t.IsProduction()
}

// sanitize turns a job name into an identifier both platforms accept.
func sanitize(name string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

func needs(job *model.Job) []string {
	var out []string
	for _, r := range job.Requires {
		out = append(out, sanitize(model.LocalRef(r, "job")))
	}
	return out
}

// secretVars maps each secret a job needs to its upper-cased variable name.
func secretVars(job *model.Job, value func(name string) string) map[string]string {
	if len(job.NeedsSecrets) == 0 {
		return nil
	}
	vars := make(map[string]string, len(job.NeedsSecrets))
	for _, s := range job.NeedsSecrets {
		name := strings.ToUpper(model.LocalRef(s, "secret"))
		vars[name] = value(name)
	}
	return vars
}

func stepName(cmd string, index int) string {
	parts := strings.Fields(cmd)
	switch {
	case len(parts) == 0:
		return fmt.Sprintf("Step %d", index+1)
	case len(parts) > 1 && isTool(parts[0]):
		return fmt.Sprintf("Run %s %s", parts[0], parts[1])
	}
	return "Run " + parts[0]
}

func isTool(cmd string) bool {
	switch cmd {
	case "npm", "docker", "kubectl", "cargo", "go":
		return true
	}
	return false
}

// put appends key: value to a mapping node.
func put(m *yaml.Node, key string, value any) (*yaml.Node, error) {
	v := &yaml.Node{}
	if err := v.Encode(value); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key, err)
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	m.Content = append(m.Content, k, v)
	return k, nil
}

func render(head string, root *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(head)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
