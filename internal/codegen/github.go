package codegen

import (
	"gopkg.in/yaml.v3"

	"github.com/phobologic/surc/internal/model"
)

type ghTriggers struct {
	Push struct {
		Branches []string `yaml:"branches,flow"`
	} `yaml:"push"`
	WorkflowDispatch struct{} `yaml:"workflow_dispatch"`
}

type ghJob struct {
	RunsOn      string            `yaml:"runs-on"`
	Environment string            `yaml:"environment,omitempty"`
	Needs       []string          `yaml:"needs,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Steps       []ghStep          `yaml:"steps"`
}

type ghStep struct {
	Name string `yaml:"name"`
	Uses string `yaml:"uses,omitempty"`
	Run  string `yaml:"run,omitempty"`
}

// GitHubActions renders d as a GitHub Actions workflow.
func GitHubActions(d *model.DeployUnit) ([]byte, error) {
	order, err := jobOrder(d)
	if err != nil {
		return nil, err
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	name := "Deploy Pipeline"
	if d.Pipeline != nil && d.Pipeline.Name != "" {
		name = d.Pipeline.Name
	}
	if _, err := put(root, "name", name); err != nil {
		return nil, err
	}
	var on ghTriggers
	on.Push.Branches = []string{"main"}
	if _, err := put(root, "on", on); err != nil {
		return nil, err
	}

	jobs := &yaml.Node{Kind: yaml.MappingNode}
	for _, jobName := range order {
		job := d.Jobs[jobName]
		gj := ghJob{
			RunsOn: runner,
			Needs:  needs(job),
			Env: secretVars(job, func(name string) string {
				return "${{ secrets." + name + " }}"
			}),
			Steps: []ghStep{{Name: "Checkout code", Uses: "actions/checkout@v4"}},
		}
		if t := d.TargetFor(job); t != nil {
			gj.Environment = t.Kind
		}
		for i, cmd := range job.Runs {
			gj.Steps = append(gj.Steps, ghStep{Name: stepName(cmd, i), Run: cmd})
		}

		key, err := put(jobs, sanitize(jobName), gj)
		if err != nil {
			return nil, err
		}
		if gated(d, job) {
			key.HeadComment = "# Requires manual approval via GitHub environment protection rules"
		}
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "jobs"}, jobs)

	return render(header(d), root)
}
