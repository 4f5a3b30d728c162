package codegen

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/surc/internal/model"
)

const image = "ubuntu:latest"

type glJob struct {
	Stage     string            `yaml:"stage"`
	Image     string            `yaml:"image"`
	Tags      []string          `yaml:"tags,omitempty"`
	Needs     []string          `yaml:"needs,omitempty"`
	Variables map[string]string `yaml:"variables,omitempty"`
	Script    []string          `yaml:"script"`
	When      string            `yaml:"when,omitempty"`
	Only      []string          `yaml:"only,omitempty"`
	Artifacts *glArtifacts      `yaml:"artifacts,omitempty"`
}

type glArtifacts struct {
	Paths []string `yaml:"paths"`
}

// GitLabCI renders d as a .gitlab-ci.yml document.
func GitLabCI(d *model.DeployUnit) ([]byte, error) {
	order, err := jobOrder(d)
	if err != nil {
		return nil, err
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	if _, err := put(root, "stages", stages(d)); err != nil {
		return nil, err
	}
	if _, err := put(root, "variables", map[string]string{"GIT_DEPTH": "1"}); err != nil {
		return nil, err
	}

	for _, jobName := range order {
		job := d.Jobs[jobName]
		gj := glJob{
			Stage: stage(jobName, job),
			Image: image,
			Needs: needs(job),
			Variables: secretVars(job, func(name string) string {
				return "$" + name
			}),
			Script: job.Runs,
		}
		if len(gj.Script) == 0 {
			gj.Script = []string{"echo 'nothing to run for " + jobName + "'"}
		}
		if t := d.TargetFor(job); t != nil {
			switch t.Kind {
			case "production", "staging":
				gj.Tags = []string{t.Kind}
			}
			if t.IsProduction() {
				gj.Only = []string{"main"}
			}
		}
		if gated(d, job) {
			gj.When = "manual"
		}
		if len(job.Produces) > 0 {
			gj.Artifacts = &glArtifacts{}
			for _, a := range job.Produces {
				gj.Artifacts.Paths = append(gj.Artifacts.Paths, "build/"+model.LocalRef(a, "artifact"))
			}
		}

		if _, err := put(root, sanitize(jobName), gj); err != nil {
			return nil, err
		}
	}

	return render(header(d), root)
}

// stages lists the pipeline stages in build, test, deploy order, keeping
// only those some job is assigned to.
func stages(d *model.DeployUnit) []string {
	used := make(map[string]bool)
	for _, name := range sortedKeys(d.Jobs) {
		used[stage(name, d.Jobs[name])] = true
	}
	var out []string
	for _, s := range []string{"build", "test", "deploy"} {
		if used[s] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = []string{"build"}
	}
	return out
}

func stage(name string, job *model.Job) string {
	switch {
	case strings.Contains(name, "build"):
		return "build"
	case strings.Contains(name, "test"):
		return "test"
	case job.UsesTarget != "" || strings.Contains(name, "deploy"):
		return "deploy"
	case len(job.Requires) == 0:
		return "build"
	}
	return "deploy"
}
