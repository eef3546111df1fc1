package agents

import (
	_ "embed"
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/advisorhub/mira/pkg/models"
)

//go:embed insights.yaml
var insightsYAML []byte

type ruleAction struct {
	Page   string                 `yaml:"page"`
	Params map[string]interface{} `yaml:"params"`
}

type ruleDef struct {
	ID       string      `yaml:"id"`
	Module   string      `yaml:"module"`
	Type     string      `yaml:"type"`
	Priority string      `yaml:"priority"`
	When     string      `yaml:"when"`
	Title    string      `yaml:"title"`
	Summary  string      `yaml:"summary"`
	Tag      string      `yaml:"tag"`
	Action   *ruleAction `yaml:"action"`
}

type insightRule struct {
	def     ruleDef
	module  models.MiraModule
	program *vm.Program
}

func loadInsightRules() ([]insightRule, error) {
	return parseInsightRules(insightsYAML)
}

func parseInsightRules(data []byte) ([]insightRule, error) {
	var doc struct {
		Rules []ruleDef `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode insight rules: %w", err)
	}
	out := make([]insightRule, 0, len(doc.Rules))
	for _, d := range doc.Rules {
		module := models.MiraModule(d.Module)
		if !module.Valid() {
			return nil, fmt.Errorf("insight rule %s: unknown module %q", d.ID, d.Module)
		}
		program, err := expr.Compile(d.When, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("insight rule %s: %w", d.ID, err)
		}
		out = append(out, insightRule{def: d, module: module, program: program})
	}
	return out, nil
}

// evaluateRules returns the insights whose condition holds. A rule whose
// condition fails to evaluate is skipped.
func evaluateRules(rules []insightRule, advisorID string, pageData map[string]interface{}) ([]models.ProactiveInsight, error) {
	env := make(map[string]interface{}, len(pageData)+1)
	for k, v := range pageData {
		env[k] = v
	}
	env["advisorId"] = advisorID

	var out []models.ProactiveInsight
	for _, r := range rules {
		res, err := expr.Run(r.program, env)
		if err != nil {
			continue
		}
		if ok, _ := res.(bool); !ok {
			continue
		}
		insight := models.ProactiveInsight{
			ID:          fmt.Sprintf("%s:%s", r.def.ID, advisorID),
			Type:        models.InsightType(r.def.Type),
			Priority:    models.InsightPriority(r.def.Priority),
			Title:       interpolate(r.def.Title, env),
			Summary:     interpolate(r.def.Summary, env),
			Tag:         r.def.Tag,
			Dismissible: r.def.Priority != string(models.PriorityCritical),
			Module:      r.module,
		}
		if r.def.Action != nil {
			page := r.def.Action.Page
			if page == "" {
				page = r.module.HomePage()
			}
			insight.UIActions = []models.UIAction{NavigateAction(r.module, page, r.def.Action.Params)}
		}
		out = append(out, insight)
	}
	return out, nil
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

func interpolate(tmpl string, env map[string]interface{}) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := env[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return m
	})
}
