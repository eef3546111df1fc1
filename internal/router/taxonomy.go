package router

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// IntentDef is one leaf of the topic → subtopic → intent taxonomy.
type IntentDef struct {
	Topic       string   `yaml:"-"`
	Subtopic    string   `yaml:"-"`
	Name        string   `yaml:"intent_name"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	Examples    []string `yaml:"example_phrases"`
	Terms       []string `yaml:"terms"`
	Casual      []string `yaml:"casual"`

	casual []*regexp.Regexp
}

type subtopicDef struct {
	Subtopic string      `yaml:"subtopic"`
	Intents  []IntentDef `yaml:"intents"`
}

type topicDef struct {
	Topic     string        `yaml:"topic"`
	Subtopics []subtopicDef `yaml:"subtopics"`
}

// Taxonomy is the flattened, compiled intent catalog.
type Taxonomy struct {
	Intents []IntentDef
	byName  map[string]int
}

// ParseTaxonomy decodes and compiles a YAML taxonomy document.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var doc struct {
		Topics []topicDef `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}

	t := &Taxonomy{byName: make(map[string]int)}
	for _, topic := range doc.Topics {
		for _, sub := range topic.Subtopics {
			for _, def := range sub.Intents {
				if def.Name == "" {
					return nil, fmt.Errorf("taxonomy %s/%s: intent without name", topic.Topic, sub.Subtopic)
				}
				def.Topic = topic.Topic
				def.Subtopic = sub.Subtopic
				for _, pattern := range def.Casual {
					re, err := regexp.Compile("(?i)" + pattern)
					if err != nil {
						return nil, fmt.Errorf("taxonomy intent %s: casual pattern %q: %w", def.Name, pattern, err)
					}
					def.casual = append(def.casual, re)
				}
				for i, term := range def.Terms {
					def.Terms[i] = strings.ToLower(term)
				}
				// First definition wins for label lookups.
				if _, dup := t.byName[def.Name]; !dup {
					t.byName[def.Name] = len(t.Intents)
				}
				t.Intents = append(t.Intents, def)
			}
		}
	}
	if len(t.Intents) == 0 {
		return nil, fmt.Errorf("taxonomy has no intents")
	}
	return t, nil
}

// Lookup returns the intent definition by id.
func (t *Taxonomy) Lookup(name string) (IntentDef, bool) {
	if t == nil {
		return IntentDef{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return IntentDef{}, false
	}
	return t.Intents[i], true
}

// Topics returns the distinct topics in declaration order.
func (t *Taxonomy) Topics() []string {
	var out []string
	seen := make(map[string]bool)
	for _, def := range t.Intents {
		if !seen[def.Topic] {
			seen[def.Topic] = true
			out = append(out, def.Topic)
		}
	}
	return out
}

var (
	defaultTaxonomyOnce sync.Once
	defaultTaxonomy     *Taxonomy
)

// DefaultTaxonomy returns the embedded taxonomy. It panics if the embedded
// document is malformed, which is a build defect.
func DefaultTaxonomy() *Taxonomy {
	defaultTaxonomyOnce.Do(func() {
		t, err := ParseTaxonomy(taxonomyYAML)
		if err != nil {
			panic(err)
		}
		defaultTaxonomy = t
	})
	return defaultTaxonomy
}
