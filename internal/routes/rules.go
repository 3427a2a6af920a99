package routes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of a route table override
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules loads a route table override from a YAML file
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes config: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routes config: %w", err)
	}

	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("routes config %s defines no rules", path)
	}

	for i, rule := range file.Rules {
		if rule.Prefix == "" || rule.Prefix[0] != '/' {
			return nil, fmt.Errorf("rule %d: prefix must start with /", i)
		}
		switch rule.Class {
		case ClassPublic, ClassAuthSensitive, ClassAdmin, ClassSuperAdmin, ClassProxyPass, ClassDefault:
		default:
			return nil, fmt.Errorf("rule %d: unknown class %q", i, rule.Class)
		}
	}

	return file.Rules, nil
}

// LoadRulesOrDefault loads the override file when present, and falls back to
// the built-in table otherwise.
func LoadRulesOrDefault(path string) []Rule {
	rules, err := LoadRules(path)
	if err != nil {
		return DefaultRules
	}
	return rules
}
