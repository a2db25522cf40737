package rules

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const logPrefix = "rules:loader"

// LoadRuleSet loads rules from file paths or environment.
// It tries paths in order: first any paths passed in, then RULES_FILE env, then defaults.
func LoadRuleSet(paths ...string) (*RuleSet, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("RULES_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/rules.yaml", "rules.yaml")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		var set RuleSet
		if err := yaml.Unmarshal(data, &set); err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse rules file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded %d rules from %s", logPrefix, len(set.Rules), p))
		return &set, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default rules", logPrefix))
	return GetDefaultRuleSet(), nil
}

// GetDefaultRuleSet returns the embedded fallback rules.
func GetDefaultRuleSet() *RuleSet {
	return &RuleSet{
		Name:    "rootbridge-default",
		Version: "1.0.0",
		Rules: []Rule{
			{
				Capability:  PermissionWriteExternalStorage,
				Platform:    ">= 30",
				Description: "Scoped storage makes external read/write unnecessary from API 30",
			},
		},
	}
}
