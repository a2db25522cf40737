// Package rules loads the table of permissions that are granted implicitly on
// certain platform versions.
package rules

// Rule marks Capability as always granted when the platform version satisfies
// the semver constraint in Platform (e.g. ">= 30").
type Rule struct {
	Capability  string `yaml:"capability"`
	Platform    string `yaml:"platform"`
	Description string `yaml:"description,omitempty"`
}

// RuleSet is the on-disk form of the rules file.
type RuleSet struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// PermissionWriteExternalStorage is the legacy shared-storage permission.
const PermissionWriteExternalStorage = "android.permission.WRITE_EXTERNAL_STORAGE"
