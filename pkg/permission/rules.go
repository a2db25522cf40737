// Package permission asks for runtime capabilities and routes the eventual
// grant result back to the requester.
package permission

import (
	"fmt"
	"log/slog"

	masterminds "github.com/Masterminds/semver/v3"

	"github.com/morezero/rootbridge/pkg/rules"
)

const rulesLogPrefix = "permission:rules"

// PermissionWriteExternalStorage is the capability behind WithExternalRW.
const PermissionWriteExternalStorage = rules.PermissionWriteExternalStorage

type compiledRule struct {
	capability string
	constraint *masterminds.Constraints
}

// Rules answers whether a capability is implicitly granted on a platform version.
type Rules struct {
	entries []compiledRule
}

// NewRules compiles the platform constraints of set. A nil set yields empty rules.
func NewRules(set *rules.RuleSet) (*Rules, error) {
	r := &Rules{}
	if set == nil {
		return r, nil
	}
	for _, rule := range set.Rules {
		c, err := masterminds.NewConstraint(rule.Platform)
		if err != nil {
			return nil, fmt.Errorf("%s - invalid platform constraint %q for %s: %w", rulesLogPrefix, rule.Platform, rule.Capability, err)
		}
		r.entries = append(r.entries, compiledRule{capability: rule.Capability, constraint: c})
	}
	return r, nil
}

// AlwaysGranted reports whether some rule for capability matches platformVersion.
// An unparsable version never matches.
func (r *Rules) AlwaysGranted(capability, platformVersion string) bool {
	if r == nil || len(r.entries) == 0 || platformVersion == "" {
		return false
	}
	v, err := masterminds.NewVersion(platformVersion)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - unparsable platform version %q: %v", rulesLogPrefix, platformVersion, err))
		return false
	}
	for _, e := range r.entries {
		if e.capability == capability && e.constraint.Check(v) {
			return true
		}
	}
	return false
}
