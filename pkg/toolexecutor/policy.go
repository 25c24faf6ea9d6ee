package toolexecutor

import (
	"fmt"
	"strings"
)

// ToolPolicy defines which tools a run may use
type ToolPolicy struct {
	Allow []string `json:"allow"` // List of allowed tools (* for all)
	Deny  []string `json:"deny"`  // List of denied tools (overrides allow)
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		return true
	}

	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// If no explicit allow, deny by default
	return false
}

// ValidatePolicy checks a policy against the registered tool names.
func ValidatePolicy(policy *ToolPolicy, known []string) error {
	if policy == nil {
		return nil
	}

	registered := make(map[string]bool, len(known))
	for _, name := range known {
		registered[name] = true
	}

	check := func(list []string, kind string) error {
		for _, name := range list {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("%s list contains an empty tool name", kind)
			}
			if name != "*" && !registered[name] {
				return fmt.Errorf("%s list references unknown tool %q", kind, name)
			}
		}
		return nil
	}

	if err := check(policy.Allow, "allow"); err != nil {
		return err
	}
	return check(policy.Deny, "deny")
}
