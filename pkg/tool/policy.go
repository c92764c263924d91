package tool

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Policy restricts which tools a caller can reach.
type Policy struct {
	Allow []string `json:"allow" mapstructure:"allow" yaml:"allow"` // allowed tools (* for all)
	Deny  []string `json:"deny" mapstructure:"deny" yaml:"deny"`    // denied tools, overrides allow
}

// Allows reports whether name passes the policy. A nil policy allows all.
func (p *Policy) Allows(name string) bool {
	if p == nil {
		return true
	}

	for _, denied := range p.Deny {
		if denied == name || denied == "*" {
			return false
		}
	}

	for _, allowed := range p.Allow {
		if allowed == name || allowed == "*" {
			return true
		}
	}

	// No explicit allow means deny
	return false
}

// Validate flags configurations that are almost certainly mistakes.
func (p *Policy) Validate() error {
	if p == nil {
		return nil
	}

	allowAll, denyAll := false, false
	for _, name := range p.Allow {
		if name == "" {
			return fmt.Errorf("policy allow list contains an empty tool name")
		}
		if name == "*" {
			allowAll = true
		}
	}
	for _, name := range p.Deny {
		if name == "" {
			return fmt.Errorf("policy deny list contains an empty tool name")
		}
		if name == "*" {
			denyAll = true
		}
	}

	if allowAll && denyAll {
		log.Warn().Msg("Policy has both allow and deny wildcards - deny will override allow")
	}
	if len(p.Allow) == 0 {
		log.Warn().Msg("Policy has empty allow list - all tools will be denied by default")
	}

	return nil
}
