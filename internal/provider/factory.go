package provider

import "fmt"

// Provider families recognized by the factory
const (
	FamilyClaudeCode = "claude-code"
	FamilyOpenCode   = "opencode"
)

// New creates a client for the given provider name. Names may carry a
// family prefix ("opencode:glm") or be a bare family name; unknown names
// default to the claude-code family so custom labels keep working.
func New(name string, family string) (Client, error) {
	switch family {
	case FamilyClaudeCode, "":
		return NewClaudeClient(name), nil
	case FamilyOpenCode:
		return NewOpenCodeClient(name), nil
	default:
		return nil, fmt.Errorf("unknown provider family %q", family)
	}
}
