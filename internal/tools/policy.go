package tools

import "slices"

// Protocol is the endpoint a tool list is served on.
type Protocol string

const (
	ProtocolMCP Protocol = "mcp"
	ProtocolA2A Protocol = "a2a"
)

// Policy is everything tool visibility may depend on. It never carries
// tenant data, so two callers with equal policies see identical tool lists.
type Policy struct {
	Protocol      Protocol
	DisabledTools []string
}

func (p Policy) Disabled(name string) bool {
	return slices.Contains(p.DisabledTools, name)
}

// A2AOnly is a visibility predicate for tools that hand work to the task
// manager.
func A2AOnly(p Policy) bool {
	return p.Protocol == ProtocolA2A
}
