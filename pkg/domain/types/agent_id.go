package types

import (
	"fmt"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// AgentID is the stable identity of one agent. It is assigned at pool
// construction and is the join key into the memory store, so re-running
// the process with the same pool size resumes each agent's durable memory.
type AgentID string

var agentIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NewAgentID returns the canonical identity for the i-th agent of a pool.
func NewAgentID(i int) AgentID {
	return AgentID(fmt.Sprintf("agent_%d", i))
}

// Validate checks if the AgentID is valid
func (a AgentID) Validate() error {
	if a == "" {
		return goerr.New("agent ID cannot be empty")
	}
	if !agentIDPattern.MatchString(string(a)) {
		return goerr.New("agent ID must be lowercase alphanumeric with underscores or hyphens", goerr.V("id", a))
	}
	return nil
}

// String returns the string representation of AgentID
func (a AgentID) String() string {
	return string(a)
}
