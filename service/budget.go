package service

import "fmt"

// ToolBudgetExceededError is the hard admission failure raised when a run
// tries to invoke a capability past its allowance
type ToolBudgetExceededError struct {
	Tool    string
	Allowed int
}

func (e *ToolBudgetExceededError) Error() string {
	return fmt.Sprintf("tool budget exceeded for %q (allowed %d)", e.Tool, e.Allowed)
}

// ToolBudgetLedger caps how many times each declared capability may be invoked
// within one run. It is admission control: it bounds cost and prevents a run
// from looping indefinitely across retries or agent-directed tool calls.
// Scoped to a single run's execution context, never shared across runs.
type ToolBudgetLedger struct {
	allowed map[string]int
	used    map[string]int
}

// NewToolBudgetLedger builds a ledger from the default allowance table.
// profileTools, when non-nil, restricts the allowed tool set: tools outside
// the profile get an allowance of 0, and tools the profile introduces beyond
// the default table get the default allowance. Confidential runs force the
// web-search allowance to 0 regardless of profile.
func NewToolBudgetLedger(rules *RuleSet, profileTools []string, confidential bool) *ToolBudgetLedger {
	allowed := make(map[string]int, len(rules.ToolAllowances))

	if profileTools == nil {
		for tool, n := range rules.ToolAllowances {
			allowed[tool] = n
		}
	} else {
		for tool := range rules.ToolAllowances {
			allowed[tool] = 0
		}
		for _, tool := range profileTools {
			if n, ok := rules.ToolAllowances[tool]; ok {
				allowed[tool] = n
			} else {
				allowed[tool] = defaultAllowance
			}
		}
	}

	if confidential {
		allowed[ToolWebSearch] = 0
	}

	return &ToolBudgetLedger{
		allowed: allowed,
		used:    make(map[string]int),
	}
}

// Consume records one invocation of a tool, failing hard when the invocation
// would exceed the tool's allowance. The used count is not incremented on
// failure, so used[t] <= allowed[t] always holds.
func (l *ToolBudgetLedger) Consume(tool string) error {
	allowed := l.allowed[tool]
	if l.used[tool]+1 > allowed {
		return &ToolBudgetExceededError{Tool: tool, Allowed: allowed}
	}
	l.used[tool]++
	return nil
}

// Allowed returns the allowance for a tool
func (l *ToolBudgetLedger) Allowed(tool string) int {
	return l.allowed[tool]
}

// Used returns how many invocations a tool has consumed
func (l *ToolBudgetLedger) Used(tool string) int {
	return l.used[tool]
}

// Allowances returns a copy of the allowance table, used in the run fingerprint
func (l *ToolBudgetLedger) Allowances() map[string]int {
	out := make(map[string]int, len(l.allowed))
	for tool, n := range l.allowed {
		out[tool] = n
	}
	return out
}

// DeclaredTools lists the tools with a non-zero allowance, in no particular order
func (l *ToolBudgetLedger) DeclaredTools() []string {
	var tools []string
	for tool, n := range l.allowed {
		if n > 0 {
			tools = append(tools, tool)
		}
	}
	return tools
}
