package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerConsumeWithinAllowance(t *testing.T) {
	rules := DefaultRuleSet()
	ledger := NewToolBudgetLedger(rules, nil, false)

	for i := 0; i < rules.ToolAllowances[ToolVectorSearch]; i++ {
		require.NoError(t, ledger.Consume(ToolVectorSearch))
	}

	assert.Equal(t, rules.ToolAllowances[ToolVectorSearch], ledger.Used(ToolVectorSearch))
}

func TestLedgerConsumeBeyondAllowanceFails(t *testing.T) {
	rules := DefaultRuleSet()
	ledger := NewToolBudgetLedger(rules, nil, false)

	allowed := rules.ToolAllowances[ToolOhadaTopic]
	for i := 0; i < allowed; i++ {
		require.NoError(t, ledger.Consume(ToolOhadaTopic))
	}

	err := ledger.Consume(ToolOhadaTopic)
	require.Error(t, err)

	var budgetErr *ToolBudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, ToolOhadaTopic, budgetErr.Tool)
	assert.Equal(t, allowed, budgetErr.Allowed)

	// The failed call is not counted
	assert.Equal(t, allowed, ledger.Used(ToolOhadaTopic))
}

func TestLedgerUndeclaredToolHasZeroAllowance(t *testing.T) {
	ledger := NewToolBudgetLedger(DefaultRuleSet(), nil, false)

	err := ledger.Consume("shell_exec")
	require.Error(t, err)

	var budgetErr *ToolBudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 0, budgetErr.Allowed)
}

func TestLedgerConfidentialDisablesWebSearch(t *testing.T) {
	ledger := NewToolBudgetLedger(DefaultRuleSet(), nil, true)

	assert.Equal(t, 0, ledger.Allowed(ToolWebSearch))
	require.Error(t, ledger.Consume(ToolWebSearch))

	// Other tools keep their allowances
	assert.NoError(t, ledger.Consume(ToolVectorSearch))
}

func TestLedgerProfileRestrictsToolSet(t *testing.T) {
	rules := DefaultRuleSet()
	ledger := NewToolBudgetLedger(rules, []string{ToolVectorSearch}, false)

	assert.Equal(t, rules.ToolAllowances[ToolVectorSearch], ledger.Allowed(ToolVectorSearch))
	assert.Equal(t, 0, ledger.Allowed(ToolDocSearch))
	assert.Equal(t, 0, ledger.Allowed(ToolWebSearch))
	require.Error(t, ledger.Consume(ToolDocSearch))
}

func TestLedgerProfileIntroducedToolGetsDefaultAllowance(t *testing.T) {
	ledger := NewToolBudgetLedger(DefaultRuleSet(), []string{"citations_export"}, false)

	assert.Equal(t, defaultAllowance, ledger.Allowed("citations_export"))
	assert.NoError(t, ledger.Consume("citations_export"))
	assert.NoError(t, ledger.Consume("citations_export"))
	assert.Error(t, ledger.Consume("citations_export"))
}

func TestLedgerConfidentialOverridesProfile(t *testing.T) {
	ledger := NewToolBudgetLedger(DefaultRuleSet(), []string{ToolWebSearch}, true)

	assert.Equal(t, 0, ledger.Allowed(ToolWebSearch))
}

func TestLedgerDeclaredToolsOmitsZeroAllowances(t *testing.T) {
	ledger := NewToolBudgetLedger(DefaultRuleSet(), []string{ToolVectorSearch, ToolOhadaTopic}, false)

	declared := ledger.DeclaredTools()
	assert.ElementsMatch(t, []string{ToolVectorSearch, ToolOhadaTopic}, declared)
}
