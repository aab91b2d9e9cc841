package ai

import (
	"context"
	"fmt"
	"strings"

	"spendwise/internal/core"
	"spendwise/internal/log"

	"github.com/tmc/langchaingo/llms"
)

const summaryPrompt = `You are a personal finance expert. Generate a concise, human-readable summary of the user's spending habits based on the following expenses.

Expenses:
%s
Summary:`

// Summarize writes a short paragraph about the given expenses. Without a
// credential it returns DisabledMessage, and for an empty list
// NoExpensesMessage; neither case calls the model.
func (c *Client) Summarize(ctx context.Context, expenses []core.Expense) (SummaryOutput, error) {
	if !c.Enabled() {
		return SummaryOutput{Summary: DisabledMessage}, nil
	}
	if len(expenses) == 0 {
		return SummaryOutput{Summary: NoExpensesMessage}, nil
	}

	answer, err := c.generate(ctx, fmt.Sprintf(summaryPrompt, FormatExpenseLines(expenses)),
		llms.WithTemperature(0.4), llms.WithMaxTokens(400))
	if err != nil {
		c.logger.WarnContext(ctx, "Summary generation failed",
			log.FieldOperation, log.OpSummarize, log.FieldCount, len(expenses), log.FieldError, err.Error())
		return SummaryOutput{}, err
	}
	return SummaryOutput{Summary: strings.TrimSpace(answer)}, nil
}

// FormatExpenseLines renders one "- YYYY-MM-DD - title (category): $amount"
// line per expense.
func FormatExpenseLines(expenses []core.Expense) string {
	var b strings.Builder
	for _, e := range expenses {
		fmt.Fprintf(&b, "- %s - %s (%s): $%s\n", e.Date.String(), e.Title, e.Category, e.Amount.Decimal())
	}
	return b.String()
}
