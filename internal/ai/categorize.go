package ai

import (
	"context"
	"fmt"
	"strings"

	"spendwise/internal/core"
	"spendwise/internal/log"

	"github.com/tmc/langchaingo/llms"
)

const categorizePrompt = `You are an AI assistant that categorizes expenses based on their title and description.

Given the following expense title and description, infer the most appropriate category.
Answer with a single short category name and nothing else. Prefer one of: %s.

Title: %s
Description: %s

Category:`

// Categorize asks the model for a category. The answer is cleaned but not
// checked against the default set.
func (c *Client) Categorize(ctx context.Context, in CategorizeInput) (CategorizeOutput, error) {
	if !c.Enabled() {
		return CategorizeOutput{}, ErrNotConfigured
	}

	prompt := fmt.Sprintf(categorizePrompt,
		strings.Join(core.DefaultCategories, ", "),
		strings.TrimSpace(in.Title),
		strings.TrimSpace(in.Description))

	answer, err := c.generate(ctx, prompt, llms.WithTemperature(0), llms.WithMaxTokens(16))
	if err != nil {
		c.logger.WarnContext(ctx, "Category inference failed",
			log.FieldOperation, log.OpCategorize, log.FieldError, err.Error())
		return CategorizeOutput{}, err
	}

	category := cleanCategory(answer)
	if category == "" {
		return CategorizeOutput{}, ErrEmptyCategory
	}
	return CategorizeOutput{Category: category}, nil
}

// cleanCategory keeps the first non-empty line of a completion and strips
// labels, quotes and trailing punctuation. Case is left as the model wrote it.
func cleanCategory(answer string) string {
	var line string
	for _, l := range strings.Split(answer, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if i := strings.Index(strings.ToLower(line), "category:"); i >= 0 {
		line = line[i+len("category:"):]
	}
	line = strings.Trim(line, " \t\"'`*.")
	return strings.Join(strings.Fields(line), " ")
}
