package nl2sql

import (
	"fmt"
	"strings"
)

const (
	generationTemperature = 0.1
	synthesisTemperature  = 0.3

	critiqueFallback = "Unable to analyze error. Please review the error message."
	noDataAnswer     = "I couldn't retrieve the data to answer your question."

	synthesisRowLimit = 10
)

func systemPrompt(dialect, schemaContext string) string {
	name := strings.ToUpper(dialect)
	return fmt.Sprintf(`You are an expert %[1]s Data Analyst.

Schema:
%[2]s

Rules:
1. Use ONLY the provided schema.
2. Write valid %[1]s SQL.
3. Return ONLY raw SQL. No markdown.`, name, schemaContext)
}

func critiquePrompt(f Failure) string {
	name := strings.ToUpper(f.Dialect)
	return fmt.Sprintf(`You are a Senior %[1]s Engineer reviewing a Junior's broken code.

User Question: %[2]s
The Broken SQL: %[3]s
The Error Message: %[4]s
The Schema: %[5]s

TASK:
Explain WHY it failed in 1 sentence.
Specifics only.
Focus on %[1]s-specific syntax errors if applicable.
Do not write SQL. Just explain the fix.`, name, f.Question, f.SQL, f.Error, f.Schema)
}

func critiqueFeedback(errMsg, critique string) string {
	return fmt.Sprintf("Your SQL failed.\nError: %s\nCritic's Advice: %s\nFix the SQL.", errMsg, critique)
}

func basicFeedback(errMsg string) string {
	return fmt.Sprintf("That SQL failed with error: %s. Fix it.", errMsg)
}

func synthesisPrompt(question, table string) string {
	return fmt.Sprintf(`The user asked: %q

Here is the query result:
%s
Provide a clear, concise answer to their question based on this data.
Be specific and use numbers from the data.
Keep it under 3 sentences.`, question, table)
}
