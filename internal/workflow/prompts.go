package workflow

import (
	"fmt"
	"strings"
)

const generateSystemPrompt = `You translate natural language questions into a single SQL query.
Use only tables and columns from the provided schema.
Return ONLY SQL. No markdown, no explanation.`

const repairSystemPrompt = `You fix a SQL query that failed to execute.
Use only tables and columns from the provided schema.
Return ONLY the corrected SQL. No markdown, no explanation.`

const explainSystemPrompt = `You explain SQL queries in plain language for a non-technical reader.
Describe what data the query returns and how, in a short paragraph.`

const chatSystemPrompt = `You are a helpful assistant for a SQL analytics tool.
Answer conversationally and briefly. If the user seems to want data,
suggest they phrase it as a question about their tables.`

// buildGeneratePrompt assembles the retrieval-augmented generation
// prompt. Either block may be empty; the skeleton stays well-formed.
func buildGeneratePrompt(userQuery, schemaInfo, examplesBlock string) string {
	var b strings.Builder
	if schemaInfo != "" {
		fmt.Fprintf(&b, "Database schema:\n%s\n", schemaInfo)
	}
	if examplesBlock != "" {
		fmt.Fprintf(&b, "\nSimilar past queries:\n%s\n", examplesBlock)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", userQuery)
	return b.String()
}

// buildRepairPrompt assembles the repair prompt from the failed attempt.
// No retrieval happens here; the prior SQL and error are the context.
func buildRepairPrompt(userQuery, schemaInfo, priorSQL, execError string) string {
	var b strings.Builder
	if schemaInfo != "" {
		fmt.Fprintf(&b, "Database schema:\n%s\n\n", schemaInfo)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", userQuery)
	fmt.Fprintf(&b, "This SQL failed:\n%s\n\n", priorSQL)
	fmt.Fprintf(&b, "Error:\n%s", execError)
	return b.String()
}

func buildExplainPrompt(userQuery, schemaInfo string) string {
	var b strings.Builder
	if schemaInfo != "" {
		fmt.Fprintf(&b, "Database schema:\n%s\n\n", schemaInfo)
	}
	fmt.Fprintf(&b, "%s", userQuery)
	return b.String()
}
