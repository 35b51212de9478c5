package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/models"
)

const selectorSystemPrompt = `You select which database tables are relevant to a user's question.
Respond with a JSON array of table names, nothing else. Example: ["users", "orders"]
Only include tables from the provided list.`

// SelectRelevantTables asks the model which tables the request touches.
// Any failure, malformed output included, falls back to all table names
// so downstream stages always have a usable set.
func SelectRelevantTables(ctx context.Context, provider llm.Provider, userQuery string, tables []models.Table, logger *zap.Logger) []string {
	all := make([]string, len(tables))
	for i, t := range tables {
		all[i] = t.Name
	}
	if len(all) <= 1 || provider == nil {
		return all
	}

	user := fmt.Sprintf("Tables: %s\n\nQuestion: %s", strings.Join(all, ", "), userQuery)
	content, err := provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: selectorSystemPrompt},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		logger.Warn("table selection failed, using all tables", zap.Error(err))
		return all
	}

	selected, err := parseTableList(content, all)
	if err != nil {
		logger.Warn("table selection unparseable, using all tables", zap.Error(err))
		return all
	}
	return selected
}

// parseTableList decodes a JSON array of names, tolerating a markdown
// fence, and keeps only names present in the known set.
func parseTableList(content string, known []string) ([]string, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var names []string
	if err := json.Unmarshal([]byte(trimmed), &names); err != nil {
		return nil, fmt.Errorf("decode table list: %w", err)
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, n := range known {
		knownSet[n] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := knownSet[n]; ok {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no known tables in selection")
	}
	return out, nil
}
