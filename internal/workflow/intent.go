package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/llm"
)

// keywordConfidence is the fixed confidence reported when the pattern
// fast path decides without a model call.
const keywordConfidence = 0.9

const intentSystemPrompt = `You classify a user's request about a database into one intent.
Intents:
- "text_to_sql": the user wants data answered with a SQL query
- "sql_to_text": the user wants an explanation of SQL they provided
- "debug": the user wants broken SQL fixed
- "chat": anything else
Respond with JSON only: {"intent": "<intent>", "confidence": <0..1>}`

var (
	sqlToTextMarkers = []string{"explain this", "explain the", "what does this", "what does the", "describe this query"}
	debugMarkers     = []string{"fix", "debug", "error", "wrong", "broken", "doesn't work", "not working"}
	dataMarkers      = []string{
		"how many", "count", "list", "show me", "show all", "which", "what is the",
		"average", "total", "sum of", "top ", "most ", "least ", "per ", "group",
	}
)

// classifyIntent runs the deterministic keyword fast path first and falls
// back to the model only when no pattern is conclusive. Malformed model
// output maps to the default intent, never an error.
func classifyIntent(ctx context.Context, provider llm.Provider, query string, defaultIntent Intent, logger *zap.Logger) (Intent, float64) {
	lower := strings.ToLower(query)
	mentionsSQL := strings.Contains(lower, "sql") || strings.Contains(lower, "select ") || strings.Contains(lower, "query")

	for _, m := range sqlToTextMarkers {
		if strings.Contains(lower, m) && mentionsSQL {
			return IntentSQLToText, keywordConfidence
		}
	}
	for _, m := range debugMarkers {
		if strings.Contains(lower, m) && mentionsSQL {
			return IntentDebug, keywordConfidence
		}
	}
	for _, m := range dataMarkers {
		if strings.Contains(lower, m) {
			return IntentTextToSQL, keywordConfidence
		}
	}

	if provider == nil {
		return defaultIntent, 0
	}

	content, err := provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: intentSystemPrompt},
		{Role: llm.RoleUser, Content: query},
	})
	if err != nil {
		logger.Warn("intent classification failed, using default", zap.Error(err))
		return defaultIntent, 0
	}

	intent, confidence, err := parseIntentReply(content)
	if err != nil {
		logger.Warn("intent reply unparseable, using default",
			zap.String("reply", content), zap.Error(err))
		return defaultIntent, 0
	}
	return intent, confidence
}

func parseIntentReply(content string) (Intent, float64, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")

	var reply struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &reply); err != nil {
		return "", 0, fmt.Errorf("decode intent reply: %w", err)
	}

	switch Intent(reply.Intent) {
	case IntentChat, IntentTextToSQL, IntentSQLToText, IntentDebug:
		return Intent(reply.Intent), reply.Confidence, nil
	default:
		return "", 0, fmt.Errorf("unknown intent %q", reply.Intent)
	}
}
