package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/executor"
	"github.com/sqlpilot/sqlpilot/internal/ingest"
	"github.com/sqlpilot/sqlpilot/internal/knowledge"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/internal/schema"
	"github.com/sqlpilot/sqlpilot/internal/server"
	"github.com/sqlpilot/sqlpilot/internal/vector"
	"github.com/sqlpilot/sqlpilot/internal/workflow"
)

const e2eDimensions = 8

func newE2EStore(t *testing.T, indexDir string) *knowledge.Store {
	t.Helper()
	embedder := embedding.NewMockEmbedder(e2eDimensions)
	idx, err := vector.New(e2eDimensions, zap.NewNop())
	if err != nil {
		t.Fatalf("vector.New: %v", err)
	}
	lexical, err := knowledge.NewLexicalIndex()
	if err != nil {
		t.Fatalf("NewLexicalIndex: %v", err)
	}
	cfg := &config.KnowledgeConfig{
		IndexDir:          indexDir,
		OverfetchFactor:   3,
		ComplexityPenalty: 0.1,
	}
	return knowledge.NewStore(embedder, idx, lexical, cfg, zap.NewNop())
}

// TestE2E_RetrievalRanksSeededExamples seeds the corpus through the file
// ingestion path and checks that every retrieval case ranks its target
// example first, with and without table filtering, before and after a
// persistence roundtrip.
func TestE2E_RetrievalRanksSeededExamples(t *testing.T) {
	dir := t.TempDir()
	seedDir := dir + "/seeds"
	corpus := BuildCorpus()

	if _, err := WriteSeedFiles(seedDir, corpus.Examples, 6); err != nil {
		t.Fatalf("write seed files: %v", err)
	}

	store := newE2EStore(t, dir)
	ctx := context.Background()
	inserted, err := ingest.SeedFromDir(ctx, store, seedDir, zap.NewNop())
	if err != nil {
		t.Fatalf("seed from dir: %v", err)
	}
	if inserted != len(corpus.Examples) {
		t.Fatalf("seeded %d examples, want %d", inserted, len(corpus.Examples))
	}

	runRetrievalCases := func(t *testing.T, store *knowledge.Store) {
		for _, tc := range corpus.Cases {
			t.Run(tc.Description, func(t *testing.T) {
				results, err := store.Retrieve(ctx, models.RetrievalQuery{
					Text:           tc.Query,
					RelevantTables: tc.Tables,
					K:              3,
				})
				if err != nil {
					t.Fatalf("retrieve: %v", err)
				}
				if len(results) == 0 {
					t.Fatal("no results")
				}
				if got := results[0].Example.ID; got != tc.ExpectedID {
					t.Errorf("top result = %s, want %s", got, tc.ExpectedID)
				}
				if results[0].Score < 0.999 {
					t.Errorf("identity retrieval score = %f, want ~1.0", results[0].Score)
				}
			})
		}
	}

	runRetrievalCases(t, store)

	hits, _, err := store.SearchKeyword("Berlin", 5)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	found := false
	for _, h := range hits {
		if strings.Contains(h.SQL, "Berlin") {
			found = true
		}
	}
	if !found {
		t.Errorf("keyword search for Berlin missed the seeded example, got %d hits", len(hits))
	}

	// Seeding persisted; a fresh store over the same directory must
	// reload every example and rank identically.
	reloaded := newE2EStore(t, dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Count() != store.Count() {
		t.Fatalf("reloaded %d examples, want %d", reloaded.Count(), store.Count())
	}
	runRetrievalCases(t, reloaded)
}

// scriptedChatServer returns an OpenAI-compatible completion server that
// replays replies in order. Calls past the script fail the test.
func scriptedChatServer(t *testing.T, replies []string) *httptest.Server {
	t.Helper()
	i := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if i >= len(replies) {
			t.Errorf("chat completion call %d beyond script", i+1)
			http.Error(w, "script exhausted", http.StatusInternalServerError)
			return
		}
		reply := replies[i]
		i++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, mustJSON(reply))
	}))
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// TestE2E_QueryWorkflowOverHTTP drives one text-to-SQL request through
// the HTTP API with every collaborator real except the model and the
// sandbox database: the model is a scripted completion server, the
// database is sqlmock. A successful execution must also flow back into
// the example store.
func TestE2E_QueryWorkflowOverHTTP(t *testing.T) {
	dir := t.TempDir()
	store := newE2EStore(t, dir)
	ctx := context.Background()

	corpus := BuildCorpus()
	if _, err := store.Add(ctx, corpus.Examples); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	seeded := store.Count()

	generatedSQL := "SELECT name, city FROM customers WHERE city = 'Berlin'"
	chat := scriptedChatServer(t, []string{
		`["customers"]`,
		"```sql\n" + generatedSQL + "\n```",
	})
	defer chat.Close()

	provider, err := llm.NewOpenAIProvider(&config.LLMConfig{
		BaseURL: chat.URL,
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("customers").AddRow("orders"))
	mock.ExpectQuery(`PRAGMA table_info("customers")`).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "name", "TEXT", 0, nil, 0).
			AddRow(2, "city", "TEXT", 0, nil, 0))
	mock.ExpectQuery(`PRAGMA table_info("orders")`).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "customer_id", "INTEGER", 0, nil, 0))
	mock.ExpectQuery(generatedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"name", "city"}).
			AddRow("Ada", "Berlin").
			AddRow("Grace", "Berlin"))

	introspector := schema.NewIntrospector(db, "sqlite3")
	exec := executor.New(db, &config.SandboxConfig{MaxRows: 100}, zap.NewNop())
	recorder := knowledge.NewFeedbackRecorder(store, zap.NewNop())
	engine := workflow.NewEngine(provider, store, introspector, exec, recorder,
		&config.WorkflowConfig{MaxRetries: 3}, zap.NewNop())

	srv := server.NewServer(engine, store, &config.ServerConfig{}, zap.NewNop())
	api := httptest.NewServer(srv.Router())
	defer api.Close()

	body, _ := json.Marshal(server.QueryRequest{Query: "show me all customers from Berlin"})
	resp, err := http.Post(api.URL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST query: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out server.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Intent != string(workflow.IntentTextToSQL) {
		t.Errorf("intent = %s, want %s", out.Intent, workflow.IntentTextToSQL)
	}
	if out.State != string(workflow.StateDone) {
		t.Errorf("state = %s, want %s", out.State, workflow.StateDone)
	}
	if out.GeneratedSQL != generatedSQL {
		t.Errorf("generated SQL = %q, want %q", out.GeneratedSQL, generatedSQL)
	}
	if out.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", out.RetryCount)
	}
	if !strings.Contains(out.Response, "Ada") || !strings.Contains(out.Response, "Grace") {
		t.Errorf("rendered response missing rows: %q", out.Response)
	}

	// Success feedback lands in the store.
	if got := store.Count(); got != seeded+1 {
		t.Errorf("store count after success = %d, want %d", got, seeded+1)
	}
	fed, err := store.Retrieve(ctx, models.RetrievalQuery{Text: "show me all customers from Berlin", K: 1})
	if err != nil {
		t.Fatalf("retrieve feedback example: %v", err)
	}
	if len(fed) == 0 || fed[0].Example.SQL != generatedSQL {
		t.Errorf("feedback example not retrievable, got %+v", fed)
	}

	// Status reflects the grown store.
	statusResp, err := http.Get(api.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer statusResp.Body.Close()
	var status struct {
		Examples      int    `json:"examples"`
		VectorBackend string `json:"vector_backend"`
	}
	if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Examples != seeded+1 {
		t.Errorf("status examples = %d, want %d", status.Examples, seeded+1)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}

// TestE2E_RepairLoopRecovers exercises the execute-fail-repair path end
// to end: the first generated statement errors, the second succeeds, and
// the response reports one retry.
func TestE2E_RepairLoopRecovers(t *testing.T) {
	dir := t.TempDir()
	store := newE2EStore(t, dir)
	ctx := context.Background()
	seeded := store.Count()

	badSQL := "SELECT nmae FROM customers"
	goodSQL := "SELECT name FROM customers"
	chat := scriptedChatServer(t, []string{
		badSQL,  // first generation
		goodSQL, // repair pass
	})
	defer chat.Close()

	provider, err := llm.NewOpenAIProvider(&config.LLMConfig{BaseURL: chat.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("customers"))
	mock.ExpectQuery(`PRAGMA table_info("customers")`).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "name", "TEXT", 0, nil, 0))
	mock.ExpectQuery(badSQL).
		WillReturnError(fmt.Errorf("no such column: nmae"))
	mock.ExpectQuery(goodSQL).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ada"))

	introspector := schema.NewIntrospector(db, "sqlite3")
	exec := executor.New(db, &config.SandboxConfig{MaxRows: 100}, zap.NewNop())
	recorder := knowledge.NewFeedbackRecorder(store, zap.NewNop())
	engine := workflow.NewEngine(provider, store, introspector, exec, recorder,
		&config.WorkflowConfig{MaxRetries: 3}, zap.NewNop())

	st, err := engine.Run(ctx, "list customer names", 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.CurrentState != workflow.StateDone {
		t.Fatalf("state = %s, want done (error: %s)", st.CurrentState, st.Error)
	}
	if st.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", st.RetryCount)
	}
	if st.GeneratedSQL != goodSQL {
		t.Errorf("generated SQL = %q, want %q", st.GeneratedSQL, goodSQL)
	}
	if got := store.Count(); got != seeded+1 {
		t.Errorf("store count after repair success = %d, want %d", got, seeded+1)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}
