package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/internal/config"
	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
)

const corpusJSONL = `{"id":"ml","content":"machine learning is fun"}
{"id":"py","content":"python programming language"}

{"id":"dl","content":"deep learning uses neural networks for machine learning"}
`

// runRoot executes the root command in a fresh working directory.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return buf.String(), err
}

// workdir switches into an empty directory holding the test corpus.
func workdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.jsonl"), []byte(corpusJSONL), 0o644))
	return dir
}

func decodeSearch(t *testing.T, out string) searchOutput {
	t.Helper()
	var got searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	workdir(t)

	_, err := runRoot(t, "search")

	require.Error(t, err)
}

func TestSearchCmd_BM25JSON(t *testing.T) {
	// Given: a JSONL corpus
	workdir(t)

	// When: searching with bm25 and JSON output
	out, err := runRoot(t, "search", "machine", "learning",
		"--docs", "docs.jsonl", "--strategy", "bm25", "--threshold", "0", "--json")

	// Then: a learning document ranks first and vectors are omitted
	require.NoError(t, err)
	got := decodeSearch(t, out)
	assert.Equal(t, "machine learning", got.Query)
	assert.Equal(t, "bm25", got.Retriever)
	require.NotEmpty(t, got.Results)
	assert.Contains(t, []string{"ml", "dl"}, got.Results[0].Document.ID)
	assert.Equal(t, 1, got.Results[0].Rank)
	for _, r := range got.Results {
		assert.Nil(t, r.Document.Embedding)
	}
}

func TestSearchCmd_TextOutput(t *testing.T) {
	workdir(t)

	out, err := runRoot(t, "search", "python", "--docs", "docs.jsonl", "--strategy", "keyword", "--threshold", "0")

	require.NoError(t, err)
	assert.Contains(t, out, `results for "python" (keyword`)
	assert.Contains(t, out, "py")
	assert.Contains(t, out, "python programming language")
}

func TestSearchCmd_LimitFlag(t *testing.T) {
	workdir(t)

	out, err := runRoot(t, "search", "learning", "--docs", "docs.jsonl",
		"--strategy", "fuzzy", "--threshold", "0", "--limit", "1", "--json")

	require.NoError(t, err)
	assert.Len(t, decodeSearch(t, out).Results, 1)
}

func TestSearchCmd_Backends(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		strategy string
	}{
		{"sqlite file", []string{"--backend", "sqlite", "--db", "docs.db"}, "full_text"},
		{"bleve", []string{"--backend", "bleve"}, "bm25"},
		{"vector", []string{"--backend", "vector"}, "semantic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: the corpus loaded into the backend
			workdir(t)
			args := append([]string{"search", "machine learning", "--docs", "docs.jsonl",
				"--strategy", tt.strategy, "--threshold", "0", "--json"}, tt.args...)

			// When: searching
			out, err := runRoot(t, args...)

			// Then: the strategy answers over the backend
			require.NoError(t, err)
			got := decodeSearch(t, out)
			assert.Equal(t, tt.strategy, got.Retriever)
			assert.NotEmpty(t, got.Results)
		})
	}
}

func TestSearchCmd_SQLiteReusesDatabase(t *testing.T) {
	// Given: a database populated by an earlier search
	workdir(t)
	_, err := runRoot(t, "search", "fun", "--docs", "docs.jsonl",
		"--backend", "sqlite", "--db", "docs.db", "--strategy", "keyword", "--threshold", "0")
	require.NoError(t, err)

	// When: searching it without loading documents again
	out, err := runRoot(t, "search", "python", "--backend", "sqlite", "--db", "docs.db",
		"--strategy", "full_text", "--threshold", "0", "--json")

	// Then: the stored documents are found
	require.NoError(t, err)
	got := decodeSearch(t, out)
	require.NotEmpty(t, got.Results)
	assert.Equal(t, "py", got.Results[0].Document.ID)
}

func TestSearchCmd_SpecFile(t *testing.T) {
	dir := workdir(t)
	spec := `type: ensemble
config:
  fusion_method: rank_fusion
children:
  - type: bm25
  - type: keyword
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tree.yaml"), []byte(spec), 0o644))

	out, err := runRoot(t, "search", "deep learning", "--docs", "docs.jsonl", "--spec", "tree.yaml", "--json")

	require.NoError(t, err)
	got := decodeSearch(t, out)
	assert.Equal(t, "ensemble", got.Retriever)
	require.NotEmpty(t, got.Results)
	assert.Equal(t, "dl", got.Results[0].Document.ID)
}

func TestSearchCmd_ConfigFile(t *testing.T) {
	// Given: a config naming the documents and a hybrid retriever
	dir := workdir(t)
	cfg := `source:
  documents: [docs.jsonl]
search:
  threshold: 0
retriever:
  type: hybrid
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte(cfg), 0o644))

	// When: searching with no source flags
	out, err := runRoot(t, "search", "neural networks", "--json")

	// Then: the configured tree answers
	require.NoError(t, err)
	got := decodeSearch(t, out)
	assert.Equal(t, "hybrid", got.Retriever)
	require.NotEmpty(t, got.Results)
	assert.Equal(t, "dl", got.Results[0].Document.ID)
}

func TestSearchCmd_StrategyFromEnv(t *testing.T) {
	workdir(t)
	t.Setenv(config.EnvStrategy, "bm25")
	t.Setenv(config.EnvThreshold, "0")

	out, err := runRoot(t, "search", "fun", "--docs", "docs.jsonl", "--json")

	require.NoError(t, err)
	assert.Equal(t, "bm25", decodeSearch(t, out).Retriever)
}

func TestSearchCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown strategy", []string{"--docs", "docs.jsonl", "--strategy", "telepathy"}, aerrors.ErrCodeUnknownStrategy},
		{"no documents", []string{"--strategy", "bm25"}, aerrors.ErrCodeSourceFailed},
		{"missing document file", []string{"--docs", "nope.jsonl"}, aerrors.ErrCodeSourceFailed},
		{"bad backend", []string{"--docs", "docs.jsonl", "--backend", "tape"}, aerrors.ErrCodeConfigInvalid},
		{"bad log level", []string{"--docs", "docs.jsonl", "--log-level", "loud"}, aerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workdir(t)

			_, err := runRoot(t, append([]string{"search", "query"}, tt.args...)...)

			require.Error(t, err)
			assert.Equal(t, tt.code, aerrors.GetCode(err))
		})
	}
}

func TestHealthCmd(t *testing.T) {
	workdir(t)

	out, err := runRoot(t, "health", "--docs", "docs.jsonl", "--strategy", "bm25")

	require.NoError(t, err)
	assert.Contains(t, out, "bm25 healthy")
}

func TestHealthCmd_AllJSON(t *testing.T) {
	// Given: the corpus in memory with the static provider
	workdir(t)

	// When: checking every leaf type
	out, err := runRoot(t, "health", "--docs", "docs.jsonl", "--all", "--json")

	// Then: each reports healthy and composites are skipped
	require.NoError(t, err, out)
	var reports []healthReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	kinds := make([]string, 0, len(reports))
	for _, r := range reports {
		assert.True(t, r.Healthy, r.Type)
		kinds = append(kinds, r.Type)
	}
	assert.Contains(t, kinds, "bm25")
	assert.Contains(t, kinds, "sparse")
	assert.NotContains(t, kinds, "ensemble")
}

func TestTypesCmd_JSON(t *testing.T) {
	workdir(t)

	out, err := runRoot(t, "types", "--json")

	require.NoError(t, err)
	var infos []typeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	assert.Contains(t, infos, typeInfo{Type: "bm25"})
	assert.Contains(t, infos, typeInfo{Type: "ensemble", Composite: true})
	assert.Contains(t, infos, typeInfo{Type: "contextual", Composite: true})
}

func TestTypesCmd_Text(t *testing.T) {
	workdir(t)

	out, err := runRoot(t, "types")

	require.NoError(t, err)
	assert.Contains(t, out, "Strategies")
	assert.Contains(t, out, "Composites")
	assert.Contains(t, out, "   regex\n")
}

func TestConfigCmd_InitAndShow(t *testing.T) {
	// Given: an empty working directory
	dir := workdir(t)

	// When: writing the default config
	out, err := runRoot(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+config.DefaultFileName)
	assert.FileExists(t, filepath.Join(dir, config.DefaultFileName))

	// Then: a second init refuses to overwrite and show prints it
	_, err = runRoot(t, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = runRoot(t, "config", "init", "--force")
	assert.NoError(t, err)

	out, err = runRoot(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: memory")
	assert.Contains(t, out, "type: auto")
}

func TestVersionCmd_JSON(t *testing.T) {
	workdir(t)

	out, err := runRoot(t, "version", "--json")

	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	dir := workdir(t)
	cpu := filepath.Join(dir, "cpu.out")
	heap := filepath.Join(dir, "heap.out")

	_, err := runRoot(t, "types", "--profile-cpu", cpu, "--profile-mem", heap)

	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestRootCmd_LogFile(t *testing.T) {
	dir := workdir(t)
	logPath := filepath.Join(dir, "logs", "retrieve.log")

	_, err := runRoot(t, "search", "fun", "--docs", "docs.jsonl", "--strategy", "bm25",
		"--log-level", "debug", "--log-format", "json", "--log-file", logPath)

	require.NoError(t, err)
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"configuration_loaded"`)
	assert.Contains(t, string(content), `"msg":"documents_loaded"`)
}
