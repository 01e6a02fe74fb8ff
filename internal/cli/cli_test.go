package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewYAML = `
id: review
nodes:
  - id: start
    kind: start
    next: review
  - id: review
    kind: work_item
    work: Review
    outputs:
      - from: verdict
        to: verdict
    next: end
  - id: withdraw
    kind: boundary_event
    attached_to: review
    event: Withdraw
    cancel_activity: true
    next: withdrawn
  - id: end
    kind: end
  - id: withdrawn
    kind: end
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review.yaml"), []byte(reviewYAML), 0o644))
	cfg := "log_level: warn\ndefinitions:\n  - " + filepath.Join(dir, "review.yaml") + "\nglobals:\n  team: ops\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tendril.yaml"), []byte(cfg), 0o644))
	return dir
}

func bootstrap(t *testing.T) *App {
	t.Helper()
	dir := writeProject(t)
	app, err := Bootstrap(context.Background(), Options{ConfigPath: filepath.Join(dir, "tendril.yaml")})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestBootstrap(t *testing.T) {
	app := bootstrap(t)

	assert.Equal(t, "warn", app.Config.LogLevel)
	assert.Equal(t, []string{"review"}, app.Session.Definitions())
}

func TestBootstrap_FlagsOverrideConfig(t *testing.T) {
	dir := writeProject(t)
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte(strings.Replace(reviewYAML, "id: review\n", "id: other\n", 1)), 0o644))

	app, err := Bootstrap(context.Background(), Options{
		ConfigPath:  filepath.Join(dir, "tendril.yaml"),
		LogLevel:    "debug",
		Definitions: []string{other},
	})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "debug", app.Config.LogLevel)
	assert.Equal(t, []string{"other"}, app.Session.Definitions())
}

func TestBootstrap_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Bootstrap(context.Background(), Options{ConfigPath: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("log_level: info\n"), 0o644))
	_, err = Bootstrap(context.Background(), Options{ConfigPath: empty})
	assert.ErrorIs(t, err, ErrNoDefinitions)

	_, err = Bootstrap(context.Background(), Options{ConfigPath: empty, LogLevel: "loud"})
	assert.Error(t, err)
}

func TestLoadDefinitions_FallsBackToConfig(t *testing.T) {
	dir := writeProject(t)
	cfg, err := config.Load(filepath.Join(dir, "tendril.yaml"))
	require.NoError(t, err)

	defs, err := LoadDefinitions(Options{}, cfg)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "review", defs[0].ID)
}

func TestConsole_WorkItem(t *testing.T) {
	app := bootstrap(t)
	var out bytes.Buffer
	c := &Console{
		Session: app.Session,
		In:      strings.NewReader("start review author=ana\nwork 1 1 verdict=true\nquit\nlist\n"),
		Out:     &out,
	}

	require.NoError(t, c.Run(context.Background()))

	pi, err := app.Session.Instance(1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessCompleted, pi.State())
	for name, want := range map[string]any{"verdict": true, "author": "ana", "team": "ops"} {
		got, ok := pi.Variable(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	text := out.String()
	assert.Contains(t, text, "work item 1 Review")
	assert.Contains(t, text, "process 1 (review) completed")
	// Nothing after quit runs.
	assert.NotContains(t, text, "1\treview")
}

func TestConsole_Signal(t *testing.T) {
	app := bootstrap(t)
	c := &Console{Session: app.Session, In: strings.NewReader(""), Out: &bytes.Buffer{}}
	ctx := context.Background()

	require.NoError(t, c.Exec(ctx, "start review"))
	require.NoError(t, c.Exec(ctx, "start review"))
	require.NoError(t, c.Exec(ctx, "signal 1 Withdraw"))

	pi, err := app.Session.Instance(1)
	require.NoError(t, err)
	assert.True(t, pi.IsNodeCompleted("withdrawn"))

	require.NoError(t, c.Exec(ctx, "broadcast Withdraw"))
	pi, err = app.Session.Instance(2)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessCompleted, pi.State())
}

func TestConsole_JSONErrors(t *testing.T) {
	app := bootstrap(t)
	var out bytes.Buffer
	c := &Console{
		Session: app.Session,
		In:      strings.NewReader("bogus\nshow 9\nstart\n"),
		Out:     &out,
		JSON:    true,
	}

	require.NoError(t, c.Run(context.Background()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Contains(t, line, `"error"`)
	}
}

func TestConsole_Abort(t *testing.T) {
	app := bootstrap(t)
	var out bytes.Buffer
	c := &Console{Session: app.Session, Out: &out, JSON: true}
	ctx := context.Background()

	require.NoError(t, c.Exec(ctx, "start review"))
	out.Reset()
	require.NoError(t, c.Exec(ctx, "abort 1"))
	assert.Contains(t, out.String(), `"state":"aborted"`)

	assert.Error(t, c.Exec(ctx, "fire 99"))
	assert.Error(t, c.Exec(ctx, "complete 1"))
}

func TestParseAssignments(t *testing.T) {
	vars, err := parseAssignments([]string{"ok=true", "n=3", "name=ana", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true, "n": 3, "name": "ana", "empty": ""}, vars)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
}
