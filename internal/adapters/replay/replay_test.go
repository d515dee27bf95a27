package replay_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gmpsched/internal/adapters/replay"
	"github.com/example/gmpsched/internal/ports/secondary"
)

type stubProvider struct {
	analysis *secondary.Analysis
	err      error
}

func (s stubProvider) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	return s.analysis, s.err
}

func TestProvider_AnalyzeFromFile(t *testing.T) {
	image := []byte("ginseng sample")
	path := filepath.Join(t.TempDir(), "recordings.yaml")
	data := "recordings:\n" +
		"  - sha256: " + replay.Digest(image) + "\n" +
		"    sample: ord-101.jpg\n" +
		"    analysis:\n" +
		"      material_name: Ginseng\n" +
		"      detected_form: root slices\n" +
		"      estimated_moisture: 15.5\n" +
		"      verdict: pass\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	p, err := replay.Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())

	a, err := p.Analyze(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, "Ginseng", a.MaterialName)
	assert.Equal(t, 15.5, a.EstimatedMoisture)
	assert.Equal(t, secondary.VerdictPass, a.Verdict)

	_, err = p.Analyze(context.Background(), []byte("unknown"))
	assert.ErrorIs(t, err, replay.ErrNoRecording)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	p, err := replay.Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
}

func TestLoadRejectsInvalidRecordings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "recordings:\n  - sha256: abc\n    analysis: {material_name: X, verdict: pass}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := replay.Load(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	p := replay.New()
	require.NoError(t, p.Add("ord-102.jpg", []byte("aconite"), secondary.Analysis{
		MaterialName: "Aconite", EstimatedMoisture: 9, Verdict: secondary.VerdictFail, Rationale: "mould",
	}))
	assert.Error(t, p.Add("bad", []byte("x"), secondary.Analysis{MaterialName: "X", EstimatedMoisture: 140, Verdict: "pass"}))

	path := filepath.Join(t.TempDir(), "nested", "recordings.yaml")
	require.NoError(t, p.Save(path))

	reloaded, err := replay.Load(path)
	require.NoError(t, err)
	a, err := reloaded.Analyze(context.Background(), []byte("aconite"))
	require.NoError(t, err)
	assert.Equal(t, secondary.VerdictFail, a.Verdict)
	assert.Equal(t, "mould", a.Rationale)
}

func TestRecorder(t *testing.T) {
	store := replay.New()
	live := stubProvider{analysis: &secondary.Analysis{MaterialName: "Wolfberry", EstimatedMoisture: 13, Verdict: "pass"}}
	rec := replay.NewRecorder(live, store)

	_, err := rec.Analyze(context.Background(), []byte("berries"))
	require.NoError(t, err)
	a, err := store.Analyze(context.Background(), []byte("berries"))
	require.NoError(t, err)
	assert.Equal(t, "Wolfberry", a.MaterialName)

	failing := replay.NewRecorder(stubProvider{err: errors.New("offline")}, store)
	_, err = failing.Analyze(context.Background(), []byte("other"))
	assert.Error(t, err)
	assert.Equal(t, 1, store.Len())
}
