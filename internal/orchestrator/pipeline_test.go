package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream2media/internal/download"
	"stream2media/internal/history"
	"stream2media/internal/media"
)

type memLedger struct {
	entries []history.Entry
}

func (l *memLedger) Record(_ context.Context, e history.Entry) error {
	l.entries = append(l.entries, e)
	return nil
}

func newPipeline(t *testing.T, f *fakeProvider) (*Pipeline, afero.Fs, *memLedger) {
	t.Helper()
	fs := afero.NewMemMapFs()
	ledger := &memLedger{}
	p := &Pipeline{
		Registry:  registryWith(map[string]*fakeProvider{"p": f}),
		Assembler: &download.Assembler{FS: fs, Dir: "/out"},
		Format:    "ts",
		Ledger:    ledger,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	}
	return p, fs, ledger
}

func TestPipelineFallsBackToNextMirror(t *testing.T) {
	f := &fakeProvider{
		playerErr: map[string]error{"https://m1/ep": errors.New("403")},
		player:    map[string][]string{"https://m2/ep": {"/work/s0.ts", "/work/s1.ts"}},
	}
	p, fs, ledger := newPipeline(t, f)
	require.NoError(t, afero.WriteFile(fs, "/work/s0.ts", []byte("ab"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/s1.ts", []byte("cd"), 0o644))

	ep := media.NewEpisode("g", "Studio", "Серія 1", "https://m1/ep", "p")
	ep.AddURL("https://m2/ep")

	err := p.Convert(context.Background(), "Show", ep)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/out/Show - Серія 1 [Studio].ts")
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	exists, _ := afero.Exists(fs, "/work/s0.ts")
	assert.False(t, exists, "segments are removed after assembly")

	require.Len(t, ledger.entries, 1)
	e := ledger.entries[0]
	assert.Equal(t, history.StatusDone, e.Status)
	assert.Equal(t, "https://m1/ep", e.URL)
	assert.Equal(t, "/out/Show - Серія 1 [Studio].ts", e.OutputPath)
	assert.Equal(t, time.Unix(1700000000, 0), e.ProcessedAt)
}

func TestPipelineNoStream(t *testing.T) {
	p, _, ledger := newPipeline(t, &fakeProvider{})
	ep := media.NewEpisode("g", "Studio", "Серія 1", "https://m1/ep", "p")

	err := p.Convert(context.Background(), "Show", ep)

	assert.True(t, errors.Is(err, ErrNoStream))
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, history.StatusFailed, ledger.entries[0].Status)
	assert.NotEmpty(t, ledger.entries[0].Error)
}

func TestPipelineUnknownProvider(t *testing.T) {
	p, _, ledger := newPipeline(t, &fakeProvider{})
	ep := media.NewEpisode("g", "Studio", "1", "https://x/1", "ghost")

	err := p.Convert(context.Background(), "", ep)

	assert.True(t, errors.Is(err, ErrUnknownProvider))
	assert.Empty(t, ledger.entries)
}

func TestOutputName(t *testing.T) {
	ep := media.Episode{Label: "Серія 3", DubGroupName: "A/B Studio"}

	assert.Equal(t, "Show - Серія 3 [A_B Studio]", OutputName("Show", ep))
	assert.Equal(t, "Серія 3 [A_B Studio]", OutputName("", ep))
}
