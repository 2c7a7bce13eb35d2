package oracdr_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oracdr "github.com/Starlink/ORAC-DR-sub007"
	"github.com/Starlink/ORAC-DR-sub007/internal/cal"
	"github.com/Starlink/ORAC-DR-sub007/internal/config"
	"github.com/Starlink/ORAC-DR-sub007/internal/monitor"
	"github.com/Starlink/ORAC-DR-sub007/internal/testutil"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// standardTree is a minimal reduction: the recipe runs _A_, which runs _B_
// with an argument, which dispatches one engine task.
func standardTree() map[string]string {
	return map[string]string{
		"recipes/REDUCE_DARK": "_A_\n",
		"primitives/_A_":      "_B_ method=nearest\n",
		"primitives/_B_":      "obeyw kappa stats ndf=${FILE} m=${method}\n",
	}
}

type pipeHarness struct {
	pipe *oracdr.Pipeline
	sess *testutil.FakeSession
	dir  string
}

// newPipeline builds a pipeline over a temporary source tree and a scripted
// protocol session. A "params.ini" entry in files is wired up as the
// recipe-parameter file.
func newPipeline(t *testing.T, files map[string]string, opts ...oracdr.Option) *pipeHarness {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, files)

	sess := &testutil.FakeSession{Proto: "adam"}
	base := []oracdr.Option{
		oracdr.WithSearch(config.Search{}),
		oracdr.WithRecipeDirs(filepath.Join(dir, "recipes")),
		oracdr.WithPrimitiveDirs(filepath.Join(dir, "primitives")),
		oracdr.WithEngineDefs(map[string]domain.EngineDef{
			"kappa": {Name: "kappa", Protocol: "adam", Path: "/star/bin/kappa"},
		}),
		oracdr.WithProtocols(sess),
	}
	if _, ok := files["params.ini"]; ok {
		base = append(base, oracdr.WithParameterFile(filepath.Join(dir, "params.ini")))
	}

	pipe, err := oracdr.New("SCUBA2", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pipe.Close(context.Background()) })
	return &pipeHarness{pipe: pipe, sess: sess, dir: dir}
}

func TestPipeline_ReduceObservation(t *testing.T) {
	t.Run("Dispatches Through The Launched Engine", func(t *testing.T) {
		h := newPipeline(t, standardTree())

		err := h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("raw.sdf"))

		require.NoError(t, err)
		require.Len(t, h.sess.Conns, 1)
		assert.Equal(t, []string{"obeyw stats m=nearest ndf=raw.sdf"}, h.sess.Conns[0].Ops)
	})

	t.Run("Second Run Reuses The Engine And The Cache", func(t *testing.T) {
		h := newPipeline(t, standardTree())

		require.NoError(t, h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("a.sdf")))
		require.NoError(t, h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("b.sdf")))

		require.Len(t, h.sess.Conns, 1, "no relaunch between healthy runs")
		assert.Equal(t, []string{
			"obeyw stats m=nearest ndf=a.sdf",
			"obeyw stats m=nearest ndf=b.sdf",
		}, h.sess.Conns[0].Ops)
	})

	t.Run("Unknown Engine Is Fatal", func(t *testing.T) {
		files := standardTree()
		files["primitives/_B_"] = "obeyw gaia stats ndf=${FILE}\n"
		h := newPipeline(t, files)

		err := h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("raw.sdf"))

		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
		assert.ErrorIs(t, err, domain.ErrUnknownEngine)
	})

	t.Run("Recipe Name Is Required", func(t *testing.T) {
		h := newPipeline(t, standardTree())
		require.Error(t, h.pipe.RunRecipe(context.Background(), "", domain.NewFrame("raw.sdf")))
	})

	t.Run("Canceled Context Is A User Abort", func(t *testing.T) {
		h := newPipeline(t, standardTree())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := h.pipe.RunRecipe(ctx, "REDUCE_DARK", domain.NewFrame("raw.sdf"))

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUserAbort)
	})
}

// TestPipeline_EngineDeath walks the whole failure chain: the engine dies
// mid-run, the task fails, the failure propagates through _B_ and _A_ to the
// recipe, the engine is dropped, and the next run relaunches it under a
// fresh identity.
func TestPipeline_EngineDeath(t *testing.T) {
	h := newPipeline(t, standardTree())
	ctx := context.Background()

	require.NoError(t, h.pipe.RunRecipe(ctx, "REDUCE_DARK", domain.NewFrame("raw.sdf")))
	require.Len(t, h.sess.Conns, 1)

	h.sess.Conns[0].Dead = true
	err := h.pipe.RunRecipe(ctx, "REDUCE_DARK", domain.NewFrame("raw.sdf"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEngineDown)
	assert.Equal(t, domain.StatusDeadEngine, domain.StatusOf(err))
	assert.Contains(t, err.Error(), "kappa")
	assert.True(t, h.sess.Conns[0].Closed, "dropping the engine reaps the connection")

	alive, dead := h.pipe.Verify(ctx)
	assert.Empty(t, alive, "the dead engine was detached, not kept")
	assert.Empty(t, dead)

	require.NoError(t, h.pipe.RunRecipe(ctx, "REDUCE_DARK", domain.NewFrame("raw.sdf")))
	require.Len(t, h.sess.Conns, 2, "next use relaunches")
	assert.NotEqual(t, h.sess.Conns[0].Ident, h.sess.Conns[1].Ident,
		"a relaunch gets a fresh protocol identity")
	assert.Equal(t, []string{"obeyw stats m=nearest ndf=raw.sdf"}, h.sess.Conns[1].Ops)
}

func TestPipeline_Verify(t *testing.T) {
	t.Run("Partition Follows Engine Health", func(t *testing.T) {
		h := newPipeline(t, standardTree())
		ctx := context.Background()

		require.NoError(t, h.pipe.RunRecipe(ctx, "REDUCE_DARK", domain.NewFrame("raw.sdf")))

		alive, dead := h.pipe.Verify(ctx)
		assert.Equal(t, []string{"kappa"}, alive)
		assert.Empty(t, dead)

		h.sess.Conns[0].Dead = true
		alive, dead = h.pipe.Verify(ctx)
		assert.Empty(t, alive)
		assert.Equal(t, []string{"kappa"}, dead)

		assert.Equal(t, []string{"kappa"}, h.pipe.Engines(), "configuration is unaffected")
	})

	t.Run("Launch Brings Every Engine Up Without A Run", func(t *testing.T) {
		h := newPipeline(t, standardTree())
		ctx := context.Background()

		require.NoError(t, h.pipe.Launch(ctx))

		require.Len(t, h.sess.Conns, 1)
		alive, dead := h.pipe.Verify(ctx)
		assert.Equal(t, []string{"kappa"}, alive)
		assert.Empty(t, dead)

		def, ok := h.pipe.EngineDef("kappa")
		require.True(t, ok)
		assert.Equal(t, "adam", def.Protocol)
	})
}

func TestPipeline_RecipeParameters(t *testing.T) {
	withParams := func() map[string]string {
		files := standardTree()
		files["params.ini"] = `[REDUCE_DARK]
_B_.method = median

[REDUCE_DARK:NGC253]
_B_.method = centroid
`
		return files
	}

	t.Run("Parameter File Overrides The Directive Argument", func(t *testing.T) {
		h := newPipeline(t, withParams())

		require.NoError(t, h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("raw.sdf")))

		require.Len(t, h.sess.Conns, 1)
		assert.Equal(t, []string{"obeyw stats m=median ndf=raw.sdf"}, h.sess.Conns[0].Ops)
	})

	t.Run("Object Section Wins Over The Generic One", func(t *testing.T) {
		h := newPipeline(t, withParams())

		frame := domain.NewFrame("raw.sdf")
		frame.Hdr["OBJECT"] = "NGC253"
		require.NoError(t, h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", frame))

		require.Len(t, h.sess.Conns, 1)
		assert.Equal(t, []string{"obeyw stats m=centroid ndf=raw.sdf"}, h.sess.Conns[0].Ops)
	})
}

func TestPipeline_CalibrationLookup(t *testing.T) {
	files := standardTree()
	files["primitives/_B_"] = "obeyw kappa sub in=${FILE} dark=${CAL.dark}\n"

	t.Run("Static Source Resolves The Reference", func(t *testing.T) {
		h := newPipeline(t, files,
			oracdr.WithCalibration(cal.NewStatic(map[string]string{"dark": "dark_5.sdf"})))

		require.NoError(t, h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("raw.sdf")))
		require.Len(t, h.sess.Conns, 1)
		assert.Equal(t, []string{"obeyw sub dark=dark_5.sdf in=raw.sdf"}, h.sess.Conns[0].Ops)
	})

	t.Run("Missing Product Is Fatal", func(t *testing.T) {
		h := newPipeline(t, files)

		err := h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("raw.sdf"))

		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
		assert.Contains(t, err.Error(), "calibration")
	})
}

func TestPipeline_EventLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	h := newPipeline(t, standardTree(), oracdr.WithEventLog(logPath))

	require.NoError(t, h.pipe.RunRecipe(context.Background(), "REDUCE_DARK", domain.NewFrame("raw.sdf")))

	// One display-worthy step: the completion of the top-level primitive.
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := nonEmptyLines(string(data))
	require.Len(t, lines, 1)

	rec, err := monitor.ParseLine(lines[0])
	require.NoError(t, err)
	assert.Equal(t, "frame", rec.Class)
	assert.Equal(t, []string{"raw.sdf"}, rec.Files)
	assert.True(t, rec.UseDef)
	assert.Equal(t, "_A_", rec.Extras["step"])
	assert.NotEmpty(t, rec.Extras["runid"])
}

func TestPipeline_Doc(t *testing.T) {
	files := map[string]string{
		"primitives/_CALC_STATS_": `=head1 NAME

_CALC_STATS_ - computes clipped statistics for the current frame.

=cut
obeyw kappa stats ndf=${FILE}
`,
	}
	h := newPipeline(t, files)

	doc, err := h.pipe.Doc("_CALC_STATS_", domain.ModeUnknown)

	require.NoError(t, err)
	assert.Contains(t, doc, "=head1 NAME")
	assert.Contains(t, doc, "computes clipped statistics")
	assert.NotContains(t, doc, "=cut")
}

func TestPipeline_Inspect(t *testing.T) {
	t.Run("Walks The Full Call Graph", func(t *testing.T) {
		h := newPipeline(t, standardTree())

		nodes, err := h.pipe.Inspect("REDUCE_DARK", domain.ModeUnknown)

		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, domain.CallRecipe, nodes[0].Kind)
		assert.Equal(t, "REDUCE_DARK", nodes[0].Name)
		assert.Equal(t, []string{"_A_"}, nodes[0].Children)
		assert.Equal(t, []string{"_B_"}, nodes[1].Children)
		assert.Equal(t, []string{"kappa"}, nodes[2].Engines)
		assert.Empty(t, nodes[2].Children)
	})

	t.Run("Unresolvable Primitive Is Reported, Not Fatal", func(t *testing.T) {
		files := standardTree()
		files["primitives/_A_"] = "_GONE_\n"
		h := newPipeline(t, files)

		nodes, err := h.pipe.Inspect("REDUCE_DARK", domain.ModeUnknown)

		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, "_GONE_", nodes[2].Name)
		assert.True(t, nodes[2].Missing)
	})

	t.Run("Unparseable Source Aborts The Walk", func(t *testing.T) {
		files := standardTree()
		files["primitives/_B_"] = "obeyw kappa\n"
		h := newPipeline(t, files)

		_, err := h.pipe.Inspect("REDUCE_DARK", domain.ModeUnknown)

		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
	})
}

func TestNew_ConfigurationErrors(t *testing.T) {
	t.Run("Unreadable Engine File", func(t *testing.T) {
		_, err := oracdr.New("SCUBA2",
			oracdr.WithSearch(config.Search{}),
			oracdr.WithEngineFile(filepath.Join(t.TempDir(), "missing.yaml")))
		require.Error(t, err)
	})

	t.Run("Unwritable Event Log", func(t *testing.T) {
		_, err := oracdr.New("SCUBA2",
			oracdr.WithSearch(config.Search{}),
			oracdr.WithEventLog(filepath.Join(t.TempDir(), "no", "such", "dir", "events.log")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open event log")
	})
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
