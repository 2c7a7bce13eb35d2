package msg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starlink/ORAC-DR-sub007/internal/engines"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
	"github.com/Starlink/ORAC-DR-sub007/internal/testutil"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

func newHarness(t *testing.T) (*Dispatcher, *engines.Registry, *testutil.FakeSession) {
	t.Helper()
	sess := &testutil.FakeSession{Proto: "adam"}
	protos := &testutil.FakeProtos{Sessions: map[string]*testutil.FakeSession{"adam": sess}}
	defs := map[string]domain.EngineDef{
		"kappa": {Name: "kappa", Protocol: "adam", Class: "kappa_mon"},
	}
	reg := engines.NewRegistry(defs, protos, nil, metrics.New())
	return NewDispatcher(reg, nil, metrics.New()), reg, sess
}

func TestDispatcher_Obeyw(t *testing.T) {
	ctx := context.Background()

	t.Run("Success Routes To The Live Connection", func(t *testing.T) {
		d, _, sess := newHarness(t)

		err := d.Obeyw(ctx, "kappa", "stats", domain.Args{"ndf": "raw.sdf"})
		require.NoError(t, err)

		require.Len(t, sess.Conns, 1)
		assert.Equal(t, []string{"obeyw stats ndf=raw.sdf"}, sess.Conns[0].Ops)
	})

	t.Run("Unknown Engine Is Fatal", func(t *testing.T) {
		d, _, _ := newHarness(t)

		err := d.Obeyw(ctx, "nonesuch", "stats", nil)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
		assert.ErrorIs(t, err, domain.ErrUnknownEngine)
	})

	t.Run("Task Failure Keeps The Engine", func(t *testing.T) {
		d, reg, sess := newHarness(t)

		require.NoError(t, d.Obeyw(ctx, "kappa", "stats", nil))
		sess.Conns[0].ObeywErr = &domain.TaskError{Task: "stats", Code: 233}

		err := d.Obeyw(ctx, "kappa", "stats", domain.Args{"ndf": "bad.sdf"})
		require.Error(t, err)
		assert.Equal(t, domain.StatusFail, domain.StatusOf(err))

		var te *domain.TaskError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "kappa", te.Engine)
		assert.Equal(t, "stats", te.Task)
		assert.Equal(t, "ndf=bad.sdf", te.Args)
		assert.Equal(t, 233, te.Code)

		// Still attached: the next call reuses the same connection.
		sess.Conns[0].ObeywErr = nil
		require.NoError(t, d.Obeyw(ctx, "kappa", "stats", nil))
		assert.Len(t, sess.Conns, 1)
		assert.Contains(t, reg.LiveIdents(), "kappa")
	})

	t.Run("Dead Engine Is Dropped And Relaunched On Next Use", func(t *testing.T) {
		d, reg, sess := newHarness(t)

		require.NoError(t, d.Obeyw(ctx, "kappa", "stats", nil))
		sess.Conns[0].Dead = true

		err := d.Obeyw(ctx, "kappa", "stats", nil)
		require.Error(t, err)
		assert.Equal(t, domain.StatusDeadEngine, domain.StatusOf(err))
		assert.ErrorIs(t, err, domain.ErrEngineDown)
		assert.Empty(t, reg.LiveIdents())
		assert.True(t, sess.Conns[0].Closed)

		// The drop is what makes recovery possible: a fresh launch.
		require.NoError(t, d.Obeyw(ctx, "kappa", "stats", nil))
		require.Len(t, sess.Conns, 2)
		assert.NotEqual(t, sess.Conns[0].Ident, sess.Conns[1].Ident)
	})

	t.Run("Launch Failure Presents As Dead Engine", func(t *testing.T) {
		d, _, sess := newHarness(t)
		sess.LaunchErr = errors.New("fork failed")

		err := d.Obeyw(ctx, "kappa", "stats", nil)
		require.Error(t, err)
		assert.Equal(t, domain.StatusDeadEngine, domain.StatusOf(err))
		assert.False(t, domain.IsFatal(err))
	})
}

func TestDispatcher_ParameterOps(t *testing.T) {
	ctx := context.Background()
	d, _, sess := newHarness(t)

	require.NoError(t, d.Obeyw(ctx, "kappa", "stats", nil))
	conn := sess.Conns[0]
	conn.Params["stats/mean"] = "42.5"

	t.Run("GetPar Returns The Task Parameter", func(t *testing.T) {
		v, err := d.GetPar(ctx, "kappa", "stats", "mean")
		require.NoError(t, err)
		assert.Equal(t, "42.5", v)
	})

	t.Run("SetPar Writes Through", func(t *testing.T) {
		require.NoError(t, d.SetPar(ctx, "kappa", "stats", "comp", "VARIANCE"))
		assert.Contains(t, conn.Ops, "setpar stats comp=VARIANCE")
	})

	t.Run("Control Reaches The Engine", func(t *testing.T) {
		_, err := d.Control(ctx, "kappa", "default", "/tmp/work")
		require.NoError(t, err)
		assert.Contains(t, conn.Ops, "control default /tmp/work")
	})

	t.Run("GetPar On A Dead Engine Detaches It", func(t *testing.T) {
		conn.Dead = true
		_, err := d.GetPar(ctx, "kappa", "stats", "mean")
		require.Error(t, err)
		assert.Equal(t, domain.StatusDeadEngine, domain.StatusOf(err))
	})
}

func TestProtocols(t *testing.T) {
	ctx := context.Background()

	t.Run("Init Happens Once Per Protocol", func(t *testing.T) {
		sess := &testutil.FakeSession{Proto: "adam"}
		p := NewProtocols(nil, sess)

		for i := 0; i < 3; i++ {
			got, err := p.Session(ctx, "adam")
			require.NoError(t, err)
			assert.Same(t, sess, got.(*testutil.FakeSession))
		}
		assert.Equal(t, 1, sess.InitCount)
	})

	t.Run("Unregistered Protocol Errors", func(t *testing.T) {
		p := NewProtocols(nil)
		_, err := p.Session(ctx, "drama")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `protocol "drama" is not registered`)
	})

	t.Run("Shutdown Tears Down Initialized Sessions Only", func(t *testing.T) {
		adam := &testutil.FakeSession{Proto: "adam"}
		mcp := &testutil.FakeSession{Proto: "mcp"}
		p := NewProtocols(nil, adam, mcp)

		_, err := p.Session(ctx, "adam")
		require.NoError(t, err)

		require.NoError(t, p.Shutdown(ctx))
		assert.Equal(t, 1, adam.Shutdowns)
		assert.Zero(t, mcp.Shutdowns)
	})

	t.Run("Names Are Sorted", func(t *testing.T) {
		p := NewProtocols(nil, &testutil.FakeSession{Proto: "mcp"}, &testutil.FakeSession{Proto: "adam"})
		assert.Equal(t, []string{"adam", "mcp"}, p.Names())
	})
}
