package adam

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

type recorder struct {
	mu   sync.Mutex
	reqs []request
}

func (r *recorder) add(q request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, q)
}

func (r *recorder) all() []request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]request(nil), r.reqs...)
}

// scriptedEngine wires a conn to an in-memory peer that answers each request
// through fn. Returning nil from fn leaves the request unanswered.
func scriptedEngine(t *testing.T, timeout time.Duration, fn func(req request) *response) (*conn, *recorder) {
	t.Helper()
	toEngineR, toEngineW := io.Pipe()
	fromEngineR, fromEngineW := io.Pipe()

	rec := &recorder{}
	go func() {
		dec := json.NewDecoder(toEngineR)
		enc := json.NewEncoder(fromEngineW)
		for {
			var req request
			if err := dec.Decode(&req); err != nil {
				return
			}
			rec.add(req)
			if resp := fn(req); resp != nil {
				resp.ID = req.ID
				if err := enc.Encode(resp); err != nil {
					return
				}
			}
		}
	}()

	c := newConn("kappa_1_1", fromEngineR, toEngineW, timeout, nil)
	t.Cleanup(func() {
		_ = c.Close()
		_ = fromEngineW.Close()
	})
	return c, rec
}

func TestConn_Obeyw(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		c, rec := scriptedEngine(t, time.Second, func(request) *response {
			return &response{}
		})

		err := c.Obeyw(ctx, "stats", domain.Args{"ndf": "raw.sdf"})
		require.NoError(t, err)

		reqs := rec.all()
		require.Len(t, reqs, 1)
		assert.Equal(t, "obeyw", reqs[0].Op)
		assert.Equal(t, "stats", reqs[0].Task)
		assert.Equal(t, map[string]string{"ndf": "raw.sdf"}, reqs[0].Args)
	})

	t.Run("Engine Status Becomes A Task Error", func(t *testing.T) {
		c, _ := scriptedEngine(t, time.Second, func(request) *response {
			return &response{Status: 233, Message: "NDF not found"}
		})

		err := c.Obeyw(ctx, "stats", nil)
		require.Error(t, err)

		var te *domain.TaskError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 233, te.Code)
		assert.Equal(t, domain.StatusFail, domain.StatusOf(err))
		assert.NotErrorIs(t, err, domain.ErrEngineDown)
	})
}

func TestConn_ParameterOps(t *testing.T) {
	ctx := context.Background()
	c, rec := scriptedEngine(t, time.Second, func(req request) *response {
		switch req.Op {
		case "getpar":
			return &response{Value: "42.5"}
		case "control":
			return &response{Value: "/old/cwd"}
		default:
			return &response{}
		}
	})

	t.Run("GetPar Returns The Value", func(t *testing.T) {
		v, err := c.GetPar(ctx, "stats", "mean")
		require.NoError(t, err)
		assert.Equal(t, "42.5", v)
	})

	t.Run("SetPar Carries Param And Value", func(t *testing.T) {
		require.NoError(t, c.SetPar(ctx, "stats", "comp", "VARIANCE"))
		reqs := rec.all()
		last := reqs[len(reqs)-1]
		assert.Equal(t, "setpar", last.Op)
		assert.Equal(t, "comp", last.Param)
		assert.Equal(t, "VARIANCE", last.Value)
	})

	t.Run("Control Reports The Previous Setting", func(t *testing.T) {
		old, err := c.Control(ctx, "default", "/new/cwd")
		require.NoError(t, err)
		assert.Equal(t, "/old/cwd", old)
	})

	t.Run("Ping Succeeds While The Engine Answers", func(t *testing.T) {
		require.NoError(t, c.Ping(ctx))
	})
}

func TestConn_SilentEngineTimesOut(t *testing.T) {
	c, _ := scriptedEngine(t, 50*time.Millisecond, func(request) *response {
		return nil
	})

	err := c.Obeyw(context.Background(), "stats", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEngineDown)
	assert.Contains(t, err.Error(), "no reply within")
}

func TestConn_HangupIsDeath(t *testing.T) {
	toEngineR, toEngineW := io.Pipe()
	fromEngineR, fromEngineW := io.Pipe()
	c := newConn("kappa_1_1", fromEngineR, toEngineW, time.Second, nil)
	t.Cleanup(func() { _ = c.Close() })

	go func() {
		var req request
		_ = json.NewDecoder(toEngineR).Decode(&req)
		_ = fromEngineW.Close()
	}()

	err := c.Obeyw(context.Background(), "stats", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEngineDown)

	// Once the stream has ended every further call fails without waiting.
	start := time.Now()
	assert.ErrorIs(t, c.Ping(context.Background()), domain.ErrEngineDown)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConn_LateReplyIsDiscarded(t *testing.T) {
	var calls int
	c, _ := scriptedEngine(t, 100*time.Millisecond, func(req request) *response {
		calls++
		if calls == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		return &response{Value: req.Op}
	})
	ctx := context.Background()

	err := c.Obeyw(ctx, "slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEngineDown)

	// The late reply to the first request must not satisfy the second.
	v, err := c.GetPar(ctx, "stats", "mean")
	require.NoError(t, err)
	assert.Equal(t, "getpar", v)
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSession(nil, 0)

	assert.Equal(t, Protocol, s.Name())
	assert.Equal(t, DefaultTimeout, s.timeout)

	require.NoError(t, s.Init(ctx))
	first := s.scratch
	require.DirExists(t, first)

	// Init is idempotent: the scratch directory survives a second call.
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, first, s.scratch)

	require.NoError(t, s.Shutdown(ctx))
	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err))
}
