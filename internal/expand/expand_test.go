package expand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

func parseBody(t *testing.T, body string, mode Mode) *Parsed {
	t.Helper()
	p, err := Parse("_TEST_", "/prim/_TEST_", []byte(body), mode)
	require.NoError(t, err)
	return p
}

func TestParse_Directives(t *testing.T) {
	body := `# reduce one frame
_SUBTRACT_DARK_ method=nearest
_FLAT_FIELD_
_SUBTRACT_DARK_ method=mean title="second pass"
`
	p := parseBody(t, body, ModePrimitive)
	require.Len(t, p.Nodes, 4)

	assert.IsType(t, &Text{}, p.Nodes[0])

	d1, ok := p.Nodes[1].(*Directive)
	require.True(t, ok)
	assert.Equal(t, "_SUBTRACT_DARK_", d1.Child)
	assert.Equal(t, 2, d1.Line)
	assert.Equal(t, 1, d1.Ordinal)
	require.Len(t, d1.Args, 1)
	assert.Equal(t, "nearest", d1.Args[0].Value)

	d2, ok := p.Nodes[2].(*Directive)
	require.True(t, ok)
	assert.Equal(t, "_FLAT_FIELD_", d2.Child)
	assert.Empty(t, d2.Args)

	d3, ok := p.Nodes[3].(*Directive)
	require.True(t, ok)
	assert.Equal(t, 2, d3.Ordinal, "second textual call of the same child")
	assert.Equal(t, "second pass", d3.Args[1].Value)

	assert.Equal(t, []string{"_SUBTRACT_DARK_", "_FLAT_FIELD_"}, p.Children)
}

func TestParse_TaskCalls(t *testing.T) {
	p := parseBody(t, "obeyw kappa stats ndf=${FILE} order=true\n", ModePrimitive)
	require.Len(t, p.Nodes, 1)

	tc, ok := p.Nodes[0].(*TaskCall)
	require.True(t, ok)
	assert.Equal(t, "kappa", tc.Engine)
	assert.Equal(t, "stats", tc.Task)
	assert.Equal(t, "ndf=${FILE} order=true", tc.ArgStr)

	t.Run("Argument String Is Optional", func(t *testing.T) {
		p := parseBody(t, "obeyw kappa resetpars\n", ModePrimitive)
		tc := p.Nodes[0].(*TaskCall)
		assert.Empty(t, tc.ArgStr)
	})

	t.Run("Missing Task Is Fatal", func(t *testing.T) {
		_, err := Parse("_T_", "/p/_T_", []byte("obeyw kappa\n"), ModePrimitive)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
	})
}

func TestParse_StatusCheckpoints(t *testing.T) {
	t.Run("Bare Status Words", func(t *testing.T) {
		p := parseBody(t, "ORAC_STATUS = ok\nORAC_STATUS = bad\n", ModePrimitive)
		s1 := p.Nodes[0].(*StatusCheck)
		s2 := p.Nodes[1].(*StatusCheck)
		assert.Equal(t, OpOK, s1.Op)
		assert.Equal(t, OpBad, s2.Op)
	})

	t.Run("GetPar Into Local", func(t *testing.T) {
		p := parseBody(t, "MEAN = getpar kappa stats mean\n", ModePrimitive)
		s := p.Nodes[0].(*StatusCheck)
		assert.Equal(t, "MEAN", s.Dest)
		assert.Equal(t, OpGetPar, s.Op)
		assert.Equal(t, []string{"kappa", "stats", "mean"}, s.Operands)
	})

	t.Run("SetPar Via Status Binding", func(t *testing.T) {
		p := parseBody(t, `ORAC_STATUS = setpar kappa stats comp "Data Array"`+"\n", ModePrimitive)
		s := p.Nodes[0].(*StatusCheck)
		assert.Equal(t, OpSetPar, s.Op)
		assert.Equal(t, []string{"kappa", "stats", "comp", "Data Array"}, s.Operands)
	})

	t.Run("SetPar Into Local Is Fatal", func(t *testing.T) {
		_, err := Parse("_T_", "/p/_T_", []byte("X = setpar kappa stats comp DATA\n"), ModePrimitive)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
	})

	t.Run("Control", func(t *testing.T) {
		p := parseBody(t, "OLD = control kappa default ${OUTDIR}\n", ModePrimitive)
		s := p.Nodes[0].(*StatusCheck)
		assert.Equal(t, OpControl, s.Op)
		assert.Equal(t, "OLD", s.Dest)
	})

	t.Run("Wrong Operand Count Is Fatal", func(t *testing.T) {
		_, err := Parse("_T_", "/p/_T_", []byte("M = getpar kappa stats\n"), ModePrimitive)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
		assert.Contains(t, err.Error(), "getpar takes 3 operands")
	})

	t.Run("Unrecognized Status Expression Is Fatal", func(t *testing.T) {
		_, err := Parse("_T_", "/p/_T_", []byte("ORAC_STATUS = fine\n"), ModePrimitive)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
	})

	t.Run("Commented Checkpoint Stays A Comment", func(t *testing.T) {
		p := parseBody(t, "# ORAC_STATUS = bad\n", ModePrimitive)
		assert.IsType(t, &Text{}, p.Nodes[0])
	})
}

func TestParse_Assignments(t *testing.T) {
	p := parseBody(t, "OUT = ${FILE}_dk\nMODE = ok\n", ModePrimitive)

	a1, ok := p.Nodes[0].(*Assign)
	require.True(t, ok)
	assert.Equal(t, "OUT", a1.Name)
	assert.Equal(t, "${FILE}_dk", a1.Value)

	// Only the status binding gives bare "ok" its checkpoint meaning.
	a2, ok := p.Nodes[1].(*Assign)
	require.True(t, ok)
	assert.Equal(t, "ok", a2.Value)
}

func TestParse_PodBlocks(t *testing.T) {
	body := `=head1 NAME

_TEST_ - exercises documentation handling

_NOT_A_CALL_ method=ignored

=cut

_REAL_CALL_
`
	p := parseBody(t, body, ModePrimitive)

	assert.Equal(t, []string{"_REAL_CALL_"}, p.Children,
		"directives inside documentation must not be scanned")

	doc := p.Doc()
	assert.Contains(t, doc, "_NOT_A_CALL_")
	assert.Contains(t, doc, "head1 NAME")
	assert.NotContains(t, doc, "=cut")
}

func TestParse_ForeignTables(t *testing.T) {
	body := `# ${_IN_COMMENT_.x} is not scanned
_CHILD_ in=${_SOURCE_A_.file}
obeyw kappa add in1=${_SOURCE_A_.file} in2=${_SOURCE_B_.file}
=pod
${_IN_POD_.x} is not scanned either
=cut
`
	p := parseBody(t, body, ModePrimitive)
	assert.Equal(t, []string{"_SOURCE_A_", "_SOURCE_B_"}, p.Foreign)
}

func TestParse_RecipeMode(t *testing.T) {
	t.Run("Literal Arguments Accepted", func(t *testing.T) {
		p := parseBody(t, "_REDUCE_DARK_ method=mean\n", ModeRecipe)
		require.Len(t, p.Children, 1)
	})

	t.Run("Sigil Values Rejected", func(t *testing.T) {
		_, err := Parse("REDUCE", "/r/REDUCE", []byte("_REDUCE_DARK_ in=${FILE}\n"), ModeRecipe)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
	})

	t.Run("Splats Rejected", func(t *testing.T) {
		_, err := Parse("REDUCE", "/r/REDUCE", []byte("_REDUCE_DARK_ %_OTHER_\n"), ModeRecipe)
		require.Error(t, err)
		assert.True(t, domain.IsFatal(err))
	})
}

func TestExpanded(t *testing.T) {
	body := `_CHILD_ a=1
_CHILD_ a=2
obeyw kappa stats ndf=${FILE}
ORAC_STATUS = ok
OUT = ${FILE}_st
plain prose line
`
	p := parseBody(t, body, ModePrimitive)
	text := strings.Join(p.Expanded(), "\n")

	assert.Contains(t, text, "# _TEST_ expanded from /prim/_TEST_")
	assert.Contains(t, text, "#line 1")
	assert.Contains(t, text, "call _CHILD_ (invocation 1) a=1")
	assert.Contains(t, text, "call _CHILD_ (invocation 2) a=2")
	assert.Contains(t, text, "obeyw kappa stats ndf=${FILE}")
	assert.Contains(t, text, "check-status fail-return detach-on-dead=kappa")
	assert.Contains(t, text, "plain prose line")

	// The plain assignment gets a line marker but no inserted check.
	lines := p.Expanded()
	for i, l := range lines {
		if l == "OUT = ${FILE}_st" {
			require.Greater(t, i, 0)
			assert.Equal(t, "#line 5", lines[i-1])
			if i+1 < len(lines) {
				assert.NotEqual(t, "check-status fail-return", lines[i+1])
			}
		}
	}
}

func TestExpanded_DeclaresLazyFetches(t *testing.T) {
	p := parseBody(t, "OUT = ${_GATHER_.file}\n", ModePrimitive)
	text := strings.Join(p.Expanded(), "\n")
	assert.Contains(t, text, "# fetch-args _GATHER_ (lazy)")
}
