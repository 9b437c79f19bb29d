package dag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/classkit/internal/classerr"
)

func TestNew(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	assert.NotNil(t, m.nodes)
	assert.Zero(t, m.Len())
}

func TestDeclare(t *testing.T) {
	m := New()

	m.Declare("a", "b", "c")
	m.Declare("a", "c", "d") // Test idempotency of existing edges
	assert.Equal(t, []string{"b", "c", "d"}, m.Dependencies("a"))
	assert.Equal(t, 4, m.Len(), "referenced names become nodes")
	assert.True(t, m.Has("d"))
	assert.Empty(t, m.Dependencies("d"))
	assert.Nil(t, m.Dependencies("zzz"))

	m.Reset()
	assert.Zero(t, m.Len())
}

func TestCycle(t *testing.T) {
	testCases := []struct {
		name  string
		decls map[string][]string
		from  string
		want  []string
	}{
		{
			name:  "no cycle",
			decls: map[string][]string{"A": {"B"}, "B": {"C"}},
			from:  "A",
			want:  nil,
		},
		{
			name:  "direct cycle",
			decls: map[string][]string{"A": {"B"}, "B": {"A"}},
			from:  "A",
			want:  []string{"A", "B", "A"},
		},
		{
			name:  "transitive cycle",
			decls: map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"A"}},
			from:  "A",
			want:  []string{"A", "B", "C", "A"},
		},
		{
			name:  "self dependency",
			decls: map[string][]string{"A": {"A"}},
			from:  "A",
			want:  []string{"A", "A"},
		},
		{
			name:  "cycle elsewhere is not reported for from",
			decls: map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"B"}},
			from:  "A",
			want:  nil,
		},
		{
			name:  "diamond with back edge",
			decls: map[string][]string{"A": {"B", "C"}, "B": {"D"}, "C": {"D"}, "D": {"A"}},
			from:  "A",
			want:  []string{"A", "B", "D", "A"},
		},
		{
			name:  "unknown name",
			decls: map[string][]string{"A": {"B"}},
			from:  "Z",
			want:  nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			for _, name := range []string{"A", "B", "C", "D"} {
				if deps, ok := tc.decls[name]; ok {
					m.Declare(name, deps...)
				}
			}
			if diff := cmp.Diff(tc.want, m.Cycle(tc.from)); diff != "" {
				t.Errorf("Cycle(%q) mismatch (-want +got):\n%s", tc.from, diff)
			}
		})
	}
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty map has no cycles", func(t *testing.T) {
		assert.NoError(t, New().DetectCycles())
	})

	t.Run("acyclic map", func(t *testing.T) {
		m := New()
		m.Declare("a", "b", "c")
		m.Declare("b", "c")
		assert.NoError(t, m.DetectCycles())
	})

	t.Run("reports the cycle path", func(t *testing.T) {
		m := New()
		m.Declare("a", "b")
		m.Declare("b", "c")
		m.Declare("c", "b")

		err := m.DetectCycles()
		var cycleErr *classerr.CyclicDependencyError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"b", "c", "b"}, cycleErr.Path)
		assert.Equal(t, "circular dependency detected: b -> c -> b", err.Error())
	})
}
