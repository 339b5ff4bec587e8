package semreg

import (
	"sync"
	"testing"

	"github.com/aretw0/verbgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ReplaceIsAtomic(t *testing.T) {
	reg, err := NewRegistry(Policy{Allow: []string{"a.b"}})
	require.NoError(t, err)

	pinned := reg.Snapshot()
	require.NoError(t, reg.Replace(Policy{Allow: []string{"c.d"}}))

	// The pinned snapshot is unaffected by the swap.
	assert.True(t, pinned.Evaluate([]domain.FQN{"a.b"}).Permit())
	// The next invocation sees the new policy.
	assert.False(t, reg.Snapshot().Evaluate([]domain.FQN{"a.b"}).Permit())
	assert.True(t, reg.Snapshot().Evaluate([]domain.FQN{"c.d"}).Permit())
}

func TestRegistry_ReplaceKeepsOldOnError(t *testing.T) {
	reg, err := NewRegistry(Policy{Allow: []string{"a.b"}})
	require.NoError(t, err)
	before := reg.Snapshot()

	assert.Error(t, reg.Replace(Policy{Allow: []string{"???"}}))
	assert.Same(t, before, reg.Snapshot())
}

func TestRegistry_Recheck(t *testing.T) {
	reg, err := NewRegistry(Policy{Allow: []string{"a.b", "c.d"}})
	require.NoError(t, err)
	pinned := reg.Snapshot()

	result, ev := reg.Recheck(pinned, []domain.FQN{"a.b"})
	assert.Equal(t, RecheckStillAllowed, result)
	assert.True(t, ev.Permit())

	require.NoError(t, reg.Replace(Policy{Allow: []string{"a.b"}}))
	result, ev = reg.Recheck(pinned, []domain.FQN{"a.b"})
	assert.Equal(t, RecheckDrifted, result)
	assert.True(t, ev.Permit())

	result, ev = reg.Recheck(pinned, []domain.FQN{"c.d"})
	assert.Equal(t, RecheckDenied, result)
	assert.Equal(t, []domain.FQN{"c.d"}, ev.Denied)
}

func TestRegistry_Recheck_RuleEditedUnderSameID(t *testing.T) {
	allow := []string{"report.*"}
	reg, err := NewRegistry(Policy{Allow: allow, Rules: []Rule{{ID: "r1", Expression: "false"}}})
	require.NoError(t, err)
	pinned := reg.Snapshot()

	require.NoError(t, reg.Replace(Policy{Allow: allow, Rules: []Rule{{ID: "r1", Expression: "verb == 'report.send.v2'"}}}))
	result, ev := reg.Recheck(pinned, []domain.FQN{"report.send.v2"})
	assert.Equal(t, RecheckDenied, result)
	assert.Equal(t, []domain.FQN{"report.send.v2"}, ev.Denied)

	result, ev = reg.Recheck(pinned, []domain.FQN{"report.send.v1"})
	assert.Equal(t, RecheckDrifted, result)
	assert.True(t, ev.Permit())
}

func TestRegistry_Recheck_IdenticalReload(t *testing.T) {
	p := Policy{Allow: []string{"a.b"}}
	reg, err := NewRegistry(p)
	require.NoError(t, err)
	pinned := reg.Snapshot()

	require.NoError(t, reg.Replace(p))
	require.NotSame(t, pinned, reg.Snapshot())
	result, ev := reg.Recheck(pinned, []domain.FQN{"a.b"})
	assert.Equal(t, RecheckStillAllowed, result)
	assert.True(t, ev.Permit())
}

func TestRegistry_ConcurrentReplace(t *testing.T) {
	reg, err := NewRegistry(Policy{Allow: []string{"a.b"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.Replace(Policy{Allow: []string{"a.b"}})
		}()
		go func() {
			defer wg.Done()
			assert.True(t, reg.Snapshot().Evaluate([]domain.FQN{"a.b"}).Permit())
		}()
	}
	wg.Wait()
}
