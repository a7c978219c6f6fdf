package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreatesSessionLazily(t *testing.T) {
	store := NewSessionStore()

	assert.True(t, store.Get("s1").IsAbsent())

	sess := store.GetOrCreate("s1")
	require.NotNil(t, sess)
	assert.Equal(t, "s1", sess.ID())
	assert.Equal(t, 1, store.Len())

	// 同じIDは同じセッションを返す
	assert.Same(t, sess, store.GetOrCreate("s1"))
	assert.Equal(t, 1, store.Len())
}

func TestSessionStore_SessionsAreIsolated(t *testing.T) {
	store := NewSessionStore()

	a := store.GetOrCreate("a")
	b := store.GetOrCreate("b")
	a.Append(RoleUser, "hello from a")

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestSession_TurnsAreAppendOnlyAndOrdered(t *testing.T) {
	sess := NewSessionStore().GetOrCreate("s")

	sess.Append(RoleUser, "How many annual leave days?")
	sess.Append(RoleAssistant, "20 days.")
	sess.Append(RoleUser, "What about sick leave?")

	turns := sess.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, "What about sick leave?", turns[2].Content)

	// 返されるスライスはコピーで、変更は履歴に影響しない
	turns[0].Content = "mutated"
	assert.Equal(t, "How many annual leave days?", sess.Turns()[0].Content)
}

func TestSession_RecentReturnsWindow(t *testing.T) {
	sess := NewSessionStore().GetOrCreate("s")
	for i := 0; i < 10; i++ {
		sess.Append(RoleUser, fmt.Sprintf("turn %d", i))
	}

	recent := sess.Recent(4)
	require.Len(t, recent, 4)
	assert.Equal(t, "turn 6", recent[0].Content)
	assert.Equal(t, "turn 9", recent[3].Content)

	// n<=0 は全件
	assert.Len(t, sess.Recent(0), 10)
	assert.Len(t, sess.Recent(-1), 10)
}

func TestSession_ConcurrentAppendsDoNotRace(t *testing.T) {
	sess := NewSessionStore().GetOrCreate("s")

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess.BeginTurn()
			defer sess.EndTurn()
			sess.Append(RoleUser, fmt.Sprintf("question %d", i))
			sess.Append(RoleAssistant, fmt.Sprintf("answer %d", i))
		}(i)
	}
	wg.Wait()

	turns := sess.Turns()
	require.Len(t, turns, workers*2)
	// ターン直列化により user/assistant のペアが崩れない
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, RoleUser, turns[i].Role)
		assert.Equal(t, RoleAssistant, turns[i+1].Role)
	}
}
