package observable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSet(t *testing.T) {
	store := New(5)
	assert.Equal(t, 5, store.Get())

	store.Set(10)
	assert.Equal(t, 10, store.Get())
}

func TestStore_SubscribeReceivesCurrentValue(t *testing.T) {
	store := New("initial")

	var got []string
	store.Subscribe(func(v string) {
		got = append(got, v)
	})

	assert.Equal(t, []string{"initial"}, got)
}

func TestStore_SubscribersNotifiedOnSet(t *testing.T) {
	store := New(0)

	var got []int
	store.Subscribe(func(v int) {
		got = append(got, v)
	})

	store.Set(1)
	store.Set(2)

	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestStore_Update(t *testing.T) {
	store := New([]string{"a"})

	store.Update(func(cur []string) []string {
		return append(cur, "b")
	})

	assert.Equal(t, []string{"a", "b"}, store.Get())
}

func TestStore_Unsubscribe(t *testing.T) {
	store := New(0)

	var got []int
	unsubscribe := store.Subscribe(func(v int) {
		got = append(got, v)
	})

	store.Set(1)
	unsubscribe()
	store.Set(2)

	assert.Equal(t, []int{0, 1}, got)

	// Unsubscribing twice is harmless.
	unsubscribe()
	store.Set(3)
	assert.Equal(t, []int{0, 1}, got)
}

func TestStore_SubscribeOrderedWithConcurrentSet(t *testing.T) {
	store := New(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 500; i++ {
			store.Set(i)
		}
	}()

	var mu sync.Mutex
	var got []int
	unsubscribe := store.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	<-done
	unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1],
			"subscriber saw value %d after %d", got[i], got[i-1])
	}
}

func TestStore_MultipleSubscribers(t *testing.T) {
	store := New("x")

	count := 0
	store.Subscribe(func(string) { count++ })
	store.Subscribe(func(string) { count++ })

	store.Set("y")
	assert.Equal(t, 4, count)
}
