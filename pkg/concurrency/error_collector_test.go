package concurrency

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCollector_KeepsFirstErrorPerID(t *testing.T) {
	ec := NewErrorCollector()

	ec.Add("a", errors.New("first"))
	ec.Add("a", errors.New("second"))
	ec.Add("b", nil)

	require.Equal(t, 1, ec.Len())
	err, ok := ec.Get("a")
	require.True(t, ok)
	assert.EqualError(t, err, "first")
	assert.Equal(t, "error processing a: first", ec.Summary())
}

func TestErrorCollector_ConcurrentAdds(t *testing.T) {
	ec := NewErrorCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ec.Add(fmt.Sprintf("id-%d", i%10), fmt.Errorf("failure %d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, ec.Len())
	assert.Len(t, ec.IDs(), 10)
	assert.Contains(t, ec.Summary(), "10 errors occurred")
}

func TestErrorCollector_Empty(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())
	assert.Empty(t, ec.Summary())
}
