package intern

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntern_CanonicalInstance(t *testing.T) {
	table := NewTable()

	a := table.Intern("UserService")
	b := table.Intern("User" + "Service")

	assert.Equal(t, a, b)
	assert.Equal(t, 1, table.Len())
}

func TestIntern_EmptyString(t *testing.T) {
	table := NewTable()
	assert.Equal(t, "", table.Intern(""))
	assert.Equal(t, 0, table.Len())
}

func TestID_DenseFirstSeenOrder(t *testing.T) {
	table := NewTable()

	assert.Equal(t, uint32(0), table.ID("alpha"))
	assert.Equal(t, uint32(1), table.ID("beta"))
	assert.Equal(t, uint32(0), table.ID("alpha"))
}

func TestIntern_ConcurrentAccess(t *testing.T) {
	table := NewTable()
	names := []string{"one", "two", "three", "four"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				table.Intern(names[j%len(names)])
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(names), table.Len())
}
