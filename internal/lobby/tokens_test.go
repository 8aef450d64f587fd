package lobby

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokensSerializeSameKey(t *testing.T) {
	tk := newTokens[string]()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := tk.Lock("a")
			defer release()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, tk.len())
}
