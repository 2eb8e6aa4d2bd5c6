package heap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteInbox_TakeAllReturnsLIFOOrder(t *testing.T) {
	var box RemoteInbox
	a := &UnusedBlock{addr: 1}
	b := &UnusedBlock{addr: 2}
	c := &UnusedBlock{addr: 3}

	box.Push(a)
	box.Push(b)
	box.Push(c)

	got := box.TakeAll()
	var order []uintptr
	for n := got; n != nil; n = n.next {
		order = append(order, n.addr)
	}
	assert.Equal(t, []uintptr{3, 2, 1}, order)
}

func TestRemoteInbox_TakeAllOnEmptyIsNoop(t *testing.T) {
	var box RemoteInbox
	assert.Nil(t, box.TakeAll())
	assert.Nil(t, box.TakeAll())
}

func TestRemoteInbox_ConcurrentPushesAllSurvive(t *testing.T) {
	var box RemoteInbox
	const n = 500

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			box.Push(&UnusedBlock{addr: uintptr(i)})
		}(i)
	}
	wg.Wait()

	count := 0
	for node := box.TakeAll(); node != nil; node = node.next {
		count++
	}
	assert.Equal(t, n, count)
}
