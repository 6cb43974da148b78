package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testItem struct {
	ID   int
	Path string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem](0)
	assert.NotNil(t, q)
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.GetAndEmpty())
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem](0)

	q.Push(testItem{ID: 1, Path: "a.zip"})
	assert.Equal(t, 1, q.Len())

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	assert.Equal(t, 3, q.Len())
	assert.Zero(t, q.Dropped())
}

func TestQueue_Limit(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		push        []int
		wantIDs     []int
		wantDropped int
	}{
		{name: "under limit", limit: 3, push: []int{1, 2}, wantIDs: []int{1, 2}},
		{name: "at limit", limit: 2, push: []int{1, 2}, wantIDs: []int{1, 2}},
		{name: "over limit keeps newest", limit: 2, push: []int{1, 2, 3, 4}, wantIDs: []int{3, 4}, wantDropped: 2},
		{name: "unbounded", limit: 0, push: []int{1, 2, 3}, wantIDs: []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New[testItem](tt.limit)
			for _, id := range tt.push {
				q.Push(testItem{ID: id})
			}

			var ids []int
			for _, item := range q.Snapshot() {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantDropped, q.Dropped())
		})
	}
}

func TestQueue_SnapshotIsCopy(t *testing.T) {
	q := New[testItem](0)
	q.Push(testItem{ID: 1})

	snap := q.Snapshot()
	snap[0].ID = 99

	assert.Equal(t, 1, q.Snapshot()[0].ID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[testItem](0)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	items := q.GetAndEmpty()
	assert.Len(t, items, 3)
	assert.Equal(t, 1, items[0].ID)
	assert.Equal(t, 0, q.Len())

	q.Push(testItem{ID: 4})
	assert.Equal(t, 1, q.Len())
	assert.Len(t, items, 3)
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[testItem](0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(testItem{ID: base*100 + j})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}
