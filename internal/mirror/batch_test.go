package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/chatvault/internal/telegram"
)

func msgs(n int) []telegram.Message {
	out := make([]telegram.Message, n)
	for i := range out {
		out[i] = telegram.Message{ID: i + 1}
	}
	return out
}

func TestPartition_CoversAllInOrder(t *testing.T) {
	records := msgs(45)
	batches := partition(records, 20)

	require.Len(t, batches, 3) // ceil(45/20)
	assert.Len(t, batches[0], 20)
	assert.Len(t, batches[1], 20)
	assert.Len(t, batches[2], 5)

	var seen []int
	for _, b := range batches {
		for _, m := range b {
			seen = append(seen, m.ID)
		}
	}
	require.Len(t, seen, 45)
	for i, id := range seen {
		assert.Equal(t, i+1, id, "order must be preserved")
	}
}

func TestPartition_ExactMultiple(t *testing.T) {
	batches := partition(msgs(40), 20)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 20)
	assert.Len(t, batches[1], 20)
}

func TestPartition_SingleShortBatch(t *testing.T) {
	batches := partition(msgs(3), 20)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
}

func TestPartition_Empty(t *testing.T) {
	assert.Nil(t, partition(nil, 20))
	assert.Nil(t, partition(msgs(5), 0))
}
