package mirror

import "github.com/chatvault/chatvault/internal/telegram"

// partition splits records into consecutive batches of at most size,
// preserving order. Every record lands in exactly one batch.
func partition(records []telegram.Message, size int) [][]telegram.Message {
	if size <= 0 || len(records) == 0 {
		return nil
	}

	batches := make([][]telegram.Message, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
