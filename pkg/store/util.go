package store

// ChunkRange walks [0, total) in chunks of chunkSize and calls fn with each
// half-open [start, end) range. A chunkSize of 0 or less means one chunk.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}
