package mindex

// Close releases the memory reservation of the pivot table. Every operation
// after Close returns ErrClosed, including a second Close.
//
// Close must not be called while queries are running.
func (ix *Index[D]) Close() error {
	if ix == nil {
		return nil
	}
	if !ix.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if snap := ix.snap.Load(); snap != nil {
		snap.table.Release()
	}
	return nil
}
