package images

import "sync"

// queuedBuild represents a build waiting in queue
type queuedBuild struct {
	imageID string
	startFn func()
}

// buildQueue limits the number of concurrent engine builds. Builds beyond
// the limit wait in FIFO order.
type buildQueue struct {
	maxConcurrent int
	active        map[string]bool // imageID -> is building
	pending       []queuedBuild
	mu            sync.Mutex
}

func newBuildQueue(maxConcurrent int) *buildQueue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &buildQueue{
		maxConcurrent: maxConcurrent,
		active:        make(map[string]bool),
		pending:       make([]queuedBuild, 0),
	}
}

// enqueue adds a build and returns its queue position.
// Returns 0 if the build starts immediately, >0 if queued.
func (q *buildQueue) enqueue(imageID string, startFn func()) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) < q.maxConcurrent {
		q.active[imageID] = true
		go startFn()
		return 0
	}

	q.pending = append(q.pending, queuedBuild{imageID: imageID, startFn: startFn})
	return len(q.pending)
}

// markComplete releases a build slot and starts the next queued build.
func (q *buildQueue) markComplete(imageID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, imageID)

	if len(q.pending) > 0 && len(q.active) < q.maxConcurrent {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.active[next.imageID] = true
		go next.startFn()
	}
}

// remove drops a queued build that was cancelled before starting.
// Returns true if the build was waiting in the queue.
func (q *buildQueue) remove(imageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, build := range q.pending {
		if build.imageID == imageID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// position returns the queue position for an image, or nil if it is not
// waiting (either building or finished).
func (q *buildQueue) position(imageID string) *int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active[imageID] {
		return nil
	}

	for i, build := range q.pending {
		if build.imageID == imageID {
			pos := i + 1
			return &pos
		}
	}

	return nil
}

func (q *buildQueue) activeCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (q *buildQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
