// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

const tickResolution = 100 * time.Millisecond

// Task is a scheduled callback. Interval > 0 reschedules it after each run.
type Task struct {
	ID       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*Task)
	task.index = n
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Manager runs scheduled tasks off a single heap. Callbacks run on their
// own goroutines, so a slow one cannot delay the rest.
type Manager struct {
	queue  taskQueue
	mutex  sync.Mutex
	nextID int64
	stop   chan struct{}
}

func NewManager() *Manager {
	m := &Manager{
		queue:  make(taskQueue, 0),
		nextID: 1,
		stop:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// AddTimer schedules callback after delay. A non-zero interval makes it
// repeat. Returns an ID usable with RemoveTimer.
func (m *Manager) AddTimer(delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		ID:       m.nextID,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, task)
	return task.ID
}

func (m *Manager) RemoveTimer(id int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.ID == id {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Stop halts the scheduling loop. Pending tasks never fire.
func (m *Manager) Stop() {
	close(m.stop)
}

func (m *Manager) process() {
	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runDue(time.Now())
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) runDue(now time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		go task.Callback()

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
}
