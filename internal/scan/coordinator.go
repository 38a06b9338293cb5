package scan

import (
	"errors"
	"os"
	"sync"
	"syscall"

	"github.com/wdirstat/wdirstat/internal/queue"
	"github.com/wdirstat/wdirstat/internal/tree"
)

// State is a scan's lifecycle state (spec.md §4.4:
// "Idle -> Running -> (Suspended <-> Running) -> {Done, Cancelled} -> Idle").
type State int

// Lifecycle states.
const (
	StateIdle State = iota
	StateRunning
	StateSuspended
	StateDone
	StateCancelled
)

// ErrAlreadyRunning is returned by Start when a scan is already in
// progress.
var ErrAlreadyRunning = errors.New("scan: already running")

// Coordinator owns one BlockingQueue and worker pool per volume, driving
// the scan lifecycle described in spec.md §4.4. One Coordinator serves one
// Tree; successive scans reuse it.
type Coordinator struct {
	tr  *tree.Tree
	log Logger

	mu             sync.Mutex
	state          State
	opts           Options
	queues         map[uint64]*queue.BlockingQueue[Task]
	queueGen       int
	visited        *tree.VisitedDirs
	rootItems      []*tree.Item
	refreshTargets []*tree.Item
	onComplete     func(cancelled bool)

	wg sync.WaitGroup
}

// NewCoordinator creates an Idle coordinator over tr.
func NewCoordinator(tr *tree.Tree, log Logger) *Coordinator {
	return &Coordinator{tr: tr, log: log, queues: make(map[uint64]*queue.BlockingQueue[Task])}
}

// State reports the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Start begins scanning roots with the given options, spawning a worker
// pool per volume (spec.md §4.4 start). onComplete, if non-nil, is called
// once after the scan reaches Done or Cancelled. Returns ErrAlreadyRunning
// if a scan is already Running or Suspended.
func (c *Coordinator) Start(roots []string, opts Options, onComplete func(cancelled bool)) error {
	c.mu.Lock()

	if c.state == StateRunning || c.state == StateSuspended {
		c.mu.Unlock()

		return ErrAlreadyRunning
	}

	c.state = StateRunning
	c.opts = opts
	c.onComplete = onComplete
	c.queues = make(map[uint64]*queue.BlockingQueue[Task])
	c.visited = tree.NewVisitedDirs()
	c.queueGen++
	c.rootItems = nil
	c.refreshTargets = nil

	c.mu.Unlock()

	c.tr.NewScan()

	tasks := make([]Task, 0, len(roots))

	for _, path := range roots {
		item, task := c.makeRoot(path)
		c.tr.AddRoot(item)
		c.rootItems = append(c.rootItems, item)

		if task != nil {
			tasks = append(tasks, *task)
		} else {
			c.tr.MarkDone(item)
		}
	}

	c.tr.Root().SetPending(int64(len(c.rootItems)))

	for _, task := range tasks {
		q := c.queueFor(task.Dev, task.HasDev)
		q.Push(task)
	}

	go c.awaitCompletion()

	return nil
}

// makeRoot stats path and builds the item that will represent it: a Drive
// if path is itself a mount point, a Directory otherwise, or an
// error-flagged Unknown item if path cannot be stated at all. Returns a
// nil task when the root could not be opened.
func (c *Coordinator) makeRoot(path string) (*tree.Item, *Task) {
	info, err := os.Stat(path)
	if err != nil {
		c.log.Printf("[debug]: cannot stat root %s: %v\n", path, err)

		item := tree.NewUnknown(0)
		item.SetFlag(tree.FlagError)

		return item, nil
	}

	dev, hasDev := deviceOf(info)

	kind := tree.NewDirectory(path)
	if isMountRoot(path, dev, hasDev) {
		kind = tree.NewDrive(path)
	}

	return kind, &Task{Item: kind, Path: path, Dev: dev, HasDev: hasDev}
}

// Refresh re-scans the subtrees rooted at items: for each one it calls
// tree.Refresh to unlink the existing subtree (subtracting its aggregates
// from ancestors) and replace it with a fresh, empty container of the same
// kind and name, then enqueues a scan task for the replacement onto the
// worker pool for its volume — the coordinator side of "rescan this
// subtree" (spec.md §4.3, §4.4 refresh interplay, §8 scenario 5).
// onComplete, if non-nil, is called once after every task spawned by this
// refresh has settled. Returns ErrAlreadyRunning if a scan is already
// Running or Suspended.
func (c *Coordinator) Refresh(items []*tree.Item, onComplete func(cancelled bool)) error {
	c.mu.Lock()

	if c.state == StateRunning || c.state == StateSuspended {
		c.mu.Unlock()

		return ErrAlreadyRunning
	}

	c.state = StateRunning
	c.onComplete = onComplete
	c.queues = make(map[uint64]*queue.BlockingQueue[Task])
	c.queueGen++

	if c.visited == nil {
		c.visited = tree.NewVisitedDirs()
	}

	c.mu.Unlock()

	tasks := make([]Task, 0, len(items))
	targets := make([]*tree.Item, 0, len(items))

	for _, item := range items {
		path := item.Path("/")
		fresh := c.tr.Refresh(item)

		targets = append(targets, fresh)

		info, err := os.Stat(path)
		if err != nil {
			c.log.Printf("[debug]: cannot stat refresh target %s: %v\n", path, err)
			fresh.SetFlag(tree.FlagError)
			c.tr.MarkDone(fresh)

			continue
		}

		dev, hasDev := deviceOf(info)
		tasks = append(tasks, Task{Item: fresh, Path: path, Dev: dev, HasDev: hasDev})
	}

	c.mu.Lock()
	c.refreshTargets = targets
	c.mu.Unlock()

	for _, task := range tasks {
		q := c.queueFor(task.Dev, task.HasDev)
		q.Push(task)
	}

	go c.awaitCompletion()

	return nil
}

// isMountRoot reports whether path's own device differs from its parent
// directory's device, i.e. path is a filesystem mount point.
func isMountRoot(path string, dev uint64, hasDev bool) bool {
	if !hasDev {
		return false
	}

	parentInfo, err := os.Stat(parentOf(path))
	if err != nil {
		return false
	}

	parentDev, ok := deviceOf(parentInfo)
	if !ok {
		return false
	}

	return parentDev != dev
}

func parentOf(path string) string {
	dir := path

	for len(dir) > 1 && dir[len(dir)-1] == '/' {
		dir = dir[:len(dir)-1]
	}

	idx := -1

	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			idx = i

			break
		}
	}

	if idx <= 0 {
		return "/"
	}

	return dir[:idx]
}

// queueFor returns the queue for dev, creating it (and its worker pool)
// lazily. Roots with no resolvable device share a single fallback queue.
func (c *Coordinator) queueFor(dev uint64, hasDev bool) *queue.BlockingQueue[Task] {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := dev
	if !hasDev {
		key = ^uint64(0)
	}

	if q, ok := c.queues[key]; ok {
		return q
	}

	q := queue.New[Task](c.opts.Workers)
	c.queues[key] = q
	c.queueGen++

	c.spawnWorkersLocked(q)

	return q
}

func (c *Coordinator) spawnWorkersLocked(q *queue.BlockingQueue[Task]) {
	for range c.opts.Workers {
		c.wg.Add(1)

		go func() {
			defer c.wg.Done()

			c.runWorker(q)
		}()
	}
}

func (c *Coordinator) runWorker(q *queue.BlockingQueue[Task]) {
	for {
		task, ok := q.Pop()
		if !ok {
			return
		}

		c.processTask(q, task)
	}
}

// processTask enumerates one directory, installs its children into the
// tree, and either marks it done (no subdirectories) or enqueues follow-up
// tasks for each subdirectory found — spec.md §4.2 steps 2-5.
func (c *Coordinator) processTask(q *queue.BlockingQueue[Task], task Task) {
	result, err := EnumerateDirectory(task, c.opts, c.tr.Hardlinks(), c.visited, c.log)
	if err != nil {
		c.log.Printf("[debug]: enumerate error on %s: %v\n", task.Path, err)
		task.Item.SetFlag(tree.FlagError)
	}

	if !q.WaitIfSuspended() {
		return // cancelled mid-task; Stop's sweep will mark this done-with-partial
	}

	for _, child := range result.Children {
		c.tr.AddChild(task.Item, child)
	}

	task.Item.SetPending(int64(len(result.Subdirs)))

	if len(result.Subdirs) == 0 {
		c.tr.MarkDone(task.Item)

		return
	}

	for _, sub := range result.Subdirs {
		subq := c.queueFor(sub.Dev, sub.HasDev)
		subq.Push(sub)
	}
}

// awaitCompletion blocks until every volume queue reports natural
// completion or any reports cancellation, re-checking for volumes created
// mid-scan (mount-point crossings spawn new queues lazily), then tears
// down the worker pools and transitions the lifecycle state.
func (c *Coordinator) awaitCompletion() {
	cancelled := false

	for {
		c.mu.Lock()
		qs := make([]*queue.BlockingQueue[Task], 0, len(c.queues))
		for _, q := range c.queues {
			qs = append(qs, q)
		}

		gen := c.queueGen
		c.mu.Unlock()

		results := make([]bool, len(qs))

		var wg sync.WaitGroup

		for i, q := range qs {
			wg.Add(1)

			go func(i int, q *queue.BlockingQueue[Task]) {
				defer wg.Done()

				results[i] = q.WaitForCompletionOrCancel()
			}(i, q)
		}

		wg.Wait()

		for _, ok := range results {
			if !ok {
				cancelled = true
			}
		}

		c.mu.Lock()
		grew := c.queueGen != gen
		c.mu.Unlock()

		if cancelled || !grew {
			break
		}
	}

	c.mu.Lock()
	for _, q := range c.queues {
		q.Cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()

	if cancelled {
		for _, item := range c.rootItems {
			tree.MarkDoneWithPartial(item)
		}

		for _, item := range c.refreshTargets {
			tree.MarkDoneWithPartial(item)
		}
	}

	c.mu.Lock()
	if cancelled {
		c.state = StateCancelled
	} else {
		c.state = StateDone
	}

	onComplete := c.onComplete
	c.mu.Unlock()

	if onComplete != nil {
		onComplete(cancelled)
	}
}

// Suspend forwards suspension to every active queue, blocking until all
// workers are observed idle. Idempotent; a no-op unless Running.
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()

		return
	}

	c.state = StateSuspended
	qs := c.snapshotQueuesLocked()
	c.mu.Unlock()

	for _, q := range qs {
		q.Suspend()
	}
}

// Resume un-suspends every active queue. A no-op unless Suspended.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	if c.state != StateSuspended {
		c.mu.Unlock()

		return
	}

	c.state = StateRunning
	qs := c.snapshotQueuesLocked()
	c.mu.Unlock()

	for _, q := range qs {
		q.Resume()
	}
}

// Stop cancels every active queue. The in-flight awaitCompletion goroutine
// observes the cancellation, joins the worker pool, marks the partial tree
// done-with-partial, and transitions to Cancelled (spec.md §4.4 stop).
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.state != StateRunning && c.state != StateSuspended {
		c.mu.Unlock()

		return
	}

	qs := c.snapshotQueuesLocked()
	c.mu.Unlock()

	for _, q := range qs {
		q.Cancel()
	}
}

func (c *Coordinator) snapshotQueuesLocked() []*queue.BlockingQueue[Task] {
	qs := make([]*queue.BlockingQueue[Task], 0, len(c.queues))
	for _, q := range c.queues {
		qs = append(qs, q)
	}

	return qs
}

// Progress reports bytes aggregated so far across every scan root, and the
// sum of filesystem capacities for those roots when FollowMountPoints is
// off (a meaningful upper bound); with FollowMountPoints on, the scan
// could span an unbounded number of filesystems, so range is reported as
// 0, telling the shell to show an indeterminate animation (spec.md §4.4
// progress).
func (c *Coordinator) Progress() (pos, rangeBytes uint64) {
	c.mu.Lock()
	roots := append([]*tree.Item(nil), c.rootItems...)
	usePhysical := c.opts.UsePhysicalSizes
	followMounts := c.opts.FollowMountPoints
	c.mu.Unlock()

	for _, item := range roots {
		snap := item.Snapshot()
		if usePhysical {
			pos += snap.SizePhysical
		} else {
			pos += snap.SizeLogical
		}
	}

	if followMounts {
		return pos, 0
	}

	for _, item := range roots {
		capacity, ok := filesystemCapacity(item.Name())
		if !ok {
			return pos, 0
		}

		rangeBytes += capacity
	}

	return pos, rangeBytes
}

func filesystemCapacity(path string) (uint64, bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, false
	}

	return uint64(stat.Bsize) * stat.Blocks, true //nolint:gosec // Bsize/Blocks are non-negative in practice
}
