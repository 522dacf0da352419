// ABOUTME: Shared fixtures for marking tests
// ABOUTME: Builds small heaps with one descriptor per kind and recording collaborators

package marking

import (
	"sync"

	"github.com/prateek/heapmark/heap"
)

// testHeap bundles a heap with one descriptor for every kind
type testHeap struct {
	*heap.Heap
	data, plain, array, code, descriptor, closure, context,
	metadata, bytecode, transitions, weakCell, weakCollection *heap.Descriptor
}

func newTestHeap() *testHeap {
	h := heap.NewHeap(4096)
	def := func(name string, kind heap.Kind, words int, weak []int, codeEntry bool) *heap.Descriptor {
		return h.MustDefine(&heap.Descriptor{
			Name:         name,
			Kind:         kind,
			InstanceSize: heap.Bytes(words) * heap.WordBytes,
			WeakFields:   weak,
			HasCodeEntry: codeEntry,
		})
	}
	return &testHeap{
		Heap:           h,
		data:           def("String", heap.KindData, 3, nil, false),
		plain:          def("Point", heap.KindPlainObject, 4, nil, false),
		array:          def("Array", heap.KindFixedArray, 0, nil, false),
		code:           def("Code", heap.KindCode, 4, nil, false),
		descriptor:     h.MetaDescriptor(),
		closure:        def("Function", heap.KindClosure, 5, []int{2}, true),
		context:        def("Context", heap.KindGlobalContext, 4, []int{1}, false),
		metadata:       def("SharedInfo", heap.KindCompiledMetadata, 4, []int{2}, false),
		bytecode:       def("Bytecode", heap.KindBytecode, 3, nil, false),
		transitions:    def("Transitions", heap.KindTransitionTable, 3, nil, false),
		weakCell:       def("WeakCell", heap.KindWeakCell, 2, nil, false),
		weakCollection: def("WeakMap", heap.KindWeakCollection, 3, nil, false),
	}
}

// grey makes obj grey without pushing it anywhere
func grey(b Bitmap, obj *heap.Object) {
	WhiteToGrey(b, obj)
}

// black makes obj black
func black(b Bitmap, obj *heap.Object) {
	WhiteToGrey(b, obj)
	GreyToBlack(b, obj)
}

// recordingWorklist counts pushes per object and lane
type recordingWorklist struct {
	*Deque
	mu     sync.Mutex
	pushes map[*heap.Object][numLanes]int
}

func newRecordingWorklist() *recordingWorklist {
	return &recordingWorklist{Deque: NewDeque(), pushes: make(map[*heap.Object][numLanes]int)}
}

func (r *recordingWorklist) Push(obj *heap.Object, lane Lane) {
	r.mu.Lock()
	counts := r.pushes[obj]
	counts[lane]++
	r.pushes[obj] = counts
	r.mu.Unlock()
	r.Deque.Push(obj, lane)
}

func (r *recordingWorklist) count(obj *heap.Object, lane Lane) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushes[obj][lane]
}

// countIn returns how many times obj currently sits in lane of d
func countIn(d *Deque, obj *heap.Object, lane Lane) int {
	n := 0
	for _, o := range d.Contents(lane) {
		if o == obj {
			n++
		}
	}
	return n
}

// manualPlatform keeps submitted tasks until the test runs them
type manualPlatform struct {
	mu    sync.Mutex
	tasks []*Task
}

func (p *manualPlatform) CallOnBackgroundThread(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, t)
}

func (p *manualPlatform) runAll() {
	p.mu.Lock()
	tasks := p.tasks
	p.tasks = nil
	p.mu.Unlock()
	for _, t := range tasks {
		t.Run()
	}
}

// claimHookBitmap runs beforeClaim ahead of every Grey to Black transition
type claimHookBitmap struct {
	Bitmap
	beforeClaim func(obj *heap.Object)
}

func (b claimHookBitmap) TryTransition(obj *heap.Object, from, to Color) bool {
	if from == Grey && to == Black && b.beforeClaim != nil {
		b.beforeClaim(obj)
	}
	return b.Bitmap.TryTransition(obj, from, to)
}
