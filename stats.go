package quip

import (
	"sort"
	"sync"
)

// Operation names used as [CallStats] keys.
const (
	OpQuery             = "query"
	OpCheckUser         = "checkUser"
	OpGetCurrentUser    = "getCurrentUser"
	OpGetUser           = "getUser"
	OpGetFolder         = "getFolder"
	OpGetFolders        = "getFolders"
	OpGetThread         = "getThread"
	OpGetThreads        = "getThreads"
	OpGetThreadMessages = "getThreadMessages"
	OpGetBlob           = "getBlob"
	OpGetPDF            = "getPdf"
	OpGetDOCX           = "getDocx"
	OpGetXLSX           = "getXlsx"
	OpExportToPDF       = "exportToPDF"
)

// CallStats counts invocations per operation. The counters are diagnostic
// only; nothing in the client depends on them.
type CallStats struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCallStats() *CallStats {
	return &CallStats{counts: make(map[string]int)}
}

func (s *CallStats) Inc(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[op]++
}

func (s *CallStats) Get(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[op]
}

// Snapshot returns a copy of all counters.
func (s *CallStats) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.counts))
	for op, n := range s.counts {
		out[op] = n
	}

	return out
}

// Operations returns the names of all operations counted so far, sorted.
func (s *CallStats) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]string, 0, len(s.counts))
	for op := range s.counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	return ops
}
