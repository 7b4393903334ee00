package ordering

import (
	"errors"
	"strconv"
	"sync"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// ErrInFlight rejects an operation on a title that already has one running.
// Callers treat it as a silent no-op.
var ErrInFlight = errors.New("operation already in flight for this title")

// Gate serializes mutations per (user, title). Acquire never blocks: a busy
// key is refused instead of queued.
type Gate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGate() *Gate {
	return &Gate{busy: make(map[string]struct{})}
}

func GateKey(userID string, kind watched.MediaKind, titleID int64) string {
	return userID + "/" + string(kind) + "/" + strconv.FormatInt(titleID, 10)
}

// Acquire marks key busy. The returned release must be called once the
// operation settles, whether it succeeded or not.
func (g *Gate) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return nil, ErrInFlight
	}
	g.busy[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, nil
}

func (g *Gate) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}
