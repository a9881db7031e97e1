package comm

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/darray-ml/darray/internal/device"
)

// setKey identifies a communicator set: the provider that built it and
// the sorted device ids. Keying on the provider keeps two backends with
// identical device ids in one process from sharing communicators.
type setKey struct {
	provider Provider
	devices  string
}

// registry caches one Set per provider and device set for the lifetime
// of the process. Creation happens once under the lock; lookups
// afterwards are read-only and safe from any goroutine.
var registry = struct {
	mu   sync.Mutex
	sets map[setKey]*Set
}{sets: make(map[setKey]*Set)}

func deviceKey(devs []device.ID) string {
	var b strings.Builder
	for i, d := range devs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(d)))
	}
	return b.String()
}

// SetFor returns the communicator set for the given devices, creating it
// through p on first use. The device order does not matter; sets are
// keyed by the provider and the sorted device set.
func SetFor(p Provider, devs []device.ID) (*Set, error) {
	sorted := append([]device.ID(nil), devs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	registry.mu.Lock()
	defer registry.mu.Unlock()

	key := setKey{provider: p, devices: deviceKey(sorted)}
	if s, ok := registry.sets[key]; ok {
		return s, nil
	}

	peers, err := p.NewCommunicators(sorted)
	if err != nil {
		return nil, err
	}
	s := &Set{id: uuid.New(), devs: sorted, peers: peers}
	registry.sets[key] = s
	return s, nil
}

// Reset drops every cached set. Intended for process teardown and tests.
func Reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.sets = make(map[setKey]*Set)
}
