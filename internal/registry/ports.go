package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/ojamals/mcpregd/internal/domain"
	"github.com/ojamals/mcpregd/internal/errors"
)

// PortAllocator tracks leased local ports and hands out unused ones from a
// configured inclusive range. Leases live only in memory: on coordinator
// restart the table is empty and repopulates as backends re-register.
type PortAllocator struct {
	mu     sync.Mutex
	min    int
	max    int
	leases map[int]domain.PortLease
}

// NewPortAllocator creates an allocator over the inclusive range [min, max].
func NewPortAllocator(min, max int) (*PortAllocator, error) {
	if min <= 0 || max > 65535 || min > max {
		return nil, fmt.Errorf("invalid port range [%d, %d]", min, max)
	}

	return &PortAllocator{
		min:    min,
		max:    max,
		leases: make(map[int]domain.PortLease),
	}, nil
}

// Allocate returns the lowest port in the range not present in any active
// lease, so a freed port becomes available again on the very next call.
// Allocation is atomic with respect to concurrent callers: two simultaneous
// calls never return the same port. Fails with ErrPortRangeExhausted when
// every port in range is leased.
func (a *PortAllocator) Allocate(owner string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for port := a.min; port <= a.max; port++ {
		if _, leased := a.leases[port]; leased {
			continue
		}

		a.leases[port] = domain.PortLease{
			Port:        port,
			Owner:       owner,
			AllocatedAt: time.Now().UTC(),
		}
		return port, nil
	}

	return 0, fmt.Errorf("%w: [%d, %d]", errors.ErrPortRangeExhausted, a.min, a.max)
}

// Claim records a lease for a port the backend already listens on. Declared
// ports may fall outside the allocation range. Claiming a port already leased
// to the same owner is a no-op; to another owner it fails with
// ErrPortConflict.
func (a *PortAllocator) Claim(port int, owner string) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", errors.ErrValidation, port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if lease, leased := a.leases[port]; leased {
		if lease.Owner == owner {
			return nil
		}
		return fmt.Errorf("%w: port %d is leased to %s", errors.ErrPortConflict, port, lease.Owner)
	}

	a.leases[port] = domain.PortLease{
		Port:        port,
		Owner:       owner,
		AllocatedAt: time.Now().UTC(),
	}
	return nil
}

// Release frees a lease. Releasing an already-free port is a no-op.
func (a *PortAllocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.leases, port)
}

// Leases returns a copy of all active leases.
func (a *PortAllocator) Leases() []domain.PortLease {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]domain.PortLease, 0, len(a.leases))
	for _, lease := range a.leases {
		out = append(out, lease)
	}
	return out
}
