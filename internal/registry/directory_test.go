package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ojamals/mcpregd/internal/domain"
	"github.com/ojamals/mcpregd/internal/errors"
)

func testRecord(name string, port int, state domain.ServerState) *domain.ServerRecord {
	return &domain.ServerRecord{
		Name:          name,
		Address:       fmt.Sprintf("127.0.0.1:%d", port),
		Port:          port,
		State:         state,
		LeaseToken:    "lease-" + name,
		RegisteredAt:  time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}
}

func TestDirectory_Upsert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []*domain.ServerRecord
		rec      *domain.ServerRecord
		lease    string
		wantErr  error
	}{
		{
			name: "new record",
			rec:  testRecord("alpha", 9100, domain.StateRegistering),
		},
		{
			name:     "name held by live record without a lease",
			existing: []*domain.ServerRecord{testRecord("alpha", 9100, domain.StateHealthy)},
			rec:      testRecord("alpha", 9101, domain.StateRegistering),
			wantErr:  errors.ErrNameConflict,
		},
		{
			name:     "name held by live record with wrong lease",
			existing: []*domain.ServerRecord{testRecord("alpha", 9100, domain.StateHealthy)},
			rec:      testRecord("alpha", 9101, domain.StateRegistering),
			lease:    "stolen",
			wantErr:  errors.ErrNameConflict,
		},
		{
			name:     "name held by live record with holder lease",
			existing: []*domain.ServerRecord{testRecord("alpha", 9100, domain.StateHealthy)},
			rec: func() *domain.ServerRecord {
				// Replacements carry a freshly minted token of their own.
				r := testRecord("alpha", 9101, domain.StateRegistering)
				r.LeaseToken = "minted-fresh"
				return r
			}(),
			lease: "lease-alpha",
		},
		{
			name:     "name held by expired record",
			existing: []*domain.ServerRecord{testRecord("alpha", 9100, domain.StateExpired)},
			rec:      testRecord("alpha", 9101, domain.StateRegistering),
		},
		{
			name:     "port held by live record",
			existing: []*domain.ServerRecord{testRecord("alpha", 9100, domain.StateHealthy)},
			rec:      testRecord("beta", 9100, domain.StateRegistering),
			wantErr:  errors.ErrPortConflict,
		},
		{
			name:     "port held by expired record",
			existing: []*domain.ServerRecord{testRecord("alpha", 9100, domain.StateExpired)},
			rec:      testRecord("beta", 9100, domain.StateRegistering),
		},
		{
			name:    "empty name",
			rec:     testRecord("  ", 9100, domain.StateRegistering),
			wantErr: errors.ErrValidation,
		},
		{
			name:    "zero port",
			rec:     testRecord("alpha", 0, domain.StateRegistering),
			wantErr: errors.ErrValidation,
		},
		{
			name:    "nil record",
			rec:     nil,
			wantErr: errors.ErrValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := NewDirectory()
			for _, rec := range tc.existing {
				require.NoError(t, d.Upsert(rec, ""))
			}

			err := d.Upsert(tc.rec, tc.lease)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			got, ok := d.Get(tc.rec.Name)
			require.True(t, ok)
			require.Equal(t, tc.rec.Port, got.Port)
		})
	}
}

func TestDirectory_UpsertRejectionLeavesRecordUnchanged(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	original := testRecord("alpha", 9100, domain.StateHealthy)
	require.NoError(t, d.Upsert(original, ""))

	impostor := testRecord("alpha", 9101, domain.StateRegistering)
	require.ErrorIs(t, d.Upsert(impostor, "stolen"), errors.ErrNameConflict)

	got, ok := d.Get("alpha")
	require.True(t, ok)
	require.Equal(t, 9100, got.Port)
	require.Equal(t, domain.StateHealthy, got.State)
	require.Equal(t, original.LeaseToken, got.LeaseToken)
}

func TestDirectory_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	require.NoError(t, d.Upsert(testRecord("alpha", 9100, domain.StateHealthy), ""))

	got, ok := d.Get("alpha")
	require.True(t, ok)
	got.State = domain.StateExpired
	got.Port = 1

	again, ok := d.Get("alpha")
	require.True(t, ok)
	require.Equal(t, domain.StateHealthy, again.State)
	require.Equal(t, 9100, again.Port)
}

func TestDirectory_ListFiltersByState(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	require.NoError(t, d.Upsert(testRecord("alpha", 9100, domain.StateHealthy), ""))
	require.NoError(t, d.Upsert(testRecord("beta", 9101, domain.StateUnhealthy), ""))
	require.NoError(t, d.Upsert(testRecord("gamma", 9102, domain.StateExpired), ""))

	all := d.List()
	require.Len(t, all, 3)
	require.Equal(t, "alpha", all[0].Name) // sorted by name

	healthy := d.List(domain.StateHealthy)
	require.Len(t, healthy, 1)
	require.Equal(t, "alpha", healthy[0].Name)

	visible := d.List(domain.StateHealthy, domain.StateUnhealthy)
	require.Len(t, visible, 2)
	require.Equal(t, "alpha", visible[0].Name)
	require.Equal(t, "beta", visible[1].Name)
}

func TestDirectory_RemoveIf(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	require.NoError(t, d.Upsert(testRecord("alpha", 9100, domain.StateHealthy), ""))

	// Rejection leaves the record in place.
	wantErr := fmt.Errorf("not yours")
	_, err := d.RemoveIf("alpha", func(r *domain.ServerRecord) error {
		require.Equal(t, "lease-alpha", r.LeaseToken)
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	_, ok := d.Get("alpha")
	require.True(t, ok)

	removed, err := d.RemoveIf("alpha", func(*domain.ServerRecord) error { return nil })
	require.NoError(t, err)
	require.Equal(t, "alpha", removed.Name)
	_, ok = d.Get("alpha")
	require.False(t, ok)

	_, err = d.RemoveIf("ghost", func(*domain.ServerRecord) error {
		t.Fatal("fn must not run for an absent record")
		return nil
	})
	require.ErrorIs(t, err, errors.ErrUnknownServer)
}

func TestDirectory_Update(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	require.NoError(t, d.Upsert(testRecord("alpha", 9100, domain.StateHealthy), ""))

	err := d.Update("alpha", func(r *domain.ServerRecord) error {
		r.State = domain.StateUnhealthy
		return nil
	})
	require.NoError(t, err)

	got, ok := d.Get("alpha")
	require.True(t, ok)
	require.Equal(t, domain.StateUnhealthy, got.State)
}

func TestDirectory_UpdateAbsentRecord(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	err := d.Update("ghost", func(r *domain.ServerRecord) error {
		t.Fatal("fn must not run for an absent record")
		return nil
	})
	require.ErrorIs(t, err, errors.ErrUnknownServer)
}

func TestDirectory_UpdateFailureIsNotCommitted(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	require.NoError(t, d.Upsert(testRecord("alpha", 9100, domain.StateHealthy), ""))

	wantErr := fmt.Errorf("boom")
	err := d.Update("alpha", func(r *domain.ServerRecord) error {
		r.State = domain.StateExpired
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	got, ok := d.Get("alpha")
	require.True(t, ok)
	require.Equal(t, domain.StateHealthy, got.State)
}

func TestDirectory_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	d := NewDirectory()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("server-%d", i)
			require.NoError(t, d.Upsert(testRecord(name, 9100+i, domain.StateHealthy), ""))
			require.NoError(t, d.Update(name, func(r *domain.ServerRecord) error {
				r.LastHeartbeat = time.Now().UTC()
				return nil
			}))
			_ = d.List(domain.StateHealthy)
		}(i)
	}
	wg.Wait()

	require.Len(t, d.List(), 32)
}
