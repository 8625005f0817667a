package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistrySeedsPendingSlots(t *testing.T) {
	r := newRegistry(4, 3)
	require.Len(t, r.records, 4)
	for i, rec := range r.records {
		require.Equal(t, WorkerID(i+1), rec.id)
		require.Equal(t, statusPending, rec.status)
		require.Equal(t, 3, cap(rec.crashWindow))
	}
}

func TestRegistryLookup(t *testing.T) {
	r := newRegistry(3, 3)
	require.Same(t, r.records[1], r.lookup(2))
	require.Nil(t, r.lookup(0))
	require.Nil(t, r.lookup(4))
}

func TestRegistryLookupByPID(t *testing.T) {
	r := newRegistry(2, 3)
	r.records[0].pid = 111
	r.records[1].pid = 222

	require.Same(t, r.records[1], r.lookupByPID(222))
	require.Nil(t, r.lookupByPID(999))
	require.Nil(t, r.lookupByPID(0))
}

func TestRegistryCountByStatus(t *testing.T) {
	r := newRegistry(3, 3)
	r.records[0].status = Active
	r.records[1].status = Active
	r.records[2].status = Disabled

	require.Equal(t, 2, r.countByStatus(Active))
	require.Equal(t, 1, r.countByStatus(Disabled))
	require.Equal(t, 0, r.countByStatus(Starting))
}

func TestRegistryAllTerminal(t *testing.T) {
	r := newRegistry(2, 3)
	r.records[0].status = Disabled
	r.records[1].status = Active
	require.False(t, r.allTerminal())

	r.records[1].status = Crashed
	r.records[1].pid = 0
	require.True(t, r.allTerminal())

	r.records[1].status = Respawning
	require.False(t, r.allTerminal())
}
