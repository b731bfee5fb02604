package usecase

import (
	"sync"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

// RecordLocker serializes writes touching the document catalogue. A
// lifecycle operation holds its record's mutex plus a shared hold on the
// shipment; reconciliation takes the shipment exclusively so it cannot
// interleave with a lifecycle write on any of the shipment's records.
type RecordLocker struct {
	mu        sync.Mutex
	shipments map[string]*sync.RWMutex
	records   map[string]*sync.Mutex
}

func NewRecordLocker() *RecordLocker {
	return &RecordLocker{
		shipments: make(map[string]*sync.RWMutex),
		records:   make(map[string]*sync.Mutex),
	}
}

func (l *RecordLocker) shipmentLock(shipmentID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.shipments[shipmentID]
	if !ok {
		lock = &sync.RWMutex{}
		l.shipments[shipmentID] = lock
	}
	return lock
}

func (l *RecordLocker) recordLock(shipmentID string, key domain.DocumentKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := shipmentID + "/" + string(key)
	lock, ok := l.records[id]
	if !ok {
		lock = &sync.Mutex{}
		l.records[id] = lock
	}
	return lock
}

// LockShipment acquires the shipment exclusively. The returned func releases it.
func (l *RecordLocker) LockShipment(shipmentID string) func() {
	lock := l.shipmentLock(shipmentID)
	lock.Lock()
	return lock.Unlock
}

// LockRecord acquires one record for mutation while holding the shipment
// shared, so independent records of the same shipment can move in parallel.
func (l *RecordLocker) LockRecord(shipmentID string, key domain.DocumentKey) func() {
	shipment := l.shipmentLock(shipmentID)
	shipment.RLock()
	record := l.recordLock(shipmentID, key)
	record.Lock()
	return func() {
		record.Unlock()
		shipment.RUnlock()
	}
}
