package orchestrator

import (
	"sync"
	"time"

	"parcel-sorter/internal/sorting"
)

// ParcelContext accumulates everything known about one parcel between its
// announcement and its chute decision. Field access goes through the store;
// callers never hold a context across calls.
type ParcelContext struct {
	mu           sync.Mutex
	parcelID     string
	cartNumber   string
	barcode      string
	sequence     uint64
	createdAt    time.Time
	lastActivity time.Time
	measurement  *sorting.Measurement
	ocr          *sorting.OCRData
	apiResponse  string
}

// subject builds a matcher subject from the current state.
func (c *ParcelContext) subject() *sorting.Subject {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &sorting.Subject{
		Parcel: sorting.ParcelInfo{
			ParcelID:   c.parcelID,
			CartNumber: c.cartNumber,
			Barcode:    c.barcode,
		},
		Measurement: c.measurement,
		OCR:         c.ocr,
		APIResponse: c.apiResponse,
	}
}

// ContextStore is the concurrent per-parcel context map. The zero value is
// not usable; create one with NewContextStore.
type ContextStore struct {
	contexts sync.Map // parcel id -> *ParcelContext
	clock    sorting.Clock
}

// NewContextStore creates a store using the given clock for activity stamps.
func NewContextStore(clock sorting.Clock) *ContextStore {
	if clock == nil {
		clock = sorting.SystemClock{}
	}
	return &ContextStore{clock: clock}
}

// Create registers a context for a new parcel. It returns false without
// touching the existing context when the parcel id is already known.
func (s *ContextStore) Create(parcelID, cartNumber, barcode string, sequence uint64) bool {
	now := s.clock.Now()
	_, loaded := s.contexts.LoadOrStore(parcelID, &ParcelContext{
		parcelID:     parcelID,
		cartNumber:   cartNumber,
		barcode:      barcode,
		sequence:     sequence,
		createdAt:    now,
		lastActivity: now,
	})
	return !loaded
}

func (s *ContextStore) get(parcelID string) (*ParcelContext, bool) {
	value, ok := s.contexts.Load(parcelID)
	if !ok {
		return nil, false
	}
	return value.(*ParcelContext), true
}

// SetMeasurement attaches the scanner payload to a known parcel and bumps
// its activity stamp. Returns false for unknown parcels.
func (s *ContextStore) SetMeasurement(parcelID string, m *sorting.Measurement) bool {
	pc, ok := s.get(parcelID)
	if !ok {
		return false
	}
	pc.mu.Lock()
	pc.measurement = m
	pc.lastActivity = s.clock.Now()
	pc.mu.Unlock()
	return true
}

// SetOCR attaches label recognition data to a known parcel.
func (s *ContextStore) SetOCR(parcelID string, data *sorting.OCRData) bool {
	pc, ok := s.get(parcelID)
	if !ok {
		return false
	}
	pc.mu.Lock()
	pc.ocr = data
	pc.lastActivity = s.clock.Now()
	pc.mu.Unlock()
	return true
}

// SetAPIResponse attaches a third-party enrichment payload to a known parcel.
func (s *ContextStore) SetAPIResponse(parcelID, response string) bool {
	pc, ok := s.get(parcelID)
	if !ok {
		return false
	}
	pc.mu.Lock()
	pc.apiResponse = response
	pc.lastActivity = s.clock.Now()
	pc.mu.Unlock()
	return true
}

// Delete removes a parcel's context once its decision is final.
func (s *ContextStore) Delete(parcelID string) {
	s.contexts.Delete(parcelID)
}

// Len counts the live contexts. Linear; used by health reporting and tests.
func (s *ContextStore) Len() int {
	count := 0
	s.contexts.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// idleContext is one sweep candidate reported by evictIdle.
type idleContext struct {
	ParcelID string
	IdleFor  time.Duration
}

// evictIdle removes every context whose last activity is older than ttl and
// reports what was removed.
func (s *ContextStore) evictIdle(ttl time.Duration) []idleContext {
	now := s.clock.Now()
	var evicted []idleContext

	s.contexts.Range(func(key, value interface{}) bool {
		pc := value.(*ParcelContext)
		pc.mu.Lock()
		idle := now.Sub(pc.lastActivity)
		pc.mu.Unlock()

		if idle > ttl {
			s.contexts.Delete(key)
			evicted = append(evicted, idleContext{ParcelID: key.(string), IdleFor: idle})
		}
		return true
	})
	return evicted
}
