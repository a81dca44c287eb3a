package model

import "sync"

// Store caches the last synchronized event list and summary. It is the only
// owner of TrackRecords; every update replaces the cached state wholesale.
type Store struct {
	mu      sync.RWMutex
	records []TrackRecord
	index   map[string]int
	summary SummaryStats
	version uint64
}

func NewStore() *Store {
	return &Store{index: map[string]int{}}
}

// ReplaceAll swaps the cached record sequence.
func (s *Store) ReplaceAll(records []TrackRecord) {
	recs, idx := cloneIndexed(records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records, s.index = recs, idx
	s.version++
}

// ReplaceSummary swaps the cached summary.
func (s *Store) ReplaceSummary(stats SummaryStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = cloneSummary(stats)
	s.version++
}

// Replace swaps summary and records under one lock so a reader sees either
// the whole previous snapshot or the whole new one.
func (s *Store) Replace(stats SummaryStats, records []TrackRecord) {
	recs, idx := cloneIndexed(records)
	sum := cloneSummary(stats)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = sum
	s.records, s.index = recs, idx
	s.version++
}

// FindByID returns the record whose TrackID matches id.
func (s *Store) FindByID(id string) (TrackRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return TrackRecord{}, false
	}
	return s.records[i], true
}

// Current returns a copy of the cached records in server order.
func (s *Store) Current() []TrackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TrackRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Summary() SummaryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSummary(s.summary)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increments on every replacement; zero means never synchronized.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func cloneIndexed(records []TrackRecord) ([]TrackRecord, map[string]int) {
	out := make([]TrackRecord, len(records))
	copy(out, records)
	idx := make(map[string]int, len(out))
	for i, r := range out {
		// first occurrence wins if the server ever repeats an id
		if _, dup := idx[r.TrackID]; !dup {
			idx[r.TrackID] = i
		}
	}
	return out, idx
}

func cloneSummary(s SummaryStats) SummaryStats {
	s.Geographic = append([]RankedCount(nil), s.Geographic...)
	s.Devices = append([]RankedCount(nil), s.Devices...)
	s.Browsers = append([]RankedCount(nil), s.Browsers...)
	return s
}
