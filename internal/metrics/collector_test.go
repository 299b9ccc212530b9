package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpDBQuery, 10*time.Millisecond)
	c.RecordTiming(OpDBQuery, 30*time.Millisecond)

	snap := c.Snapshot()
	if snap.DBQuery == nil {
		t.Fatal("expected db_query snapshot")
	}
	if snap.DBQuery.Count != 2 {
		t.Errorf("expected count 2, got %d", snap.DBQuery.Count)
	}
	if snap.DBQuery.MinTimeMs != 10 {
		t.Errorf("expected min 10ms, got %d", snap.DBQuery.MinTimeMs)
	}
	if snap.DBQuery.MaxTimeMs != 30 {
		t.Errorf("expected max 30ms, got %d", snap.DBQuery.MaxTimeMs)
	}
	if snap.DBQuery.AvgTimeMs != 20 {
		t.Errorf("expected avg 20ms, got %f", snap.DBQuery.AvgTimeMs)
	}
}

func TestRecordExtraction(t *testing.T) {
	c := NewCollector()

	c.RecordExtraction(100*time.Millisecond, 12)
	c.RecordExtraction(200*time.Millisecond, 18)

	snap := c.Snapshot()
	if snap.Extraction == nil {
		t.Fatal("expected extraction snapshot")
	}
	if snap.Extraction.TotalTriples == nil || *snap.Extraction.TotalTriples != 30 {
		t.Errorf("expected 30 total triples, got %v", snap.Extraction.TotalTriples)
	}
	if snap.Extraction.AvgTriples == nil || *snap.Extraction.AvgTriples != 15 {
		t.Errorf("expected avg 15 triples, got %v", snap.Extraction.AvgTriples)
	}
}

func TestSnapshotEmptyOps(t *testing.T) {
	snap := NewCollector().Snapshot()
	if snap.Extraction != nil || snap.Concepts != nil || snap.Dedup != nil {
		t.Error("expected nil snapshots for unrecorded operations")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("negative uptime: %f", snap.UptimeSeconds)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpPublish, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Publish == nil || snap.Publish.Count != 1000 {
		t.Fatalf("expected 1000 records, got %+v", snap.Publish)
	}
}
