package scheduler

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic housekeeping: expired export files and orphaned
// frame extraction directories are removed on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	exportDir string
	tempDir   string
	retention time.Duration
}

// New creates a housekeeping scheduler. Exports older than retention and
// leftover frame directories are swept hourly.
func New(exportDir, tempDir string, retention time.Duration) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		exportDir: exportDir,
		tempDir:   tempDir,
		retention: retention,
	}
}

// Start registers the sweep job and begins the cron loop. The first sweep
// runs shortly after startup to clear anything left by a previous crash.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	go func() {
		time.Sleep(10 * time.Second)
		s.sweep()
	}()
	log.Printf("[scheduler] retention sweeper started (hourly, retention %s)", s.retention)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] scheduler stopped")
}

func (s *Scheduler) sweep() {
	cutoff := time.Now().Add(-s.retention)
	removed := s.sweepExports(cutoff)
	removed += s.sweepFrameDirs(cutoff)
	if removed > 0 {
		log.Printf("[scheduler] sweep removed %d expired entries", removed)
	}
}

func (s *Scheduler) sweepExports(cutoff time.Time) int {
	entries, err := os.ReadDir(s.exportDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[scheduler] error reading export dir: %v", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.exportDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("[scheduler] error removing export %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed
}

// sweepFrameDirs removes frame extraction directories that survived a crash.
// Live analyses clean up after themselves, so anything older than the cutoff
// is orphaned.
func (s *Scheduler) sweepFrameDirs(cutoff time.Time) int {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[scheduler] error reading temp dir: %v", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "frames-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("[scheduler] error removing frame dir %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed
}
