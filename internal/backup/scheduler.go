package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"storefront/internal/config"
	"storefront/internal/logging"
)

// Scheduler takes automatic backups on a cron schedule and keeps the newest few.
type Scheduler struct {
	svc    *Service
	dir    string
	prefix string
	keep   int

	cron *cron.Cron
	once sync.Once
}

// NewScheduler returns nil, nil when cfg has no schedule.
func NewScheduler(svc *Service, cfg config.BackupConfig) (*Scheduler, error) {
	if strings.TrimSpace(cfg.Schedule) == "" {
		return nil, nil
	}
	s := &Scheduler{
		svc:    svc,
		dir:    cfg.Dir,
		prefix: cfg.FilePrefix,
		keep:   cfg.Keep,
		cron:   cron.New(cron.WithParser(config.CronParser)),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("backup schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Get(logging.CategoryBackup).Infow("backup scheduler started", "dir", s.dir, "keep", s.keep)
}

// Stop halts the schedule and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		<-s.cron.Stop().Done()
	})
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryBackup).Errorw("scheduled backup panicked", "panic", r)
		}
	}()
	if _, err := s.RunOnce(); err != nil {
		logging.Get(logging.CategoryBackup).Errorw("scheduled backup failed", "error", err)
	}
}

// RunOnce writes one backup and prunes old ones.
func (s *Scheduler) RunOnce() (string, error) {
	path, err := s.svc.ExportFile(s.dir)
	if err != nil {
		return "", err
	}
	removed, err := Prune(s.dir, s.prefix, s.keep)
	if err != nil {
		return path, err
	}
	if len(removed) > 0 {
		logging.Get(logging.CategoryBackup).Debugw("old backups pruned", "removed", removed)
	}
	return path, nil
}

// Prune deletes all but the newest keep backups in dir. keep <= 0 keeps everything.
func Prune(dir, prefix string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	if prefix == "" {
		prefix = "Storefront"
	}
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_Backup_*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) <= keep {
		return nil, nil
	}
	// the date stamp sorts lexically
	sort.Strings(matches)
	var removed []string
	for _, p := range matches[:len(matches)-keep] {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}
