package watch

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Watcher периодически обновляет список диалогов по cron-расписанию
type Watcher struct {
	cron        *cron.Cron
	spec        string
	ctx         context.Context
	cancel      context.CancelFunc
	refreshFunc func(ctx context.Context) error
}

// New создает наблюдатель со спецификацией вида "@every 30s" или "0 * * * *"
func New(spec string) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetRefreshFunction устанавливает функцию обновления списка диалогов
func (w *Watcher) SetRefreshFunction(f func(ctx context.Context) error) {
	w.refreshFunc = f
}

// Start запускает наблюдатель
func (w *Watcher) Start() error {
	if w.refreshFunc == nil {
		log.Println("⚠️ Refresh function not set, directory watcher is idle")
		return nil
	}

	_, err := w.cron.AddFunc(w.spec, func() {
		if err := w.refreshFunc(w.ctx); err != nil {
			log.Printf("❌ Directory refresh failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	w.cron.Start()
	log.Printf("📅 Directory watcher started (%s)", w.spec)
	return nil
}

// Stop останавливает наблюдатель
func (w *Watcher) Stop() {
	if w.cron != nil {
		ctx := w.cron.Stop()
		<-ctx.Done()
	}
	if w.cancel != nil {
		w.cancel()
	}
	log.Println("📅 Directory watcher stopped")
}

// IsRunning проверяет, запущен ли наблюдатель
func (w *Watcher) IsRunning() bool {
	return w.cron != nil && len(w.cron.Entries()) > 0
}
