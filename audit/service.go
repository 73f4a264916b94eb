package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/model"
)

// Actions recorded by the engine and the admin endpoints.
const (
	ActionCompletion  = "completion"
	ActionCombat      = "combat"
	ActionReevaluate  = "task_reevaluate"
	ActionEvalFailed  = "task_eval_failed"
	ActionReplenish   = "streak_replenish"
	ActionLogin       = "login"
	ActionBadgeUnlock = "badge_unlock"
)

// Entry holds one audit event to be logged.
type Entry struct {
	TraceID    string
	UserID     *int64
	Action     string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

// Logger is what the engine needs from the audit service.
type Logger interface {
	Log(entry Entry)
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db        *gorm.DB
	ch        chan *model.AuditLog
	stopCh    chan struct{}
	wg        sync.WaitGroup
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:        db,
		ch:        make(chan *model.AuditLog, 1024),
		stopCh:    make(chan struct{}),
		logger:    logger,
		batchSize: 100,
		interval:  2 * time.Second,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write. Entries are dropped when
// the buffer is full.
func (svc *Service) Log(entry Entry) {
	reqJSON, _ := json.Marshal(entry.Request)
	respJSON, _ := json.Marshal(entry.Response)
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		Request:    datatypes.JSON(reqJSON),
		Response:   datatypes.JSON(respJSON),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	if record.TraceID == "" {
		record.TraceID = "-"
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.interval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, svc.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.CreateInBatches(&batch, svc.batchSize).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err), zap.Int("entries", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
