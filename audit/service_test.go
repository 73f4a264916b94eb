package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Asuura666/game-habits/model"
	"github.com/Asuura666/game-habits/testutil"
)

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zaptest.NewLogger(t))

	userID := int64(2)
	svc.Log(Entry{
		TraceID:    "trace-123",
		UserID:     &userID,
		Action:     ActionCompletion,
		Request:    map[string]interface{}{"kind": "habit", "id": 4},
		Response:   map[string]int64{"xp": 22},
		IP:         "127.0.0.1",
		DurationMs: 42,
	})

	// Stop flushes remaining entries
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, int64(2), *logs[0].UserID)
	assert.Equal(t, ActionCompletion, logs[0].Action)
	assert.JSONEq(t, `{"xp":22}`, string(logs[0].Response))
	assert.Equal(t, 42, logs[0].DurationMs)
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zaptest.NewLogger(t))

	for i := 0; i < 150; i++ {
		svc.Log(Entry{Action: ActionCombat})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(150), count)
}

func TestLog_TimerFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zaptest.NewLogger(t))
	defer svc.Stop(context.Background())

	svc.Log(Entry{Action: ActionReplenish})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.AuditLog{}).Count(&count)
		return count == 1
	}, 5*time.Second, 100*time.Millisecond)
}

func TestLog_NilFieldsAndDefaultTrace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zaptest.NewLogger(t))
	svc.Log(Entry{Action: ActionReplenish})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	db.Find(&logs)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].UserID)
	assert.Equal(t, "-", logs[0].TraceID)
}

func TestStop_Idempotent(t *testing.T) {
	svc := New(testutil.SetupTestDB(t), nil)
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}

func TestLog_FloodDoesNotBlock(t *testing.T) {
	svc := New(testutil.SetupTestDB(t), zaptest.NewLogger(t))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3000; i++ {
			svc.Log(Entry{Action: "flood"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Log blocked")
	}
	svc.Stop(context.Background())
}
