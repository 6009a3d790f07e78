package logger

import (
	"context"
	"sync"
	"testing"

	common_models "coprox/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeInserter struct {
	mu   sync.Mutex
	docs []common_models.Log
}

func (f *fakeInserter) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, document.(common_models.Log))
	return &mongo.InsertOneResult{}, nil
}

func TestDBCoreCopiesWarningsAndAbove(t *testing.T) {
	base, observed := observer.New(zapcore.DebugLevel)
	col := &fakeInserter{}
	writer := NewDBLogWriter(col, "coprox-test")

	log := zap.New(NewDBCore(base, writer, zapcore.WarnLevel)).Named("scheduler").With(zap.String("config", "sync"))
	log.Debug("tick")
	log.Info("run started")
	log.Warn("attempt failed", zap.Int("attempt", 2))
	log.Error("run failed")

	require.NoError(t, writer.Close())

	assert.Equal(t, 4, observed.Len())
	require.Len(t, col.docs, 2)

	warn := col.docs[0]
	assert.Equal(t, "coprox-test", warn.AppId)
	assert.Equal(t, 30, warn.LogLevelId)
	assert.Equal(t, "scheduler: attempt failed", warn.Message)
	assert.Equal(t, "sync", warn.Fields["config"])
	assert.EqualValues(t, 2, warn.Fields["attempt"])
	assert.False(t, warn.CreatedOnUtc.IsZero())

	assert.Equal(t, 40, col.docs[1].LogLevelId)
}

func TestDBLogWriterIgnoresLogsAfterClose(t *testing.T) {
	col := &fakeInserter{}
	writer := NewDBLogWriter(col, "coprox-test")
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())

	assert.NotPanics(t, func() {
		writer.AddLog(LogEntry{Level: zapcore.ErrorLevel, Message: "late"})
	})
	assert.Empty(t, col.docs)
}

func TestMapLevelToInt(t *testing.T) {
	assert.Equal(t, 10, mapLevelToInt(zapcore.DebugLevel))
	assert.Equal(t, 20, mapLevelToInt(zapcore.InfoLevel))
	assert.Equal(t, 30, mapLevelToInt(zapcore.WarnLevel))
	assert.Equal(t, 40, mapLevelToInt(zapcore.ErrorLevel))
	assert.Equal(t, 50, mapLevelToInt(zapcore.FatalLevel))
}
