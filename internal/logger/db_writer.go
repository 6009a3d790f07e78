package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	common_models "coprox/internal/common/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zapcore"
)

type LogEntry struct {
	Level   zapcore.Level
	Logger  string
	Message string
	Caller  string
	Fields  map[string]interface{}
	Time    time.Time
}

// Inserter is the slice of *mongo.Collection the writer needs.
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// DBLogWriter persists log entries from a bounded queue on one goroutine.
type DBLogWriter struct {
	col     Inserter
	logChan chan LogEntry
	appId   string

	closeOnce sync.Once
	done      chan struct{}
}

func NewDBLogWriter(col Inserter, appId string) *DBLogWriter {
	writer := &DBLogWriter{
		col:     col,
		logChan: make(chan LogEntry, 1000),
		appId:   appId,
		done:    make(chan struct{}),
	}
	go writer.processLogs()
	return writer
}

// AddLog never blocks; entries are dropped while the queue is full.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	defer func() {
		// closed during shutdown
		_ = recover()
	}()
	select {
	case w.logChan <- entry:
	default:
		fmt.Fprintln(os.Stderr, "DB log queue full, dropping:", entry.Message)
	}
}

// Close drains the queue.
func (w *DBLogWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.logChan)
	})
	<-w.done
	return nil
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		ts := entry.Time.UTC()
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		message := entry.Message
		if entry.Logger != "" {
			message = entry.Logger + ": " + message
		}
		record := common_models.Log{
			AppId:        w.appId,
			LogLevelId:   mapLevelToInt(entry.Level),
			Message:      message,
			Caller:       entry.Caller,
			Fields:       entry.Fields,
			CreatedOnUtc: ts,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := w.col.InsertOne(ctx, record); err != nil {
			fmt.Fprintln(os.Stderr, "failed to persist log:", err)
		}
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
