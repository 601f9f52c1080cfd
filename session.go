package uigen

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditLogEntry represents a single audited tool operation
type AuditLogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	SessionID    string        `json:"session_id"`
	ToolName     string        `json:"tool_name"`
	Operation    string        `json:"operation"` // "create", "str_replace", "insert", "view", "rename", "delete"
	Path         string        `json:"path"`
	NewPath      string        `json:"new_path,omitempty"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	BytesWritten int64         `json:"bytes_written,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// AuditLogger defines the interface for audit logging
type AuditLogger interface {
	Log(entry AuditLogEntry) error
}

// ZapAuditLogger writes audit entries as structured zap fields
type ZapAuditLogger struct {
	logger *zap.Logger
}

// NewZapAuditLogger returns an audit logger backed by logger. A nil logger
// discards entries.
func NewZapAuditLogger(logger *zap.Logger) *ZapAuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAuditLogger{logger: logger.Named("audit")}
}

// Log writes an audit entry
func (l *ZapAuditLogger) Log(entry AuditLogEntry) error {
	fields := []zap.Field{
		zap.Time("timestamp", entry.Timestamp),
		zap.String("session_id", entry.SessionID),
		zap.String("tool", entry.ToolName),
		zap.String("operation", entry.Operation),
		zap.String("path", entry.Path),
		zap.Bool("success", entry.Success),
		zap.Duration("duration", entry.Duration),
	}
	if entry.NewPath != "" {
		fields = append(fields, zap.String("new_path", entry.NewPath))
	}
	if entry.BytesWritten > 0 {
		fields = append(fields, zap.Int64("bytes_written", entry.BytesWritten))
	}
	if entry.Error != "" {
		fields = append(fields, zap.String("error", entry.Error))
		l.logger.Warn("tool call failed", fields...)
		return nil
	}
	l.logger.Info("tool call", fields...)
	return nil
}

// MemoryAuditLogger keeps entries in memory; the preview server exposes them
// and tests inspect them.
type MemoryAuditLogger struct {
	mu      sync.Mutex
	entries []AuditLogEntry
	limit   int
}

// NewMemoryAuditLogger keeps at most limit entries (0 means unlimited).
func NewMemoryAuditLogger(limit int) *MemoryAuditLogger {
	return &MemoryAuditLogger{limit: limit}
}

// Log records an entry, dropping the oldest once the limit is reached
func (l *MemoryAuditLogger) Log(entry AuditLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
	return nil
}

// Entries returns a copy of the recorded entries
func (l *MemoryAuditLogger) Entries() []AuditLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// MultiAuditLogger fans an entry out to several loggers
type MultiAuditLogger []AuditLogger

// Log forwards the entry and returns the first error
func (m MultiAuditLogger) Log(entry AuditLogEntry) error {
	var first error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Log(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Session identifies one agent conversation applying tool calls to a tree.
type Session struct {
	ID          string
	CreatedAt   time.Time
	AuditLogger AuditLogger
}

// NewSession creates a new session. An empty id gets a random UUID.
func NewSession(id string, logger AuditLogger) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		AuditLogger: logger,
	}
}

// SetAuditLogger sets a custom audit logger for the session
func (s *Session) SetAuditLogger(logger AuditLogger) {
	s.AuditLogger = logger
}

// logAudit logs an audit entry for this session
func (s *Session) logAudit(call ToolCall, result ToolResult, bytesWritten int64, elapsed time.Duration) {
	if s == nil || s.AuditLogger == nil {
		return
	}

	entry := AuditLogEntry{
		Timestamp:    time.Now(),
		SessionID:    s.ID,
		ToolName:     call.ToolName,
		Operation:    call.Args.Command,
		Path:         call.Args.Path,
		Success:      result.Success,
		BytesWritten: bytesWritten,
		Duration:     elapsed,
	}
	if call.Args.NewPath != nil {
		entry.NewPath = *call.Args.NewPath
	}
	if !result.Success {
		entry.Error = result.Message
	}

	_ = s.AuditLogger.Log(entry)
}
