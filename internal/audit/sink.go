package audit

import "go.uber.org/zap"

// ZapSink writes audit entries as structured log lines under a fixed message,
// so an external shipper can filter them into the append-only audit stream.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps the given logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(entry Entry) {
	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.Time("ts", entry.Timestamp),
		zap.String("event_type", string(entry.EventType)),
		zap.String("source", entry.SourceAddress),
		zap.String("resource", entry.Resource),
		zap.String("action", entry.Action),
		zap.String("outcome", string(entry.Outcome)),
	}
	if entry.SubjectID != "" {
		fields = append(fields, zap.String("subject_id", entry.SubjectID))
	}
	if entry.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", entry.CorrelationID))
	}
	if len(entry.Details) > 0 {
		fields = append(fields, zap.Any("details", entry.Details))
	}

	if entry.EventType == EventSecurityAlert {
		s.logger.Warn("audit_event", fields...)
		return
	}
	s.logger.Info("audit_event", fields...)
}
