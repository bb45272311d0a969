package emit

import (
	"context"

	"go.uber.org/zap"
)

// ZapEmitter implements Emitter by routing events through a structured
// zap.Logger, replacing the teacher's io.Writer-based LogEmitter now that
// the ambient logging stack standardizes on zap (pkg/logging).
type ZapEmitter struct {
	log *zap.Logger
}

func NewZapEmitter(log *zap.Logger) *ZapEmitter {
	return &ZapEmitter{log: log}
}

func (z *ZapEmitter) Emit(event Event) {
	fields := make([]zap.Field, 0, len(event.Meta)+4)
	fields = append(fields,
		zap.String("source", string(event.Source)),
		zap.String("execution_id", event.ExecutionID),
		zap.String("node_id", event.NodeID),
		zap.String("job_id", event.JobID),
	)
	for k, v := range event.Meta {
		fields = append(fields, zap.Any(k, v))
	}
	z.log.Info(event.Msg, fields...)
}

func (z *ZapEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		z.Emit(e)
	}
	return nil
}

func (z *ZapEmitter) Flush(_ context.Context) error {
	return z.log.Sync()
}
