package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	model "github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	metrics "github.com/Dryik/migration-tool/pkg/batch/core/metrics"
)

func TestModule_ProvidesNoOps(t *testing.T) {
	var recorder metrics.MetricRecorder
	var tracer metrics.Tracer

	app := fxtest.New(t,
		metrics.Module,
		fx.Populate(&recorder, &tracer),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.IsType(t, &metrics.NoOpMetricRecorder{}, recorder)
	assert.IsType(t, &metrics.NoOpTracer{}, tracer)

	ctx := context.Background()
	unit := model.NewBatchUnit(0, 0, 3)
	assert.NotPanics(t, func() {
		recorder.RecordRunStart(ctx, "res.partner")
		recorder.RecordBatch(ctx, "res.partner", unit)
		recorder.RecordRunEnd(ctx, nil)
		recorder.RecordDuration(ctx, "gateway.call", time.Millisecond, nil)

		spanCtx, end := tracer.StartRunSpan(ctx, "res.partner", false)
		assert.Equal(t, ctx, spanCtx)
		tracer.RecordError(spanCtx, "writer", errors.New("boom"))
		end()
	})
}
