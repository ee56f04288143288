package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type componentStat struct {
	warns  int64
	errors int64
}

// components holds per-component warn/error counts: map[string]*componentStat
var components sync.Map

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// Counts returns the warnings and errors logged so far for a component.
func Counts(component string) (warns, errors int64) {
	v, ok := components.Load(component)
	if !ok {
		return 0, 0
	}
	cs := v.(*componentStat)
	return atomic.LoadInt64(&cs.warns), atomic.LoadInt64(&cs.errors)
}

// StartReport begins periodic logging of runtime and per-component statistics
// until ctx is done.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	componentData := map[string]map[string]int64{}
	var data []cwtypes.MetricDatum
	components.Range(func(k, _ any) bool {
		name := k.(string)
		warns, errs := Counts(name)
		componentData[name] = map[string]int64{"warns": warns, "errors": errs}
		dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(name)}}
		data = append(data,
			cwtypes.MetricDatum{MetricName: aws.String("Warnings"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(warns))},
			cwtypes.MetricDatum{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(errs))},
		)
		return true
	})

	goroutines := runtime.NumGoroutine()
	heapMB := float64(mem.HeapAlloc) / 1024 / 1024

	log.WithComponent("report").WithFields(Fields{
		"goroutines": goroutines,
		"heap_mb":    heapMB,
		"components": componentData,
	}).Info("runtime report")

	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(goroutines))},
		cwtypes.MetricDatum{MetricName: aws.String("HeapMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(heapMB)},
	)
	publishMetrics(ctx, data)
}
