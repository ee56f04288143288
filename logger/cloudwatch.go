package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var cwClient *cloudwatch.Client
var cwNamespace = "Hedgeflow"
var cwDashboard = "Hedgeflow"
var cwRegion = "us-east-1"

// InitCloudWatch initialises the CloudWatch client using the provided region and
// namespace. If region is empty it falls back to the AWS_REGION environment
// variable. When the client cannot be created the function logs a warning and
// metrics publishing remains disabled.
func InitCloudWatch(region, namespace, dashboard string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwClient = cloudwatch.NewFromConfig(cfg)
	if cfg.Region != "" {
		cwRegion = cfg.Region
	}

	if namespace != "" {
		cwNamespace = namespace
	}

	if dashboard != "" {
		cwDashboard = dashboard
	}

	log.WithFields(Fields{"region": region, "namespace": cwNamespace}).Info("initialized CloudWatch client")

	CreateDefaultDashboard(ctx)
}

// publishMetrics sends the provided metric data to CloudWatch when the client
// has been initialised. Unsupported values simply log at debug level.
func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	log := GetLogger().WithComponent("cloudwatch")
	if cwClient == nil {
		log.Debug("CloudWatch client not initialized; skipping metric publish")
		return
	}

	if len(data) == 0 {
		log.Debug("no metric data to publish")
		return
	}

	if _, err := cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(cwNamespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}

	log.WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}

// dashboardBody lays out the hedge dashboard: executions and failures per
// stage, run latency, and process health from the runtime report.
func dashboardBody(namespace string) (string, error) {
	search := func(dims, metric, stat string) map[string]any {
		return map[string]any{
			"expression": fmt.Sprintf(`SEARCH('{%s,%s} MetricName="%s"', '%s', 60)`, namespace, dims, metric, stat),
			"id":         strings.ToLower(strings.ReplaceAll(metric, "_", "")),
		}
	}
	widget := func(y int, title, stat string, metrics ...any) map[string]any {
		return map[string]any{
			"type":   "metric",
			"x":      0,
			"y":      y,
			"width":  24,
			"height": 6,
			"properties": map[string]any{
				"metrics": metrics,
				"period":  60,
				"stat":    stat,
				"region":  cwRegion,
				"title":   title,
			},
		}
	}

	body := map[string]any{"widgets": []any{
		widget(0, "Hedges executed / failed", "Sum",
			[]any{search("component,asset", "hedges_executed", "Sum")},
			[]any{search("component,stage", "hedge_failures", "Sum")},
		),
		widget(6, "Run duration (ms)", "Average",
			[]any{namespace, "run_duration", "component", "hedge"},
			[]any{"...", map[string]any{"stat": "Maximum"}},
		),
		widget(12, "Process", "Average",
			[]any{namespace, "HeapMB"},
			[]any{namespace, "Goroutines"},
		),
	}}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateDefaultDashboard ensures the hedge dashboard exists when the
// CloudWatch client has been configured. Failures are logged but do not stop
// execution.
func CreateDefaultDashboard(ctx context.Context) {
	if cwClient == nil {
		return
	}

	log := GetLogger().WithComponent("cloudwatch")
	body, err := dashboardBody(cwNamespace)
	if err != nil {
		log.WithError(err).Warn("failed to build CloudWatch dashboard")
		return
	}

	if _, err := cwClient.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(cwDashboard),
		DashboardBody: aws.String(body),
	}); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}
