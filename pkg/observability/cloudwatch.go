package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sony/gobreaker"
)

// CloudWatchAPI is the subset of the CloudWatch client the emitter uses.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchEmitter pushes operation metrics straight to CloudWatch. It is
// meant for Lambda deployments where no collector sidecar is available; in
// collector deployments use the OTLP or prometheus pipelines instead.
//
// Emission is best-effort: a failed put never fails the caller's operation,
// and a circuit breaker stops hammering CloudWatch when puts keep failing.
type CloudWatchEmitter struct {
	namespace string
	client    CloudWatchAPI
	breaker   *gobreaker.CircuitBreaker
}

// NewCloudWatchEmitter creates an emitter for the given metric namespace.
// A nil client yields an emitter whose methods are silent no-ops.
func NewCloudWatchEmitter(namespace string, client CloudWatchAPI) *CloudWatchEmitter {
	return &CloudWatchEmitter{
		namespace: namespace,
		client:    client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "cloudwatch-metrics",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// RecordOperation emits a latency datum and a count datum for one operation,
// dimensioned by operation name and success/failure status.
func (e *CloudWatchEmitter) RecordOperation(ctx context.Context, operation string, duration time.Duration, opErr error) {
	if e == nil || e.client == nil {
		return
	}

	status := "success"
	if opErr != nil {
		status = "failure"
	}
	dims := []types.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(operation)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	now := time.Now()

	e.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("OperationCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	})
}

// RecordCount emits a single count datum with the given dimensions.
func (e *CloudWatchEmitter) RecordCount(ctx context.Context, name string, value float64, dimensions map[string]string) {
	if e == nil || e.client == nil {
		return
	}

	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{Name: aws.String(k), Value: aws.String(v)})
	}

	e.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String(name),
			Dimensions: dims,
			Value:      aws.Float64(value),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
	})
}

func (e *CloudWatchEmitter) put(ctx context.Context, data []types.MetricDatum) {
	_, err := e.breaker.Execute(func() (any, error) {
		return e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(e.namespace),
			MetricData: data,
		})
	})
	if err != nil {
		L().Warn("cloudwatch metric put failed", String("namespace", e.namespace), Err(err))
	}
}
