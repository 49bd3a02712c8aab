// cw-demo pushes operation metrics straight to CloudWatch, the deployment
// mode used when no collector sidecar is available. Requires AWS credentials
// in the environment.
package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"pulse-obs/pkg/observability"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

func main() {
	cfg := observability.DefaultConfig("cw-demo")
	cfg.EnableMetrics = false
	cfg.EnableTracing = false

	if err := observability.Init(cfg); err != nil {
		log.Fatalf("init observability: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.Shutdown(ctx)
	}()

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	emitter := observability.NewCloudWatchEmitter("Pulse/OMS", cloudwatch.NewFromConfig(awsCfg))

	for i := 0; i < 10; i++ {
		start := time.Now()
		err := submitOrder()
		emitter.RecordOperation(ctx, "SubmitOrder", time.Since(start), err)
		if err != nil {
			emitter.RecordCount(ctx, "Rejections", 1, map[string]string{"Broker": "alpaca"})
		}
	}

	observability.L().Info("cloudwatch demo finished")
}

func submitOrder() error {
	time.Sleep(time.Duration(10+rand.Intn(90)) * time.Millisecond)
	if rand.Intn(10) == 0 {
		return errors.New("risk check rejected order")
	}
	return nil
}
