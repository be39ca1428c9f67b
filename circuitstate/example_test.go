package circuitstate_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jusscott/risk-assessment-app-sub005/circuitstate"
	"github.com/jusscott/risk-assessment-app-sub005/resilience"
)

func ExampleRegistry_IsOpen() {
	r := circuitstate.NewRegistry(circuitstate.RegistryConfig{
		Defaults: resilience.BreakerConfig{Threshold: 2, ResetTimeout: time.Minute},
	})
	defer r.Close()

	fmt.Println("before:", r.IsOpen("scoring-service"))

	b := r.Breaker("scoring-service")
	upstreamErr := errors.New("service unavailable")
	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			return upstreamErr
		})
	}

	fmt.Println("after:", r.IsOpen("scoring-service"))
	// Output:
	// before: false
	// after: true
}

func ExampleRegistry_ResetCircuit() {
	r := circuitstate.NewRegistry(circuitstate.RegistryConfig{})
	defer r.Close()

	result := r.ResetCircuit("no-such-service")
	fmt.Println(result.Success)
	fmt.Println(result.Message)
	// Output:
	// false
	// no circuit breaker for service no-such-service
}
