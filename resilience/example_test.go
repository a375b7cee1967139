package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/storefront/resilience"
)

func ExampleExecutor_Execute() {
	exec := resilience.NewExecutor(
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 6})),
		resilience.WithTimeout(50*time.Millisecond),
	)

	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done() // a request that never answers
		return ctx.Err()
	})
	fmt.Println(errors.Is(err, resilience.ErrTimeout))
	// Output: true
}

func ExampleRetry_Execute() {
	errOffline := errors.New("offline")
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return errors.Is(err, errOffline) },
	})

	attempts := 0
	err := retry.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errOffline
		}
		return nil
	})
	fmt.Println(attempts, err)
	// Output: 2 <nil>
}
