// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers, retry logic, and health check utilities
// to ensure system resilience in the face of failures.
//
// The package supports:
//   - Circuit breakers for outbound provider calls (SMS, email, WhatsApp vendors)
//   - Retry logic with exponential backoff and jitter
//   - Backoff delay computation for the delivery retry scheduler
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ProviderConfig("sms"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callProvider()
//	})
//
//	retryConfig := retry.DefaultConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
