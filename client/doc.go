// Package client provides the resilient HTTP client every service uses for
// inter-service calls. Each call runs through the named service's circuit
// breaker from the shared registry; transient failures (network errors,
// timeouts, 5xx responses) retry with linear backoff inside one
// breaker-tracked outcome, and each attempt is bounded by a per-attempt
// timeout.
//
//	cli := client.New(client.Config{
//	    Registry: registry,
//	    Services: map[string]client.Settings{
//	        "auth-service": {BaseURL: "http://auth:4001", MaxRetries: 3},
//	    },
//	})
//
//	resp, err := cli.Get(ctx, "auth-service", "/api/session")
//
// The client never panics over caller mistakes: a nil Options or missing
// service name is replaced with safe defaults and logged as a warning.
package client
