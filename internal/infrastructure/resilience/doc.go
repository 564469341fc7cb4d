/*
Package resilience provides a circuit breaker used to fail fast when an
operation keeps failing, such as spawning shells while the host is out of
processes or pty devices.

# Usage

	breaker := resilience.New("spawn", resilience.Settings{
		MaxFailures: 5,
		OpenTimeout: 10 * time.Second,
	})

	err := breaker.Execute(func() error {
		return spawnShell()
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// rejected without calling spawnShell
	}

# States

	Closed --[MaxFailures]-> Open --[OpenTimeout]-> Half-Open --[probe ok]-> Closed
	                                                    |
	                                              [probe fails]
	                                                    v
	                                                  Open

The breaker never retries. Retrying is left to the caller.
*/
package resilience
