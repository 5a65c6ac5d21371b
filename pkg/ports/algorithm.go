package ports

import "context"

// Algorithm is the trading strategy hosted by the session host
type Algorithm interface {
	Name() string
	Initialize(ctx context.Context) error
	UnInitialize(ctx context.Context) error
}

// AlgorithmHost is the view of the host an algorithm receives at construction.
// The factory and Algorithm.Initialize run while the host holds its lock,
// so every method here must be readable without that lock. Implementations
// must not add methods that take it.
type AlgorithmHost interface {
	BusName() string
	IsConnected() bool
	SessionCount() int
}

// AlgorithmFactory constructs the algorithm against its host and bus name
type AlgorithmFactory func(host AlgorithmHost, name string) (Algorithm, error)
