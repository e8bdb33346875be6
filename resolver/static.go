package resolver

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Static resolves service names from an in-process table. Entries may be
// changed at runtime with Set and Delete.
type Static struct {
	mu        sync.RWMutex
	endpoints map[string]string
}

// NewStatic returns a Static resolver seeded with endpoints.
func NewStatic(endpoints map[string]string) *Static {
	s := &Static{endpoints: make(map[string]string, len(endpoints))}
	maps.Copy(s.endpoints, endpoints)
	return s
}

// Set registers or replaces the endpoint for service.
func (s *Static) Set(service, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[service] = endpoint
}

// Delete removes service from the table.
func (s *Static) Delete(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoints, service)
}

// Resolve implements Resolver.
func (s *Static) Resolve(ctx context.Context, service string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if service == "" {
		return "", ErrEmptyServiceName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[service]
	if !ok || ep == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	return ep, nil
}

// Fixed returns a Resolver that answers every service name with endpoint.
func Fixed(endpoint string) Resolver {
	return Func(func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return endpoint, nil
	})
}
