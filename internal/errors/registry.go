package errors

import (
	"context"
	"sync"
)

// NameResolver turns account ids into display names. Implementations return
// one name per id, in order.
type NameResolver interface {
	Usernames(ctx context.Context, ids []string) ([]string, error)
}

// Formatter renders the user-facing message of a domain error. It runs only
// when the error reaches the boundary.
type Formatter func(ctx context.Context, err *Error, names NameResolver) (string, error)

// Resolved is the boundary representation of an error.
type Resolved struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
}

// Registry maps error codes to deferred formatters. It is built once at the
// composition root and read concurrently afterwards.
type Registry struct {
	mu         sync.RWMutex
	formatters map[Code]Formatter
	names      NameResolver
}

func NewRegistry(names NameResolver) *Registry {
	return &Registry{formatters: make(map[Code]Formatter), names: names}
}

func (r *Registry) Register(code Code, f Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[code] = f
}

func (r *Registry) formatter(code Code) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formatters[code]
	return f, ok
}

// Resolve produces the message for err. Unregistered codes render with raw
// ids, and a failing formatter falls back to the same raw rendering. Errors
// outside the domain are reported as Unavailable without their cause.
func (r *Registry) Resolve(ctx context.Context, err error) Resolved {
	domain, ok := As(err)
	if !ok {
		domain = Wrap(KindUnavailable, CodeUnavailable, "the service could not complete the request", err)
	}
	out := Resolved{
		Kind:     domain.Kind,
		Code:     domain.Code,
		Message:  domain.Render(nil),
		Metadata: domain.Metadata,
	}
	f, ok := r.formatter(domain.Code)
	if !ok || r.names == nil {
		return out
	}
	msg, ferr := f(ctx, domain, r.names)
	if ferr != nil {
		return out
	}
	out.Message = msg
	return out
}

// ResolveAccounts builds a formatter that replaces the metadata values under
// keys, which hold account ids, with usernames before rendering.
func ResolveAccounts(keys ...string) Formatter {
	return func(ctx context.Context, err *Error, names NameResolver) (string, error) {
		ids := make([]string, 0, len(keys))
		present := make([]string, 0, len(keys))
		for _, key := range keys {
			if id, ok := err.Metadata[key]; ok {
				ids = append(ids, id)
				present = append(present, key)
			}
		}
		if len(ids) == 0 {
			return err.Render(nil), nil
		}
		usernames, rerr := names.Usernames(ctx, ids)
		if rerr != nil {
			return "", rerr
		}
		overrides := make(map[string]string, len(present))
		for i, key := range present {
			if i < len(usernames) {
				overrides[key] = usernames[i]
			}
		}
		return err.Render(overrides), nil
	}
}
