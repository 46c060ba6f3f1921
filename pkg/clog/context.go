package clog

import (
	"context"
	"maps"
	"sync"
)

// Attribute keys with a fixed place in the text output.
const (
	MethodKey  = "method"
	PathKey    = "path"
	StatusKey  = "status"
	PackageKey = "package"
	GroupsKey  = "groups"
	ErrorKey   = "error.message"
	StackKey   = "error.stack"
)

// attributes collects the attributes added while a request is handled.
type attributes struct {
	mu sync.Mutex
	m  map[string]any
}

type attributesKey struct{}

// ContextWithSlog returns a context that collects attributes for every
// record logged with it.
func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attributesKey{}, &attributes{m: make(map[string]any)})
}

func attributesFrom(ctx context.Context) *attributes {
	a, _ := ctx.Value(attributesKey{}).(*attributes)
	return a
}

func AddAttribute(ctx context.Context, key string, value any) {
	AddAttributes(ctx, map[string]any{key: value})
}

// AddAttributes merges attrs into the attributes of ctx. Nested maps are
// merged key by key. Without ContextWithSlog it does nothing.
func AddAttributes(ctx context.Context, attrs map[string]any) {
	a := attributesFrom(ctx)
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	merge(a.m, attrs)
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorKey, err)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackKey, stack)
}

// GetAttributes returns a copy of the attributes of ctx, or nil if it has none.
func GetAttributes(ctx context.Context) map[string]any {
	a := attributesFrom(ctx)
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.m)
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if dstSub, dstOK := dst[k].(map[string]any); ok && dstOK {
			merge(dstSub, sub)
			continue
		}
		dst[k] = v
	}
}
