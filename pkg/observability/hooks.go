// Package observability provides hooks for metrics and tracing.
//
// The render pipeline emits events through a small hook registry so that
// callers (the HTTP server, tests) can instrument it without the core
// packages depending on any metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Render().OnStageStart(ctx, renderID, observability.StageCompile)
//	// ... run compiler ...
//	observability.Render().OnStageComplete(ctx, renderID, observability.StageCompile, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// Stage names a step of the render pipeline.
type Stage string

// Render pipeline stages.
const (
	StageResolve Stage = "resolve"
	StageCompile Stage = "compile"
	StageConvert Stage = "convert"
	StageMerge   Stage = "merge"
)

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the document renderer.
type RenderHooks interface {
	OnRenderStart(ctx context.Context, renderID string)
	OnRenderComplete(ctx context.Context, renderID string, duration time.Duration, err error)

	OnStageStart(ctx context.Context, renderID string, stage Stage)
	OnStageComplete(ctx context.Context, renderID string, stage Stage, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, string)                                {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, time.Duration, error)       {}
func (NoopRenderHooks) OnStageStart(context.Context, string, Stage)                          {}
func (NoopRenderHooks) OnStageComplete(context.Context, string, Stage, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	renderHooks RenderHooks = NoopRenderHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetRenderHooks registers custom render hooks. Hooks may be swapped
// between renders; a render in flight keeps calling whichever hooks
// [Render] returns at each stage.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	renderHooks = NoopRenderHooks{}
	cacheHooks = NoopCacheHooks{}
}
