package main

import (
	"fmt"

	"github.com/Sternrassler/siteworker/pkg/agent"
)

const cacheStatusName = "siteworker"

// cacheStatus renders the Cache-Status header (RFC 9211) for an outcome.
func cacheStatus(out *agent.Outcome) string {
	switch out.Source {
	case agent.SourceCache:
		if out.Strategy == agent.StrategyNetworkFirst {
			return fmt.Sprintf("%s; hit; detail=offline", cacheStatusName)
		}
		return fmt.Sprintf("%s; hit", cacheStatusName)
	case agent.SourceRootFallback:
		return fmt.Sprintf("%s; hit; detail=root-fallback", cacheStatusName)
	case agent.SourceSynthetic:
		return fmt.Sprintf("%s; fwd=miss; detail=placeholder", cacheStatusName)
	}

	// The network-first strategy forwards even when a copy is cached
	reason := "miss"
	if out.Strategy == agent.StrategyNetworkFirst {
		reason = "request"
	}
	status := fmt.Sprintf("%s; fwd=%s; fwd-status=%d", cacheStatusName, reason, out.Response.StatusCode)
	if out.Stored {
		status += "; stored"
	}
	return status
}
