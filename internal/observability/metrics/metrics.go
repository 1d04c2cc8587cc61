// Package metrics holds the metric names and tag conventions shared by the
// auth core and the access layer. Every helper accepts a nil sink.
package metrics

import (
	"time"

	obserrors "github.com/festa-portal/portal-client/internal/observability/errors"
	"github.com/festa-portal/portal-client/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names.
const (
	AuthTransition    = "auth.transition"
	AuthStaleDiscard  = "auth.stale_discarded"
	AuthFoldError     = "auth.fold_error"
	AuthProfileFetch  = "auth.profile_fetch"
	AuthInitProfile   = "auth.init_profile"
	AccessRedirect    = "access.redirect"
	AccessEvaluations = "access.evaluation"
)

// EmitAuthTransition counts a committed snapshot transition.
func EmitAuthTransition(sink statsd.Sink, from, to string) {
	if sink == nil {
		return
	}
	sink.Count(AuthTransition, 1, map[string]string{"from": from, "to": to})
}

// EmitStaleDiscarded counts a resolution result dropped because a newer
// notification superseded it.
func EmitStaleDiscarded(sink statsd.Sink, outcome string) {
	if sink == nil {
		return
	}
	sink.Count(AuthStaleDiscard, 1, map[string]string{"outcome": outcome})
}

// EmitFoldError counts a notification whose resolution ended in the error snapshot.
func EmitFoldError(sink statsd.Sink, err error) {
	if sink == nil || err == nil {
		return
	}
	sink.Count(AuthFoldError, 1, map[string]string{"code": obserrors.Classify(err)})
}

// ProfileFetchMetric captures one backend profile lookup.
type ProfileFetchMetric struct {
	Attempt  int
	Duration time.Duration
	Err      error
}

// EmitProfileFetch records the latency and outcome of a profile lookup.
func EmitProfileFetch(sink statsd.Sink, in ProfileFetchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": ResultSuccess}
	if in.Attempt > 1 {
		tags["retry"] = "true"
	}
	if in.Err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(AuthProfileFetch, 1, tags)
	if in.Duration > 0 {
		sink.Timing(AuthProfileFetch, in.Duration, CloneTags(tags))
	}
}

// EmitInitProfile counts a profile provisioning attempt.
func EmitInitProfile(sink statsd.Sink, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Count(AuthInitProfile, 1, tags)
}

// EmitAccessDecision counts a page access evaluation and, for redirects, the navigation target.
func EmitAccessDecision(sink statsd.Sink, decision, target string, navigated bool) {
	if sink == nil {
		return
	}
	sink.Count(AccessEvaluations, 1, map[string]string{"decision": decision})
	if !navigated {
		return
	}
	sink.Count(AccessRedirect, 1, map[string]string{"target": target})
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
