package render

import "github.com/rohmanhakim/capture-crawler/internal/config"

// CDP Page.lifecycleEvent names.
const (
	lifecycleLoad              = "load"
	lifecycleDOMContentLoaded  = "DOMContentLoaded"
	lifecycleNetworkIdle       = "networkIdle"
	lifecycleNetworkAlmostIdle = "networkAlmostIdle"
)

// LifecycleNames maps a wait condition onto the lifecycle event names that
// must all fire for the navigated document. The result has no duplicates
// and keeps the condition's order. A zero condition waits for load.
func LifecycleNames(wait config.WaitCondition) []string {
	events := wait.Events()
	if len(events) == 0 {
		return []string{lifecycleLoad}
	}

	names := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		name := lifecycleName(e)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func lifecycleName(e config.WaitEvent) string {
	switch e {
	case config.WaitDOMContentLoaded:
		return lifecycleDOMContentLoaded
	case config.WaitNetworkIdle, config.WaitNetworkIdle0:
		return lifecycleNetworkIdle
	case config.WaitNetworkIdle2:
		return lifecycleNetworkAlmostIdle
	default:
		return lifecycleLoad
	}
}
