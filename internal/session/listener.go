package session

import (
	"arendls/internal/engine"
	"arendls/internal/metrics"
	"arendls/internal/source"
)

// loadListener counts finished modules and forwards every event.
type loadListener struct {
	next    engine.LoadListener
	metrics *metrics.Metrics
}

func (l loadListener) ModuleStatus(lib string, path source.ModulePath, st engine.ModuleStatus) {
	if st == engine.ModuleParsed || st == engine.ModuleFailed {
		l.metrics.ModuleParsed(st.String())
	}
	if l.next != nil {
		l.next.ModuleStatus(lib, path, st)
	}
}
