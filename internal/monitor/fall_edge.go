package monitor

// FallEdgeDetector turns a repeated fall=true stream into a single rising edge.
type FallEdgeDetector struct {
	previous bool
}

// Observe records flag and reports whether it is a false->true transition.
// A nil flag leaves the state unchanged.
func (d *FallEdgeDetector) Observe(flag *bool) bool {
	if flag == nil {
		return false
	}
	fired := *flag && !d.previous
	d.previous = *flag
	return fired
}
