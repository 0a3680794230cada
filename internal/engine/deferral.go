package engine

// DeferralGuard remembers, per run, which dependency each representation was
// deferred on.
//
// A representation deferred on D is retried only after D has compiled, and a
// compiled representation never signals again. Seeing the same
// (rep, dependency) pair twice therefore means the scheduler would spin, and
// the run is stopped instead.
//
// Example:
//
//	rep:/a.md:default needs rep:/b.md:default → deferred, edge b → a
//	rep:/b.md:default compiles
//	rep:/a.md:default needs rep:/b.md:default again ← REPEATED DEFERRAL
//
// Thread-safety: not safe for concurrent use. A run owns its guard.
type DeferralGuard struct {
	history map[string]map[string]bool // map[rep]map[dependency]bool
}

// NewDeferralGuard creates an empty guard.
func NewDeferralGuard() *DeferralGuard {
	return &DeferralGuard{history: make(map[string]map[string]bool)}
}

// WouldRepeat reports whether rep was already deferred on dependency.
func (g *DeferralGuard) WouldRepeat(rep, dependency string) bool {
	return g.history[rep][dependency]
}

// Record marks that rep was deferred on dependency.
func (g *DeferralGuard) Record(rep, dependency string) {
	if g.history[rep] == nil {
		g.history[rep] = make(map[string]bool)
	}
	g.history[rep][dependency] = true
}

// Clear drops a representation's history once it compiled.
func (g *DeferralGuard) Clear(rep string) {
	delete(g.history, rep)
}

// Len returns the number of representations with recorded deferrals.
func (g *DeferralGuard) Len() int {
	return len(g.history)
}

// Deferrals returns the number of dependencies recorded for rep.
func (g *DeferralGuard) Deferrals(rep string) int {
	return len(g.history[rep])
}
