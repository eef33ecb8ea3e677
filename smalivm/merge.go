package smalivm

// admit applies the merge policy to a context arriving at its address:
// duplicates and subsumed contexts are dropped, distinct ones are kept up
// to MaxContextsPerNode, and beyond that the node collapses into a single
// joined context that is expanded afresh. Dropped arrivals still count
// against the node's visits.
func (b *builder) admit(c *Context) {
	n := b.graph.node(c.Address)
	if n.PossiblyNonTerminating {
		b.graph.partial = true
		return
	}
	for _, e := range n.Contexts {
		if sameContext(e, c) || e.covers(c) {
			n.Visits++
			if n.Visits >= b.run.opts.MaxAddressVisits {
				b.capVisits(n)
			}
			return
		}
	}
	limit := b.run.opts.MaxContextsPerNode
	if limit <= 0 || len(n.Contexts) < limit {
		n.Contexts = append(n.Contexts, c)
		b.queue = append(b.queue, c)
		return
	}
	all := make([]*Context, 0, len(n.Contexts)+1)
	all = append(all, n.Contexts...)
	all = append(all, c)
	joined := joinContexts(all).seal()
	b.log.With(map[string]any{FieldPC: c.Address}).Debugf("collapse contexts=%d", len(all))
	n.Contexts = []*Context{joined}
	n.Steps = nil
	b.queue = append(b.queue, joined)
}
