package bvh

import "golang.org/x/sync/errgroup"

// The result of building a deferred range in its own builder.
type subtree struct {
	task  buildTask
	nodes []Node
	stats buildStats
}

// Build all deferred ranges in parallel and splice the resulting subtrees
// into the node list.
//
// Each worker owns a disjoint range of the shared index list and writes its
// nodes to a private slice, so no synchronization is required beyond
// waiting for all workers to complete.
func (b *builder) buildDeferred() error {
	subtrees := make([]subtree, len(b.deferred))

	var group errgroup.Group
	group.SetLimit(b.opts.Workers)
	for index, task := range b.deferred {
		index, task := index, task
		group.Go(func() error {
			sub := newBuilder(b.opts, b.prims, b.indices, task.end-task.start)
			sub.run(buildTask{node: 0, start: task.start, end: task.end, depth: task.depth})
			subtrees[index] = subtree{
				task:  task,
				nodes: sub.nodes,
				stats: sub.stats,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// The subtree root replaces the placeholder node that was allocated by
	// the parent; the remaining nodes are appended at the end of the list.
	for _, sub := range subtrees {
		placeholder := sub.task.node
		base := uint32(len(b.nodes)) - 1
		remap := func(local uint32) uint32 {
			if local == 0 {
				return placeholder
			}
			return base + local
		}

		for index := range sub.nodes {
			sub.nodes[index].RemapChildNodes(remap)
		}
		b.nodes[placeholder] = sub.nodes[0]
		b.nodes = append(b.nodes, sub.nodes[1:]...)
		b.stats.merge(sub.stats)
	}

	b.deferred = b.deferred[:0]
	return nil
}
