package flow

import "github.com/replaykit/replay/pkg/api"

// Flatten returns the flow's scenario IDs in a topological order,
// computed with Kahn's algorithm over the whole graph. Nodes caught in
// a cycle are appended in declaration order so every scenario node
// appears exactly once
func Flatten(f *api.UserFlow) []api.ScenarioID {
	indegree := make(map[api.NodeID]int, len(f.Nodes))
	for _, n := range f.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range f.Edges {
		if _, ok := indegree[e.Target]; ok {
			indegree[e.Target]++
		}
	}

	var queue []api.NodeID
	for _, n := range f.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	emitted := make(map[api.NodeID]struct{}, len(f.Nodes))
	var res []api.ScenarioID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		emitted[id] = struct{}{}

		if n := f.Node(id); n != nil && n.Type == api.NodeScenario {
			res = append(res, n.ScenarioID)
		}
		for _, e := range f.OutEdges(id) {
			indegree[e.Target]--
			if indegree[e.Target] == 0 {
				queue = append(queue, e.Target)
			}
		}
	}

	for _, n := range f.Nodes {
		if _, ok := emitted[n.ID]; ok {
			continue
		}
		if n.Type == api.NodeScenario {
			res = append(res, n.ScenarioID)
		}
	}
	return res
}
