// Package network is the minimal road-network graph the zone-policy core
// reads by id: nodes with projected coordinates, links with endpoints and
// the attributes policy enforcement needs to reason about (length, allowed
// modes, HBEFA type). The core never mutates it and never walks cycles in
// it — it only looks nodes and links up by id, per spec §9 ("Cyclic
// references absent").
package network

import "github.com/transitguard/zonepolicy/internal/errors"

type NodeID string
type LinkID string

// Node is a road-network vertex in the run's projected metric CRS.
type Node struct {
	ID NodeID
	X  float64
	Y  float64
}

// Link is a directed road-network edge. AllowedModes and HBEFARoadType are
// carried through for downstream consumers (routing, emissions) but are not
// interpreted by the zone-policy core itself.
type Link struct {
	ID            LinkID
	From          NodeID
	To            NodeID
	Length        float64
	Freespeed     float64
	Capacity      float64
	Lanes         float64
	AllowedModes  []string
	HBEFARoadType string
}

// Network is an immutable road network graph, looked up by id.
type Network struct {
	nodes     map[NodeID]Node
	links     map[LinkID]Link
	linkOrder []LinkID
}

// New builds a Network from nodes and links, failing with
// KindNetworkInconsistent if any link references a node that isn't present
// (spec §4.2 failure modes).
func New(nodes []Node, links []Link) (*Network, error) {
	n := &Network{
		nodes: make(map[NodeID]Node, len(nodes)),
		links: make(map[LinkID]Link, len(links)),
	}
	for _, node := range nodes {
		n.nodes[node.ID] = node
	}
	for _, link := range links {
		if _, ok := n.nodes[link.From]; !ok {
			return nil, errors.Attr(errors.Errorf(errors.KindNetworkInconsistent,
				"link %s references unknown from-node %s", link.ID, link.From), "linkId", string(link.ID))
		}
		if _, ok := n.nodes[link.To]; !ok {
			return nil, errors.Attr(errors.Errorf(errors.KindNetworkInconsistent,
				"link %s references unknown to-node %s", link.ID, link.To), "linkId", string(link.ID))
		}
		n.links[link.ID] = link
		n.linkOrder = append(n.linkOrder, link.ID)
	}
	return n, nil
}

// Node returns the node with the given id.
func (n *Network) Node(id NodeID) (Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// Link returns the link with the given id.
func (n *Network) Link(id LinkID) (Link, bool) {
	link, ok := n.links[id]
	return link, ok
}

// Links returns all links in a stable, construction order — used by
// NewSpatialIndex to bucket every link.
func (n *Network) Links() []Link {
	out := make([]Link, 0, len(n.linkOrder))
	for _, id := range n.linkOrder {
		out = append(out, n.links[id])
	}
	return out
}

// Endpoints resolves a link's from/to nodes, failing with
// KindNetworkInconsistent if either is missing (should not happen for a link
// obtained from this Network, but guards links passed in from elsewhere).
func (n *Network) Endpoints(link Link) (from, to Node, err error) {
	from, ok := n.nodes[link.From]
	if !ok {
		return Node{}, Node{}, errors.Errorf(errors.KindNetworkInconsistent, "missing from-node %s for link %s", link.From, link.ID)
	}
	to, ok = n.nodes[link.To]
	if !ok {
		return Node{}, Node{}, errors.Errorf(errors.KindNetworkInconsistent, "missing to-node %s for link %s", link.To, link.ID)
	}
	return from, to, nil
}
