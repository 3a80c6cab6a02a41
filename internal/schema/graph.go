package schema

import (
	"sort"
	"strings"
)

// Edge is one direction of a relationship, usable as a join step.
type Edge struct {
	From        string
	To          string
	FromColumn  string
	ToColumn    string
	Condition   string
	Type        string
	Description string
}

// Neighbor is a directly joinable table as seen from another table.
type Neighbor struct {
	Table         string `json:"table"`
	JoinCondition string `json:"join_condition"`
	Relationship  string `json:"relationship"`
}

// TableInfo is a table plus every table reachable from it in one join.
type TableInfo struct {
	Table     Table      `json:"table"`
	Connected []Neighbor `json:"connected_tables"`
}

// Join is one consumed edge of a join path.
type Join struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition"`
	Type      string `json:"type"`
}

// JoinPath is a pairwise join route: len(Joins) == len(Path)-1.
type JoinPath struct {
	Path     []string `json:"path"`
	Joins    []Join   `json:"joins"`
	HopCount int      `json:"hop_count"`
}

// MultiHopPlan connects three or more requested tables. Sequence covers every
// requested table at least once; Joins holds no duplicate (from,to) pair.
type MultiHopPlan struct {
	Sequence  []string `json:"sequence"`
	Joins     []Join   `json:"joins"`
	TotalHops int      `json:"total_hops"`
}

// TableSummary is a list entry of the catalog.
type TableSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SearchHit is one keyword search result: either a table match or a
// business-glossary term match.
type SearchHit struct {
	Kind    string     `json:"kind"`
	Table   *TableInfo `json:"table,omitempty"`
	Term    string     `json:"term,omitempty"`
	Mapping string     `json:"mapping,omitempty"`
}

const (
	SearchHitTable    = "table"
	SearchHitGlossary = "glossary"
)

// Graph is a directed join graph over the schema model. Every relationship is
// materialized as two opposite edges so joins are usable from either side.
// Read-only after NewGraph and safe for concurrent use.
type Graph struct {
	model *Model
	adj   map[string][]Edge
}

// NewGraph builds the join graph from the loaded catalog.
func NewGraph(model *Model) *Graph {
	adj := make(map[string][]Edge, len(model.Tables))
	for name := range model.Tables {
		adj[name] = nil
	}
	for _, rel := range model.Relationships {
		condition := rel.Condition()
		adj[rel.From.Table] = append(adj[rel.From.Table], Edge{
			From:        rel.From.Table,
			To:          rel.To.Table,
			FromColumn:  rel.From.Column,
			ToColumn:    rel.To.Column,
			Condition:   condition,
			Type:        rel.Type,
			Description: rel.Description,
		})
		adj[rel.To.Table] = append(adj[rel.To.Table], Edge{
			From:        rel.To.Table,
			To:          rel.From.Table,
			FromColumn:  rel.To.Column,
			ToColumn:    rel.From.Column,
			Condition:   condition,
			Type:        rel.Type,
			Description: rel.Description,
		})
	}
	// Sorted adjacency keeps BFS tie-breaks and neighbor listings stable.
	for name := range adj {
		edges := adj[name]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].To != edges[j].To {
				return edges[i].To < edges[j].To
			}
			return edges[i].Condition < edges[j].Condition
		})
	}
	return &Graph{model: model, adj: adj}
}

// ListTables returns every table as {name, description}, sorted by name.
func (g *Graph) ListTables() []TableSummary {
	summaries := make([]TableSummary, 0, len(g.model.Tables))
	for _, name := range g.model.TableNames() {
		summaries = append(summaries, TableSummary{
			Name:        name,
			Description: g.model.Tables[name].Description,
		})
	}
	return summaries
}

// TableInfo returns the table and its directly joinable neighbors. The second
// return is false when the table is not in the catalog.
func (g *Graph) TableInfo(name string) (TableInfo, bool) {
	table, ok := g.model.Table(name)
	if !ok {
		return TableInfo{}, false
	}
	edges := g.adj[name]
	connected := make([]Neighbor, 0, len(edges))
	for _, edge := range edges {
		connected = append(connected, Neighbor{
			Table:         edge.To,
			JoinCondition: edge.Condition,
			Relationship:  edge.Type,
		})
	}
	return TableInfo{Table: table, Connected: connected}, true
}

// FindJoinPath returns the shortest join route between two tables, or nil
// when either table is absent or no connecting path exists.
func (g *Graph) FindJoinPath(from, to string) *JoinPath {
	if _, ok := g.model.Table(from); !ok {
		return nil
	}
	if _, ok := g.model.Table(to); !ok {
		return nil
	}
	path, edges := g.shortestPath(from, to)
	if path == nil {
		return nil
	}
	joins := make([]Join, 0, len(edges))
	for _, edge := range edges {
		joins = append(joins, Join{
			From:      edge.From,
			To:        edge.To,
			Condition: edge.Condition,
			Type:      edge.Type,
		})
	}
	return &JoinPath{Path: path, Joins: joins, HopCount: len(joins)}
}

// OptimalJoinPath connects every requested table with a greedy nearest
// expansion: starting from the first table, it repeatedly absorbs the
// requested table closest to any already-visited vertex. It is a heuristic,
// not an exact Steiner tree. Returns nil when a requested table is absent or
// the set is not fully connected.
func (g *Graph) OptimalJoinPath(tables []string) *MultiHopPlan {
	if len(tables) < 2 {
		return nil
	}
	for _, name := range tables {
		if _, ok := g.model.Table(name); !ok {
			return nil
		}
	}

	visited := map[string]bool{tables[0]: true}
	sequence := []string{tables[0]}
	remaining := map[string]bool{}
	for _, name := range tables[1:] {
		if !visited[name] {
			remaining[name] = true
		}
	}

	var joins []Join
	seenJoins := map[string]bool{}

	for len(remaining) > 0 {
		bestPath, bestEdges := g.nearestExpansion(visited, remaining)
		if bestPath == nil {
			return nil
		}
		for _, name := range bestPath {
			if !visited[name] {
				visited[name] = true
				sequence = append(sequence, name)
			}
			delete(remaining, name)
		}
		for _, edge := range bestEdges {
			key := edge.From + "\x00" + edge.To
			if seenJoins[key] {
				continue
			}
			seenJoins[key] = true
			joins = append(joins, Join{
				From:      edge.From,
				To:        edge.To,
				Condition: edge.Condition,
				Type:      edge.Type,
			})
		}
	}

	return &MultiHopPlan{Sequence: sequence, Joins: joins, TotalHops: len(joins)}
}

// nearestExpansion finds the globally shortest path from any visited vertex
// to any remaining requested table.
func (g *Graph) nearestExpansion(visited, remaining map[string]bool) ([]string, []Edge) {
	sources := sortedKeys(visited)
	targets := sortedKeys(remaining)

	var bestPath []string
	var bestEdges []Edge
	for _, source := range sources {
		for _, target := range targets {
			path, edges := g.shortestPath(source, target)
			if path == nil {
				continue
			}
			if bestPath == nil || len(path) < len(bestPath) {
				bestPath, bestEdges = path, edges
			}
		}
	}
	return bestPath, bestEdges
}

type pathStep struct {
	prev string
	edge Edge
}

// shortestPath runs an unweighted BFS and returns the node sequence plus the
// edges consumed along it. Both are nil when target is unreachable.
func (g *Graph) shortestPath(from, to string) ([]string, []Edge) {
	if from == to {
		return []string{from}, nil
	}
	parents := map[string]pathStep{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range g.adj[current] {
			if _, seen := parents[edge.To]; seen {
				continue
			}
			parents[edge.To] = pathStep{prev: current, edge: edge}
			if edge.To == to {
				return rebuildPath(parents, from, to)
			}
			queue = append(queue, edge.To)
		}
	}
	return nil, nil
}

func rebuildPath(parents map[string]pathStep, from, to string) ([]string, []Edge) {
	var path []string
	var edges []Edge
	for current := to; current != from; current = parents[current].prev {
		step := parents[current]
		path = append(path, current)
		edges = append(edges, step.edge)
	}
	path = append(path, from)
	reverseStrings(path)
	reverseEdges(edges)
	return path, edges
}

func reverseStrings(values []string) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}

func reverseEdges(values []Edge) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}

// SearchByKeyword matches kw case-insensitively against table names,
// descriptions, and column names/descriptions, returning full table-info
// records, plus a glossary hit for every term containing kw.
func (g *Graph) SearchByKeyword(keyword string) []SearchHit {
	needle := strings.ToLower(keyword)
	var hits []SearchHit

	for _, name := range g.model.TableNames() {
		table := g.model.Tables[name]
		if !tableMatches(table, needle) {
			continue
		}
		info, _ := g.TableInfo(name)
		hits = append(hits, SearchHit{Kind: SearchHitTable, Table: &info})
	}

	terms := make([]string, 0, len(g.model.Glossary))
	for term := range g.model.Glossary {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		if strings.Contains(strings.ToLower(term), needle) {
			hits = append(hits, SearchHit{
				Kind:    SearchHitGlossary,
				Term:    term,
				Mapping: g.model.Glossary[term],
			})
		}
	}
	return hits
}

func tableMatches(table Table, needle string) bool {
	if strings.Contains(strings.ToLower(table.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(table.Description), needle) {
		return true
	}
	for _, col := range table.Columns {
		if strings.Contains(strings.ToLower(col.Name), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(col.Description), needle) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
