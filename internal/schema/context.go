package schema

// Mode selects how schema lookups are answered.
type Mode string

const (
	// ModeMetadata answers lookups with flat scans over the catalog.
	ModeMetadata Mode = "metadata"
	// ModeGraph answers lookups through the join graph, including
	// multi-hop join hints.
	ModeGraph Mode = "graph"
)

// JoinHint describes how two tables can be joined. Condition, Type and
// Description are set when a single relationship connects them directly;
// Path is set by the graph-backed context when intermediate hops are needed.
type JoinHint struct {
	Condition   string    `json:"join_condition,omitempty"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Path        *JoinPath `json:"path,omitempty"`
}

// Context is the schema lookup capability shared by both context modes. The
// implementation is chosen once at construction; all lookups are read-only
// and safe for concurrent use.
type Context interface {
	ListTables() []TableSummary
	TableInfo(name string) (TableInfo, bool)
	SearchByKeyword(keyword string) []SearchHit
	JoinHint(table1, table2 string) (JoinHint, bool)
	ContextText() string
}

// NewContext builds the context implementation for the configured mode.
func NewContext(mode Mode, model *Model) (Context, error) {
	switch mode {
	case ModeMetadata:
		return &MetadataContext{model: model, graph: NewGraph(model)}, nil
	case ModeGraph:
		return &GraphContext{model: model, graph: NewGraph(model)}, nil
	default:
		return nil, &UnknownModeError{Mode: mode}
	}
}

// UnknownModeError reports an unsupported context mode.
type UnknownModeError struct {
	Mode Mode
}

func (e *UnknownModeError) Error() string {
	return "unknown schema context mode " + string(e.Mode)
}

// MetadataContext answers lookups with direct catalog scans. Join hints only
// cover tables connected by a single relationship.
type MetadataContext struct {
	model *Model
	graph *Graph
}

func (c *MetadataContext) ListTables() []TableSummary {
	return c.graph.ListTables()
}

func (c *MetadataContext) TableInfo(name string) (TableInfo, bool) {
	return c.graph.TableInfo(name)
}

func (c *MetadataContext) SearchByKeyword(keyword string) []SearchHit {
	return c.graph.SearchByKeyword(keyword)
}

// JoinHint scans relationships bidirectionally for a direct connection.
func (c *MetadataContext) JoinHint(table1, table2 string) (JoinHint, bool) {
	for _, rel := range c.model.Relationships {
		forward := rel.From.Table == table1 && rel.To.Table == table2
		backward := rel.From.Table == table2 && rel.To.Table == table1
		if forward || backward {
			return JoinHint{
				Condition:   rel.Condition(),
				Type:        rel.Type,
				Description: rel.Description,
			}, true
		}
	}
	return JoinHint{}, false
}

func (c *MetadataContext) ContextText() string {
	return c.model.ContextText()
}

// GraphContext answers lookups through the join graph, so join hints can
// route through intermediate tables.
type GraphContext struct {
	model *Model
	graph *Graph
}

// Graph exposes the underlying join graph for path queries.
func (c *GraphContext) Graph() *Graph {
	return c.graph
}

func (c *GraphContext) ListTables() []TableSummary {
	return c.graph.ListTables()
}

func (c *GraphContext) TableInfo(name string) (TableInfo, bool) {
	return c.graph.TableInfo(name)
}

func (c *GraphContext) SearchByKeyword(keyword string) []SearchHit {
	return c.graph.SearchByKeyword(keyword)
}

// JoinHint returns the shortest join route. A single-hop route is rendered
// as a direct hint, longer routes carry the full path.
func (c *GraphContext) JoinHint(table1, table2 string) (JoinHint, bool) {
	path := c.graph.FindJoinPath(table1, table2)
	if path == nil {
		return JoinHint{}, false
	}
	if path.HopCount == 1 {
		return JoinHint{
			Condition: path.Joins[0].Condition,
			Type:      path.Joins[0].Type,
			Path:      path,
		}, true
	}
	return JoinHint{Path: path}, true
}

func (c *GraphContext) ContextText() string {
	return c.model.ContextText()
}
