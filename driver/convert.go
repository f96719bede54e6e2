package driver

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CaliLuke/go-ogm/ogm"
)

// convertValue turns a value returned by the neo4j driver into the form the
// ogm resolver understands. Nodes and relationships become records,
// temporal values become time.Time, and containers are converted
// element by element.
func convertValue(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		return nodeRecord(val)
	case *neo4j.Node:
		if val == nil {
			return nil
		}
		return nodeRecord(*val)
	case neo4j.Relationship:
		return relRecord(val)
	case *neo4j.Relationship:
		if val == nil {
			return nil
		}
		return relRecord(*val)
	case neo4j.Path:
		// Nodes and relationships interleaved in path order.
		out := make([]any, 0, len(val.Nodes)+len(val.Relationships))
		for i, n := range val.Nodes {
			out = append(out, nodeRecord(n))
			if i < len(val.Relationships) {
				out = append(out, relRecord(val.Relationships[i]))
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	case map[string]any:
		return convertProps(val)
	case neo4j.Date:
		return val.Time()
	case neo4j.LocalDateTime:
		return val.Time()
	case neo4j.LocalTime:
		return val.Time()
	case neo4j.Time:
		return val.Time()
	case neo4j.Duration:
		return val.String()
	default:
		return v
	}
}

func convertProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = convertValue(v)
	}
	return out
}

func nodeRecord(n neo4j.Node) ogm.NodeRecord {
	return ogm.NodeRecord{
		ElementID: n.ElementId,
		Labels:    n.Labels,
		Props:     convertProps(n.Props),
	}
}

func relRecord(r neo4j.Relationship) ogm.RelRecord {
	return ogm.RelRecord{
		ElementID:      r.ElementId,
		Type:           r.Type,
		StartElementID: r.StartElementId,
		EndElementID:   r.EndElementId,
		Props:          convertProps(r.Props),
	}
}
