// Package graph provides a small sequential flow executor used to drive the
// consultation pass pipeline. Each node hands its state to exactly one
// successor; condition nodes pick the successor at runtime. There is no
// parallel execution: pass N consumes pass N-1's output by construction.
package graph

import (
	"context"
	"fmt"
)

// NodeType represents the type of a node in the flow
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeLLM       NodeType = "llm"
	NodeTypeCondition NodeType = "condition"
	NodeTypeCustom    NodeType = "custom"
)

// State represents the execution state passed between nodes
type State map[string]any

// NodeFunc is the function executed by a node
type NodeFunc func(context.Context, State) (State, error)

// ConditionFunc evaluates a condition and returns a routing key
type ConditionFunc func(context.Context, State) (string, error)

// Node represents one step in the flow
type Node struct {
	Name      string
	Type      NodeType
	Execute   NodeFunc
	Condition ConditionFunc     // Only for condition nodes
	Next      string            // Successor for linear nodes
	NextMap   map[string]string // For condition nodes: routing key -> successor
}

// Graph represents a sequential execution flow
type Graph struct {
	nodes     map[string]*Node
	startNode string
	endNode   string
	maxVisits int
}

// SetMaxVisits bounds how many times any single node may run in one execution.
func (g *Graph) SetMaxVisits(maxVisits int) {
	if maxVisits > 0 {
		g.maxVisits = maxVisits
	}
}

// Execute runs the flow from the start node until the end node is reached.
// On node error, execution stops and the state accumulated so far is returned
// together with the error so the caller can inspect partial progress.
func (g *Graph) Execute(ctx context.Context, initialState State) (State, error) {
	if g.startNode == "" {
		return nil, fmt.Errorf("start node not set")
	}

	state := initialState
	if state == nil {
		state = make(State)
	}

	visits := make(map[string]int)
	current := g.startNode

	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("node %s not found", current)
		}

		visits[current]++
		if visits[current] > g.maxVisits {
			return state, fmt.Errorf("node %s exceeded max visits (%d)", current, g.maxVisits)
		}

		if node.Type == NodeTypeCondition {
			key, err := node.Condition(ctx, state)
			if err != nil {
				return state, fmt.Errorf("condition %s: %w", current, err)
			}
			next, ok := node.NextMap[key]
			if !ok {
				return state, fmt.Errorf("condition %s produced unknown route %q", current, key)
			}
			current = next
			continue
		}

		next, err := node.Execute(ctx, state)
		if err != nil {
			return state, err
		}
		if next != nil {
			state = next
		}

		if current == g.endNode {
			return state, nil
		}
		if node.Next == "" {
			return state, fmt.Errorf("node %s has no successor", current)
		}
		current = node.Next
	}
}

// Builder assembles flows fluently.
type Builder struct {
	graph *Graph
}

// NewBuilder creates a new flow builder
func NewBuilder() *Builder {
	return &Builder{
		graph: &Graph{
			nodes:     make(map[string]*Node),
			maxVisits: 10,
		},
	}
}

// AddNode adds a linear node to the flow
func (b *Builder) AddNode(name string, nodeType NodeType, execute NodeFunc) *Builder {
	if name == "" {
		panic("node name cannot be empty")
	}
	if execute == nil {
		panic(fmt.Sprintf("node %s must have non-nil Execute function", name))
	}
	if _, exists := b.graph.nodes[name]; exists {
		panic(fmt.Sprintf("node %s already exists", name))
	}
	b.graph.nodes[name] = &Node{Name: name, Type: nodeType, Execute: execute}
	if nodeType == NodeTypeStart {
		b.graph.startNode = name
	}
	if nodeType == NodeTypeEnd {
		b.graph.endNode = name
	}
	return b
}

// AddConditionNode adds a routing node whose successor depends on the
// condition's return value.
func (b *Builder) AddConditionNode(name string, condition ConditionFunc, nextMap map[string]string) *Builder {
	if name == "" {
		panic("node name cannot be empty")
	}
	if condition == nil {
		panic(fmt.Sprintf("condition node %s must have non-nil Condition function", name))
	}
	if _, exists := b.graph.nodes[name]; exists {
		panic(fmt.Sprintf("node %s already exists", name))
	}
	b.graph.nodes[name] = &Node{
		Name:      name,
		Type:      NodeTypeCondition,
		Condition: condition,
		NextMap:   nextMap,
	}
	return b
}

// AddEdge links a linear node to its successor.
func (b *Builder) AddEdge(from, to string) *Builder {
	node, ok := b.graph.nodes[from]
	if !ok {
		panic(fmt.Sprintf("node %s not found", from))
	}
	if node.Type == NodeTypeCondition {
		panic(fmt.Sprintf("condition node %s routes via NextMap, not edges", from))
	}
	if node.Next != "" {
		panic(fmt.Sprintf("node %s already has a successor", from))
	}
	node.Next = to
	return b
}

// SetStart sets the start node explicitly.
func (b *Builder) SetStart(name string) *Builder {
	if _, ok := b.graph.nodes[name]; !ok {
		panic(fmt.Sprintf("node %s not found", name))
	}
	b.graph.startNode = name
	return b
}

// SetEnd sets the end node explicitly.
func (b *Builder) SetEnd(name string) *Builder {
	if _, ok := b.graph.nodes[name]; !ok {
		panic(fmt.Sprintf("node %s not found", name))
	}
	b.graph.endNode = name
	return b
}

// Build finalizes the flow.
func (b *Builder) Build() *Graph {
	return b.graph
}
