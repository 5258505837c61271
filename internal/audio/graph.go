package audio

import (
	"sync"

	"github.com/777genius/playto/internal/errorhandler"
	"github.com/777genius/playto/internal/logging"
)

// NodeKind selects the unit a graph node hosts.
type NodeKind int

const (
	// OutputNode renders to a hardware device (the system default unless rebound).
	OutputNode NodeKind = iota + 1
	// FilePlayerNode generates audio from a scheduled file.
	FilePlayerNode
)

func (k NodeKind) String() string {
	switch k {
	case OutputNode:
		return "output"
	case FilePlayerNode:
		return "file-player"
	default:
		return "unknown"
	}
}

// Node identifies a node within its Graph.
type Node int

type graphState int

const (
	stateNew graphState = iota
	stateOpen
	stateInitialized
	stateRunning
	stateClosed
)

type graphNode struct {
	kind   NodeKind
	player *FilePlayer
	device DeviceID
}

type connection struct {
	src    Node
	srcBus uint32
}

// Graph is a small processing graph of a file player feeding an output node.
// Open instantiates units without touching hardware; Initialize allocates the
// output stream on the backend, so device binding must happen before it.
type Graph struct {
	backend Backend

	mu     sync.Mutex
	state  graphState
	nodes  []*graphNode
	inputs map[Node]connection
	unit   OutputUnit
}

// NewGraph returns an empty graph on backend.
func NewGraph(backend Backend) *Graph {
	return &Graph{
		backend: backend,
		inputs:  make(map[Node]connection),
	}
}

// AddNode adds a node of kind. A graph holds at most one output node.
func (g *Graph) AddNode(kind NodeKind) (Node, error) {
	op := "add " + kind.String() + " node failed"

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state >= stateInitialized {
		return 0, errorhandler.Check(errorhandler.StatusInitialized, op)
	}
	switch kind {
	case OutputNode:
		for _, n := range g.nodes {
			if n.kind == OutputNode {
				return 0, errorhandler.Check(errorhandler.StatusInvalidConnection, op)
			}
		}
	case FilePlayerNode:
	default:
		return 0, errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}

	n := &graphNode{kind: kind}
	if g.state == stateOpen && kind == FilePlayerNode {
		n.player = newFilePlayer()
	}
	g.nodes = append(g.nodes, n)
	return Node(len(g.nodes) - 1), nil
}

// Open instantiates the units of every node.
func (g *Graph) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateNew:
	case stateClosed:
		return errorhandler.Check(errorhandler.StatusUninitialized, "open graph failed")
	default:
		return nil
	}

	for _, n := range g.nodes {
		if n.kind == FilePlayerNode && n.player == nil {
			n.player = newFilePlayer()
		}
	}
	g.state = stateOpen
	return nil
}

// NodeFilePlayer returns the unit hosted by a file-player node. The graph must be open.
func (g *Graph) NodeFilePlayer(node Node) (*FilePlayer, error) {
	const op = "get file player unit failed"

	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(node, op)
	if err != nil {
		return nil, err
	}
	if n.kind != FilePlayerNode {
		return nil, errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}
	if n.player == nil {
		return nil, errorhandler.Check(errorhandler.StatusUninitialized, op)
	}
	return n.player, nil
}

// ConnectNodeInput connects output bus srcBus of src to input bus dstBus of
// dst. Units expose a single bus 0; only file player → output is valid.
func (g *Graph) ConnectNodeInput(src Node, srcBus uint32, dst Node, dstBus uint32) error {
	const op = "connect node input failed"

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state >= stateInitialized {
		return errorhandler.Check(errorhandler.StatusInitialized, op)
	}
	s, err := g.nodeLocked(src, op)
	if err != nil {
		return err
	}
	d, err := g.nodeLocked(dst, op)
	if err != nil {
		return err
	}
	if srcBus != 0 || dstBus != 0 || s.kind != FilePlayerNode || d.kind != OutputNode {
		return errorhandler.Check(errorhandler.StatusInvalidConnection, op)
	}

	g.inputs[dst] = connection{src: src, srcBus: srcBus}
	return nil
}

// SetOutputDevice binds an output node to device. It must be called after
// Open and before Initialize; rebinding an initialized graph fails with
// StatusInitialized.
func (g *Graph) SetOutputDevice(node Node, device DeviceID) error {
	const op = "set output device failed"

	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateOpen:
	case stateInitialized, stateRunning:
		return errorhandler.Check(errorhandler.StatusInitialized, op)
	default:
		return errorhandler.Check(errorhandler.StatusUninitialized, op)
	}

	n, err := g.nodeLocked(node, op)
	if err != nil {
		return err
	}
	if n.kind != OutputNode {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}
	n.device = device
	return nil
}

// Initialize allocates the output stream for format on the bound device.
func (g *Graph) Initialize(format StreamFormat) error {
	const op = "initialize graph failed"

	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateOpen:
	case stateInitialized, stateRunning:
		return nil
	default:
		return errorhandler.Check(errorhandler.StatusUninitialized, op)
	}
	if format.SampleRate <= 0 {
		return errorhandler.Check(errorhandler.StatusInvalidPropertyValue, op)
	}

	var out *graphNode
	var outID Node
	for i, n := range g.nodes {
		if n.kind == OutputNode {
			out, outID = n, Node(i)
		}
	}
	if out == nil {
		return errorhandler.Check(errorhandler.StatusNodeNotFound, op)
	}
	conn, ok := g.inputs[outID]
	if !ok {
		return errorhandler.Check(errorhandler.StatusInvalidConnection, op)
	}
	player := g.nodes[conn.src].player

	channels := int(format.ChannelsPerFrame)
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	player.setOutputFormat(format.SampleRate, channels)

	unit, err := g.backend.OpenOutput(OutputConfig{
		Device:     out.device,
		SampleRate: uint32(format.SampleRate),
		Channels:   uint32(channels),
	}, player.Render)
	if err != nil {
		return errorhandler.Wrap(err, errorhandler.StatusOf(err), op)
	}

	g.unit = unit
	g.state = stateInitialized
	logging.Debug("Graph initialized: device=%d, %.0f Hz, %d ch", out.device, format.SampleRate, channels)
	return nil
}

// Start begins rendering.
func (g *Graph) Start() error {
	const op = "start graph failed"

	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateRunning:
		return nil
	case stateInitialized:
	default:
		return errorhandler.Check(errorhandler.StatusUninitialized, op)
	}
	if err := g.unit.Start(); err != nil {
		return errorhandler.Wrap(err, errorhandler.StatusOf(err), op)
	}
	g.state = stateRunning
	return nil
}

// Stop halts rendering. Stopping a graph that is not running is a no-op.
func (g *Graph) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopLocked()
}

func (g *Graph) stopLocked() error {
	if g.state != stateRunning {
		return nil
	}
	g.state = stateInitialized
	if err := g.unit.Stop(); err != nil {
		return errorhandler.Wrap(err, errorhandler.StatusOf(err), "stop graph failed")
	}
	return nil
}

// Uninitialize releases the output stream, stopping it first if needed.
func (g *Graph) Uninitialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uninitializeLocked()
}

func (g *Graph) uninitializeLocked() error {
	err := g.stopLocked()
	if g.state == stateInitialized {
		g.unit.Uninit()
		g.unit = nil
		g.state = stateOpen
	}
	return err
}

// Close uninitializes the graph if needed and drops every node.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == stateClosed {
		return nil
	}
	err := g.uninitializeLocked()
	g.nodes = nil
	g.inputs = make(map[Node]connection)
	g.state = stateClosed
	return err
}

func (g *Graph) nodeLocked(node Node, op string) (*graphNode, error) {
	if int(node) < 0 || int(node) >= len(g.nodes) {
		return nil, errorhandler.Check(errorhandler.StatusNodeNotFound, op)
	}
	return g.nodes[node], nil
}

// BuildGraph constructs file player → output, opens it, binds device when it
// is not DefaultDevice, then initializes for format. On failure the partial
// graph is closed.
func BuildGraph(backend Backend, format StreamFormat, device DeviceID) (*Graph, *FilePlayer, error) {
	g := NewGraph(backend)

	player, err := buildGraph(g, format, device)
	if err != nil {
		if cerr := g.Close(); cerr != nil {
			logging.Warn("Failed to close partial graph: %v", cerr)
		}
		return nil, nil, err
	}
	return g, player, nil
}

func buildGraph(g *Graph, format StreamFormat, device DeviceID) (*FilePlayer, error) {
	outputNode, err := g.AddNode(OutputNode)
	if err != nil {
		return nil, err
	}
	fileNode, err := g.AddNode(FilePlayerNode)
	if err != nil {
		return nil, err
	}
	if err := g.Open(); err != nil {
		return nil, err
	}
	player, err := g.NodeFilePlayer(fileNode)
	if err != nil {
		return nil, err
	}
	if err := g.ConnectNodeInput(fileNode, 0, outputNode, 0); err != nil {
		return nil, err
	}
	if device != DefaultDevice {
		if err := g.SetOutputDevice(outputNode, device); err != nil {
			return nil, err
		}
	}
	if err := g.Initialize(format); err != nil {
		return nil, err
	}
	return player, nil
}
