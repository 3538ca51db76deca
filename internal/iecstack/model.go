package iecstack

import (
	"strings"
	"sync"

	"github.com/vuuvv/errors"
)

// IedModel is the root of a simulated IED's data model tree (spec.md §3).
type IedModel struct {
	Name            string
	LogicalDevices  map[string]*LogicalDevice
	order           []string // logical device insertion order, for deterministic browse/list output
	mu              sync.RWMutex
}

// NewIedModel creates an empty model rooted at name.
func NewIedModel(name string) *IedModel {
	if name == "" {
		name = "IED"
	}
	return &IedModel{Name: name, LogicalDevices: make(map[string]*LogicalDevice)}
}

// AddLogicalDevice creates (or returns the existing) logical device named
// name under model.
func (m *IedModel) AddLogicalDevice(name string) *LogicalDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ld, ok := m.LogicalDevices[name]; ok {
		return ld
	}
	ld := &LogicalDevice{Name: name, LogicalNodes: make(map[string]*LogicalNode)}
	m.LogicalDevices[name] = ld
	m.order = append(m.order, name)
	return ld
}

// LogicalDeviceNames returns logical device names in creation order.
func (m *IedModel) LogicalDeviceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Destroy releases the model. There is nothing to free beyond letting the
// garbage collector reclaim the tree, but the method exists so callers
// (registry.ServerInstance) have a uniform destroy step to call in the
// ordered teardown spec.md §3 mandates.
func (m *IedModel) Destroy() {}

// LogicalDevice is one LD in the tree.
type LogicalDevice struct {
	Name         string
	LogicalNodes map[string]*LogicalNode
	order        []string
}

// AddLogicalNode creates (or returns the existing) logical node named
// name under ld.
func (ld *LogicalDevice) AddLogicalNode(name string) *LogicalNode {
	if ln, ok := ld.LogicalNodes[name]; ok {
		return ln
	}
	ln := &LogicalNode{
		Name:       name,
		DataObjects: make(map[string]*DataObject),
		DataSets:    make(map[string]*DataSet),
	}
	ld.LogicalNodes[name] = ln
	ld.order = append(ld.order, name)
	return ln
}

// LogicalNodeNames returns logical node names in creation order.
func (ld *LogicalDevice) LogicalNodeNames() []string {
	out := make([]string, len(ld.order))
	copy(out, ld.order)
	return out
}

// LogicalNode is one LN in the tree, owning data objects, data sets, and
// control blocks (spec.md §3's model tree).
type LogicalNode struct {
	Name        string
	DataObjects map[string]*DataObject
	doOrder     []string
	DataSets    map[string]*DataSet
	dsOrder     []string

	ReportControls []*ReportControlBlock
	GSEControls    []*GSEControlBlock
	SVControls     []*SVControlBlock
	LogControls    []*LogControlBlock
	Logs           map[string]*Log
	SettingGroup   *SettingGroupControlBlock
}

// AddDataObject creates (or returns the existing) top-level data object
// named name under ln.
func (ln *LogicalNode) AddDataObject(name string) *DataObject {
	if do, ok := ln.DataObjects[name]; ok {
		return do
	}
	do := &DataObject{Name: name, Children: make(map[string]Node)}
	ln.DataObjects[name] = do
	ln.doOrder = append(ln.doOrder, name)
	return do
}

// DataObjectNames returns top-level data object names in creation order.
func (ln *LogicalNode) DataObjectNames() []string {
	out := make([]string, len(ln.doOrder))
	copy(out, ln.doOrder)
	return out
}

// AddDataSet creates a data set named name under ln.
func (ln *LogicalNode) AddDataSet(name string) *DataSet {
	ds := &DataSet{Name: name}
	ln.DataSets[name] = ds
	ln.dsOrder = append(ln.dsOrder, name)
	return ds
}

// DataSetNames returns data set names in creation order.
func (ln *LogicalNode) DataSetNames() []string {
	out := make([]string, len(ln.dsOrder))
	copy(out, ln.dsOrder)
	return out
}

// EnsureLog returns the Log named name under ln, creating it (and its
// backing map) if this is the first reference, per spec.md §4.7's "each
// distinct logname creates a Log exactly once".
func (ln *LogicalNode) EnsureLog(name string) *Log {
	if ln.Logs == nil {
		ln.Logs = make(map[string]*Log)
	}
	if lg, ok := ln.Logs[name]; ok {
		return lg
	}
	lg := &Log{Name: name}
	ln.Logs[name] = lg
	return lg
}

// Node is either a DataObject or a DataAttribute — the two kinds that can
// appear as a child under a LogicalNode or a constructed DataAttribute,
// per spec.md §3's model tree.
type Node interface {
	NodeName() string
}

// DataObject is a DO or nested DO, containing further DOs or DAs.
type DataObject struct {
	Name     string
	Children map[string]Node
	order    []string
}

func (do *DataObject) NodeName() string { return do.Name }

// AddChild registers child under do, preserving insertion order.
func (do *DataObject) AddChild(child Node) {
	if _, exists := do.Children[child.NodeName()]; !exists {
		do.order = append(do.order, child.NodeName())
	}
	do.Children[child.NodeName()] = child
}

// ChildNames returns child names in creation order.
func (do *DataObject) ChildNames() []string {
	out := make([]string, len(do.order))
	copy(out, do.order)
	return out
}

// DataAttribute is a DA leaf (or a constructed DA with sub-attributes),
// per spec.md §3 and §4.7.
type DataAttribute struct {
	Name     string
	Type     DataType
	FC       FC
	Value    *MmsValue // nil for constructed attributes or attributes with no initial value
	Children map[string]Node // non-nil only when Type == TypeConstructed
	order    []string
	mu       sync.RWMutex
}

func (da *DataAttribute) NodeName() string { return da.Name }

// AddChild registers a sub-attribute under a constructed DataAttribute.
func (da *DataAttribute) AddChild(child Node) {
	if da.Children == nil {
		da.Children = make(map[string]Node)
	}
	if _, exists := da.Children[child.NodeName()]; !exists {
		da.order = append(da.order, child.NodeName())
	}
	da.Children[child.NodeName()] = child
}

// ChildNames returns sub-attribute names in creation order.
func (da *DataAttribute) ChildNames() []string {
	out := make([]string, len(da.order))
	copy(out, da.order)
	return out
}

// Get returns the attribute's current value.
func (da *DataAttribute) Get() *MmsValue {
	da.mu.RLock()
	defer da.mu.RUnlock()
	if da.Value == nil {
		return nil
	}
	v := *da.Value
	return &v
}

// Set updates the attribute's current value. Callers resolving a
// reference from server.set_data_value must hold the stack's data-model
// mutex per spec.md §4.5; DataAttribute.Set provides that critical
// section itself so callers do not need a separate lock.
func (da *DataAttribute) Set(v MmsValue) {
	da.mu.Lock()
	defer da.mu.Unlock()
	da.Value = &v
}

// DataSetEntry is one FCDA reference inside a DataSet.
type DataSetEntry struct {
	Reference string
}

// DataSet is a named, ordered collection of FCDA references.
type DataSet struct {
	Name    string
	Entries []DataSetEntry
}

// AddEntry appends ref to ds, skipping empty references per spec.md §4.7.
func (ds *DataSet) AddEntry(ref string) {
	if ref == "" {
		return
	}
	ds.Entries = append(ds.Entries, DataSetEntry{Reference: ref})
}

// ResolveNode walks model per the IEC 61850 object reference grammar
// "<ld>/<ln>.<do>.<do-or-da>...<da>" and returns the leaf node (a
// *DataObject or *DataAttribute), or an error if any path segment is
// missing. The reference is split on the first "/" (logical device name)
// and then on "."; the first "."-segment is the LN name and the rest is
// the data path — matching how every reference in spec.md's examples
// (e.g. "PROT/XCBR1.Pos.stVal") is shaped.
func ResolveNode(model *IedModel, reference string) (Node, error) {
	ldName, rest, ok := strings.Cut(reference, "/")
	if !ok {
		return nil, errors.Errorf("malformed reference %q: missing logical device", reference)
	}
	segments := strings.Split(rest, ".")
	if len(segments) < 2 {
		return nil, errors.Errorf("malformed reference %q: missing logical node or data path", reference)
	}
	lnName := segments[0]
	path := segments[1:]

	model.mu.RLock()
	ld, ok := model.LogicalDevices[ldName]
	model.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("reference %q: logical device %q not found", reference, ldName)
	}
	ln, ok := ld.LogicalNodes[lnName]
	if !ok {
		return nil, errors.Errorf("reference %q: logical node %q not found", reference, lnName)
	}

	do, ok := ln.DataObjects[path[0]]
	if !ok {
		return nil, errors.Errorf("reference %q: data object %q not found", reference, path[0])
	}
	var current Node = do
	for _, name := range path[1:] {
		children := childrenOf(current)
		if children == nil {
			return nil, errors.Errorf("reference %q: %q has no children", reference, name)
		}
		next, ok := children[name]
		if !ok {
			return nil, errors.Errorf("reference %q: child %q not found", reference, name)
		}
		current = next
	}
	return current, nil
}

func childrenOf(n Node) map[string]Node {
	switch v := n.(type) {
	case *DataObject:
		return v.Children
	case *DataAttribute:
		return v.Children
	default:
		return nil
	}
}
