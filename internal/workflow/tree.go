package workflow

import (
	"math"
	"sort"

	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
)

// AssignedWorkerView is a ledger row resolved against the roster.
type AssignedWorkerView struct {
	models.RepairItemAssignedWorker
	WorkerName  string `json:"worker_name"`
	WorkerType  string `json:"worker_type"`
	Transferred bool   `json:"transferred"`
}

// Node is one repair item in the order forest.
type Node struct {
	models.RepairItem
	Children        []*Node                     `json:"children,omitempty"`
	Images          []models.RepairItemImage    `json:"images"`
	AssignedWorkers []AssignedWorkerView        `json:"assignedWorkers"`
	Transfers       []models.RepairItemTransfer `json:"transfers"`
	CanAssign       bool                        `json:"can_assign"`
	CanComplete     bool                        `json:"can_complete"`
}

func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// CategoryProgress counts leaves of one repair type.
type CategoryProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

type Progress struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Percentage int              `json:"percentage"`
	Repair     CategoryProgress `json:"repair"`
	Paint      CategoryProgress `json:"paint"`
}

// Tree is an arena of items keyed by id with a parent to children index.
type Tree struct {
	nodes map[string]*Node
	roots []*Node
}

// BuildTree arranges the flat rows of one order into a forest. Items whose parent
// is unknown are kept as roots so nothing is dropped from the view.
func BuildTree(
	items []models.RepairItem,
	assignments []models.RepairItemAssignedWorker,
	transfers []models.RepairItemTransfer,
	images []models.RepairItemImage,
	roster []models.RepairWorker,
) *Tree {
	t := &Tree{nodes: make(map[string]*Node, len(items))}
	for _, it := range items {
		t.nodes[it.ID] = &Node{
			RepairItem:      it,
			Images:          []models.RepairItemImage{},
			AssignedWorkers: []AssignedWorkerView{},
			Transfers:       []models.RepairItemTransfer{},
		}
	}

	for _, it := range items {
		n := t.nodes[it.ID]
		if parent, ok := t.nodes[it.ParentID]; ok && it.ParentID != it.ID {
			parent.Children = append(parent.Children, n)
			continue
		}
		t.roots = append(t.roots, n)
	}

	workers := make(map[string]models.RepairWorker, len(roster))
	for _, w := range roster {
		workers[w.ID] = w
	}

	transferredFrom := map[string]map[string]bool{}
	for _, tr := range transfers {
		n, ok := t.nodes[tr.ItemID]
		if !ok {
			continue
		}
		n.Transfers = append(n.Transfers, tr)
		if transferredFrom[tr.ItemID] == nil {
			transferredFrom[tr.ItemID] = map[string]bool{}
		}
		transferredFrom[tr.ItemID][tr.FromWorkerID] = true
	}

	for _, a := range assignments {
		n, ok := t.nodes[a.ItemID]
		if !ok {
			continue
		}
		w := workers[a.WorkerID]
		n.AssignedWorkers = append(n.AssignedWorkers, AssignedWorkerView{
			RepairItemAssignedWorker: a,
			WorkerName:               w.Name,
			WorkerType:               w.WorkerType,
			// A worker who handed the item over and then got it back is active again.
			Transferred: transferredFrom[a.ItemID][a.WorkerID] && n.WorkerID != a.WorkerID,
		})
	}

	for _, img := range images {
		if n, ok := t.nodes[img.ItemID]; ok {
			n.Images = append(n.Images, img)
		}
	}

	sortNodes(t.roots)
	for _, n := range t.nodes {
		sortNodes(n.Children)
		sort.SliceStable(n.Images, func(i, j int) bool {
			return n.Images[i].CapturedAt.Before(n.Images[j].CapturedAt)
		})
		sort.SliceStable(n.Transfers, func(i, j int) bool {
			return n.Transfers[i].TransferredAt.Before(n.Transfers[j].TransferredAt)
		})
		sort.SliceStable(n.AssignedWorkers, func(i, j int) bool {
			a, b := n.AssignedWorkers[i], n.AssignedWorkers[j]
			if !a.AssignedAt.Equal(b.AssignedAt) {
				return a.AssignedAt.Before(b.AssignedAt)
			}
			return a.WorkerID < b.WorkerID
		})
	}
	return t
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Roots returns the top-level items in display order. Never nil.
func (t *Tree) Roots() []*Node {
	if t.roots == nil {
		return []*Node{}
	}
	return t.roots
}

func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Leaves returns the items that count toward progress: children of groups and
// childless top-level items.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, r := range t.roots {
		if r.HasChildren() {
			out = append(out, r.Children...)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Progress recomputes completion over the leaves.
func (t *Tree) Progress() Progress {
	var p Progress
	for _, n := range t.Leaves() {
		done := n.Status == models.StatusCompleted
		p.Total++
		if done {
			p.Completed++
		}
		var cat *CategoryProgress
		switch n.RepairType {
		case models.RepairTypeMechanical:
			cat = &p.Repair
		case models.RepairTypePaint:
			cat = &p.Paint
		}
		if cat != nil {
			cat.Total++
			if done {
				cat.Completed++
			}
		}
	}
	p.Percentage = Percentage(p.Completed, p.Total)
	return p
}

// Percentage is round(100*completed/total), 0 for an empty order.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// Annotate sets the caller's capability flags on every node.
func (t *Tree) Annotate(p permission.Principal) {
	for _, n := range t.nodes {
		if n.HasChildren() {
			n.CanAssign, n.CanComplete = false, false
			continue
		}
		n.CanAssign = permission.CanAssign(p, n.RepairItem) || permission.CanSelfAssign(p, n.RepairItem)
		n.CanComplete = n.Status == models.StatusInProgress && permission.CanComplete(p, n.RepairItem)
	}
}

// DeriveOrderStatus computes the aggregate order status from its leaf items.
func (t *Tree) DeriveOrderStatus() string {
	leaves := t.Leaves()
	if len(leaves) == 0 {
		return models.StatusPending
	}
	completed, started := 0, 0
	for _, n := range leaves {
		switch n.Status {
		case models.StatusCompleted:
			completed++
			started++
		case models.StatusInProgress:
			started++
		}
	}
	switch {
	case completed == len(leaves):
		return models.StatusCompleted
	case started > 0:
		return models.StatusInProgress
	}
	return models.StatusPending
}
