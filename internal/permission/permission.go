// Package permission decides what a signed-in principal may do to a repair item.
// Every function here is pure: the result depends only on the arguments.
package permission

import "garage-repair-api-server/internal/models"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleWorker     Role = "worker"
	RolePaint      Role = "paint"
	RolePaintLead  Role = "paint_lead"
	RoleWorkerLead Role = "worker_lead"
	RoleSales      Role = "sales"
)

var roles = map[Role]bool{
	RoleAdmin: true, RoleWorker: true, RolePaint: true,
	RolePaintLead: true, RoleWorkerLead: true, RoleSales: true,
}

// ParseRole rejects role strings outside the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, roles[r]
}

func (r Role) IsLead() bool {
	return r == RolePaintLead || r == RoleWorkerLead
}

// Principal is the acting user as extracted from the bearer token.
type Principal struct {
	UserID      string
	Role        Role
	WorkerID    string
	DisplayName string
}

// WorkerTypeFor returns the worker type allowed on items of the given repair type,
// or "" for uncategorized items.
func WorkerTypeFor(repairType string) string {
	switch repairType {
	case models.RepairTypeMechanical:
		return models.WorkerTypeRepair
	case models.RepairTypePaint:
		return models.WorkerTypePaint
	}
	return ""
}

// CanAssign reports whether p may assign any eligible worker to the item.
func CanAssign(p Principal, item models.RepairItem) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RolePaintLead:
		return item.RepairType == models.RepairTypePaint
	case RoleWorkerLead:
		return item.RepairType == models.RepairTypeMechanical
	}
	return false
}

// CanSelfAssign reports whether p, a plain worker, may put themselves on the item.
func CanSelfAssign(p Principal, item models.RepairItem) bool {
	if p.WorkerID == "" {
		return false
	}
	switch p.Role {
	case RoleWorker:
		return item.RepairType == models.RepairTypeMechanical
	case RolePaint:
		return item.RepairType == models.RepairTypePaint
	}
	return false
}

// CanAssignWorker combines CanAssign and the self-only rule for a concrete worker.
func CanAssignWorker(p Principal, item models.RepairItem, workerID string) bool {
	if CanAssign(p, item) {
		return true
	}
	return CanSelfAssign(p, item) && p.WorkerID == workerID
}

func CanComplete(p Principal, item models.RepairItem) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.WorkerID != "" && p.WorkerID == item.WorkerID
}

// CanActAs reports whether p may start or hand over work in the name of workerID.
func CanActAs(p Principal, item models.RepairItem, workerID string) bool {
	if CanAssign(p, item) {
		return true
	}
	return p.WorkerID != "" && p.WorkerID == workerID
}

// CanManageOrder covers order-scoped edits such as the waiting-for-parts flag.
func CanManageOrder(p Principal) bool {
	return p.Role == RoleAdmin || p.Role.IsLead()
}

func CanDeleteOrder(p Principal) bool {
	return p.Role == RoleAdmin
}

// CanCreateOrder covers vehicle intake and adding items to an order.
func CanCreateOrder(p Principal) bool {
	return p.Role == RoleAdmin || p.Role == RoleSales || p.Role.IsLead()
}

// CanManageRoster covers creating workers and user accounts.
func CanManageRoster(p Principal) bool {
	return p.Role == RoleAdmin
}

// EligibleWorkers filters the roster to the active workers p may assign to an item
// of repairType. Plain workers only ever see themselves.
func EligibleWorkers(p Principal, repairType string, roster []models.RepairWorker) []models.RepairWorker {
	out := []models.RepairWorker{}
	if p.Role == RoleSales {
		return out
	}
	wantType := WorkerTypeFor(repairType)
	selfOnly := p.Role == RoleWorker || p.Role == RolePaint
	if selfOnly && p.WorkerID == "" {
		return out
	}
	for _, w := range roster {
		if !w.Active {
			continue
		}
		if wantType != "" && w.WorkerType != wantType {
			continue
		}
		if selfOnly && w.ID != p.WorkerID {
			continue
		}
		out = append(out, w)
	}
	return out
}
