package auth

import (
	"fmt"
	"sort"
)

// Action is one of the four CRUD verbs a grant can carry.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// CRUD lists every action in canonical order.
var CRUD = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// ValidateAction reports whether a is a known action.
func ValidateAction(a Action) bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ExpandWildcard expands "*" to all CRUD actions and returns any other
// value unchanged.
func ExpandWildcard(action string) []Action {
	if action == "*" {
		return append([]Action(nil), CRUD...)
	}
	return []Action{Action(action)}
}

// ResourceType names a protected entity type.
type ResourceType string

// Clinical resource types (base grants).
const (
	ResourcePatient      ResourceType = "patient"
	ResourceSuiviCPN     ResourceType = "suivi_cpn"
	ResourceRendezVous   ResourceType = "rendez_vous"
	ResourceConsultation ResourceType = "consultation"
	ResourceOrdonnance   ResourceType = "ordonnance"
)

// Auxiliary resource types (extra grants). Each is owned by a component
// that may register it after the clinical ones.
const (
	ResourceAuditLog             ResourceType = "audit_log"
	ResourcePathologie           ResourceType = "pathologie"
	ResourceDossierCommunautaire ResourceType = "dossier_communautaire"
	ResourceSuiviCommunautaire   ResourceType = "suivi_communautaire"
	ResourceRapport              ResourceType = "rapport"
	ResourceThread               ResourceType = "thread"
	ResourceMessage              ResourceType = "message"
	ResourceNotification         ResourceType = "notification"
)

// ClinicalResources are the resource types named in the base grants.
var ClinicalResources = []ResourceType{
	ResourcePatient,
	ResourceSuiviCPN,
	ResourceRendezVous,
	ResourceConsultation,
	ResourceOrdonnance,
}

// AuxiliaryResources are the resource types named in the extra grants.
var AuxiliaryResources = []ResourceType{
	ResourceAuditLog,
	ResourcePathologie,
	ResourceDossierCommunautaire,
	ResourceSuiviCommunautaire,
	ResourceRapport,
	ResourceThread,
	ResourceMessage,
	ResourceNotification,
}

// Grant is an allowed (resource type, action) pair.
type Grant struct {
	Resource ResourceType
	Action   Action
}

// Codename is the catalog key for the grant, e.g. "read_patient".
func (g Grant) Codename() string {
	return fmt.Sprintf("%s_%s", g.Action, g.Resource)
}

func (g Grant) String() string {
	return string(g.Resource) + ":" + string(g.Action)
}

// SortGrants orders grants by resource then by CRUD position.
func SortGrants(grants []Grant) {
	rank := map[Action]int{}
	for i, a := range CRUD {
		rank[a] = i
	}
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].Resource != grants[j].Resource {
			return grants[i].Resource < grants[j].Resource
		}
		return rank[grants[i].Action] < rank[grants[j].Action]
	})
}
