package auth

import "strings"

// Role is the semantic job function of a user. The set is closed.
type Role string

const (
	RoleAdmin              Role = "ADMIN"
	RoleMedecin            Role = "MEDECIN"
	RoleSageFemme          Role = "SAGE_FEMME"
	RoleAgentCommunautaire Role = "AGENT_COMMUNAUTAIRE"
	RolePsychologue        Role = "PSYCHOLOGUE"
	RolePatient            Role = "PATIENT"
)

// RoleDefinition describes one role and the base grants it implies.
type RoleDefinition struct {
	Code   Role
	Label  string
	Grants map[ResourceType][]Action
}

var (
	allActions       = CRUD
	createReadUpdate = []Action{ActionCreate, ActionRead, ActionUpdate}
	createRead       = []Action{ActionCreate, ActionRead}
	readOnly         = []Action{ActionRead}
)

// definitions is ordered; Definitions preserves that order.
var definitions = []RoleDefinition{
	{
		Code:  RoleAdmin,
		Label: "Administrateur",
		Grants: map[ResourceType][]Action{
			ResourcePatient:      allActions,
			ResourceSuiviCPN:     allActions,
			ResourceRendezVous:   allActions,
			ResourceConsultation: allActions,
			ResourceOrdonnance:   allActions,
		},
	},
	{
		Code:  RoleMedecin,
		Label: "Médecin",
		Grants: map[ResourceType][]Action{
			ResourcePatient:      createReadUpdate,
			ResourceSuiviCPN:     createReadUpdate,
			ResourceRendezVous:   createReadUpdate,
			ResourceConsultation: createReadUpdate,
			ResourceOrdonnance:   createReadUpdate,
		},
	},
	{
		Code:  RoleSageFemme,
		Label: "Sage-femme",
		Grants: map[ResourceType][]Action{
			ResourcePatient:      createReadUpdate,
			ResourceSuiviCPN:     createReadUpdate,
			ResourceRendezVous:   createReadUpdate,
			ResourceConsultation: createReadUpdate,
			ResourceOrdonnance:   createRead,
		},
	},
	{
		Code:  RoleAgentCommunautaire,
		Label: "Agent communautaire",
		Grants: map[ResourceType][]Action{
			ResourcePatient:      createRead,
			ResourceSuiviCPN:     readOnly,
			ResourceRendezVous:   createReadUpdate,
			ResourceConsultation: readOnly,
			ResourceOrdonnance:   readOnly,
		},
	},
	{
		Code:  RolePsychologue,
		Label: "Psychologue",
		Grants: map[ResourceType][]Action{
			ResourcePatient:      readOnly,
			ResourceConsultation: createRead,
		},
	},
	{
		Code:   RolePatient,
		Label:  "Patient",
		Grants: map[ResourceType][]Action{},
	},
}

// extraGrants are the per-role grants on auxiliary resource types.
var extraGrants = map[Role]map[ResourceType][]Action{
	RoleAdmin: {
		ResourceAuditLog:             allActions,
		ResourcePathologie:           allActions,
		ResourceDossierCommunautaire: allActions,
		ResourceSuiviCommunautaire:   allActions,
		ResourceRapport:              allActions,
		ResourceThread:               allActions,
		ResourceMessage:              allActions,
		ResourceNotification:         allActions,
	},
	RoleMedecin: {
		ResourceAuditLog:             readOnly,
		ResourcePathologie:           readOnly,
		ResourceDossierCommunautaire: createReadUpdate,
		ResourceSuiviCommunautaire:   createReadUpdate,
		ResourceRapport:              createRead,
		ResourceThread:               createRead,
		ResourceMessage:              createRead,
		ResourceNotification:         readOnly,
	},
	RoleAgentCommunautaire: {
		ResourceAuditLog:             readOnly,
		ResourcePathologie:           readOnly,
		ResourceDossierCommunautaire: createReadUpdate,
		ResourceSuiviCommunautaire:   createReadUpdate,
		ResourceRapport:              readOnly,
		ResourceThread:               createRead,
		ResourceMessage:              createRead,
		ResourceNotification:         readOnly,
	},
	RoleSageFemme: {
		ResourceAuditLog:             readOnly,
		ResourcePathologie:           readOnly,
		ResourceDossierCommunautaire: readOnly,
		ResourceSuiviCommunautaire:   readOnly,
		ResourceRapport:              readOnly,
		ResourceThread:               createRead,
		ResourceMessage:              createRead,
		ResourceNotification:         readOnly,
	},
	RolePsychologue: {
		ResourceAuditLog:             readOnly,
		ResourcePathologie:           readOnly,
		ResourceDossierCommunautaire: createReadUpdate,
		ResourceSuiviCommunautaire:   createReadUpdate,
		ResourceRapport:              readOnly,
		ResourceThread:               createRead,
		ResourceMessage:              createRead,
		ResourceNotification:         readOnly,
	},
}

// Definitions returns the role registry in declaration order. The returned
// slice and maps are copies.
func Definitions() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, RoleDefinition{
			Code:   def.Code,
			Label:  def.Label,
			Grants: copyGrantMap(def.Grants),
		})
	}
	return out
}

// ExtraGrants returns the auxiliary grants for a role, or an empty map.
func ExtraGrants(role Role) map[ResourceType][]Action {
	return copyGrantMap(extraGrants[role])
}

// ExpectedGrants merges base and extra grants for a role, de-duplicated
// and sorted. Unknown roles yield nil.
func ExpectedGrants(role Role) []Grant {
	def, ok := lookup(role)
	if !ok {
		return nil
	}
	return def.Expected()
}

// Expected merges the definition's own grants with the registry's extra
// grants for its code, de-duplicated and sorted.
func (d RoleDefinition) Expected() []Grant {
	seen := make(map[Grant]struct{})
	var grants []Grant
	add := func(m map[ResourceType][]Action) {
		for resource, actions := range m {
			for _, action := range actions {
				g := Grant{Resource: resource, Action: action}
				if _, dup := seen[g]; dup {
					continue
				}
				seen[g] = struct{}{}
				grants = append(grants, g)
			}
		}
	}
	add(d.Grants)
	add(extraGrants[d.Code])
	SortGrants(grants)
	return grants
}

// RoleCodes returns every role code in registry order.
func RoleCodes() []Role {
	codes := make([]Role, 0, len(definitions))
	for _, def := range definitions {
		codes = append(codes, def.Code)
	}
	return codes
}

// RoleGroupNames returns the group names derived from the registry.
func RoleGroupNames() []string {
	names := make([]string, 0, len(definitions))
	for _, def := range definitions {
		names = append(names, string(def.Code))
	}
	return names
}

// ParseRole accepts a role code in any case.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := lookup(role)
	return role, ok
}

// Valid reports whether the role is in the registry.
func (r Role) Valid() bool {
	_, ok := lookup(r)
	return ok
}

// Label returns the display label, or the code for unknown roles.
func (r Role) Label() string {
	if def, ok := lookup(r); ok {
		return def.Label
	}
	return string(r)
}

func lookup(role Role) (RoleDefinition, bool) {
	for _, def := range definitions {
		if def.Code == role {
			return def, true
		}
	}
	return RoleDefinition{}, false
}

func copyGrantMap(in map[ResourceType][]Action) map[ResourceType][]Action {
	out := make(map[ResourceType][]Action, len(in))
	for k, v := range in {
		out[k] = append([]Action(nil), v...)
	}
	return out
}
