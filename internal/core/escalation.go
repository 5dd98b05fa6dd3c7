package core

import (
	"sort"
	"strings"

	"github.com/propelhq/propel/pkg/models"
)

// escalationCatalog binds every escalation reason to its group and
// resolution process. The mapping is total and fixed; unknown reasons
// are rejected, never defaulted.
var escalationCatalog = map[models.Escalation]models.EscalationBinding{
	models.EscalationArchitectureDiscussion: {Group: models.GroupDiscussion, Process: models.ProcessAgentMeeting},
	models.EscalationDesignDiscussion:       {Group: models.GroupDiscussion, Process: models.ProcessAgentMeeting},
	models.EscalationImplementationConflict: {Group: models.GroupDiscussion, Process: models.ProcessAgentMeeting},
	models.EscalationTestStrategy:           {Group: models.GroupDiscussion, Process: models.ProcessAgentMeeting},

	models.EscalationTechnologyChoice: {Group: models.GroupDecision, Process: models.ProcessHumanApproval},
	models.EscalationSecurityPolicy:   {Group: models.GroupDecision, Process: models.ProcessHumanApproval},
	models.EscalationDataRetention:    {Group: models.GroupDecision, Process: models.ProcessHumanApproval},

	models.EscalationInfraCost:       {Group: models.GroupBudget, Process: models.ProcessHumanApproval},
	models.EscalationLicensePurchase: {Group: models.GroupBudget, Process: models.ProcessHumanApproval},
	models.EscalationHeadcount:       {Group: models.GroupBudget, Process: models.ProcessHumanMeeting},

	models.EscalationConflictingDeadlines: {Group: models.GroupPriorities, Process: models.ProcessHumanMeeting},
	models.EscalationResourceContention:   {Group: models.GroupPriorities, Process: models.ProcessHumanMeeting},

	models.EscalationRequirementsUnclear: {Group: models.GroupScope, Process: models.ProcessHumanMeeting},
	models.EscalationScopeCreep:          {Group: models.GroupScope, Process: models.ProcessHumanMeeting},
	models.EscalationAcceptanceCriteria:  {Group: models.GroupScope, Process: models.ProcessHumanApproval},

	models.EscalationThirdPartyOutage:  {Group: models.GroupExternal, Process: models.ProcessExternalDependency},
	models.EscalationVendorResponse:    {Group: models.GroupExternal, Process: models.ProcessExternalDependency},
	models.EscalationUpstreamBugReport: {Group: models.GroupExternal, Process: models.ProcessExternalDependency},
}

// LookupEscalation returns the binding for a known escalation reason.
func LookupEscalation(escalation models.Escalation) (models.EscalationBinding, error) {
	binding, ok := escalationCatalog[escalation]
	if !ok {
		return models.EscalationBinding{}, &models.NotFoundError{Kind: "escalation", ID: string(escalation)}
	}
	return binding, nil
}

// ParseEscalation resolves a user-supplied escalation name. Matching is
// case-insensitive and whitespace-trimmed; unknown names fail with
// NotFoundError.
func ParseEscalation(name string) (models.Escalation, error) {
	normalized := models.Escalation(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := escalationCatalog[normalized]; !ok {
		return "", &models.NotFoundError{Kind: "escalation", ID: name}
	}
	return normalized, nil
}

// EscalationCatalog returns all known escalation reasons sorted by name.
func EscalationCatalog() []models.Escalation {
	reasons := make([]models.Escalation, 0, len(escalationCatalog))
	for reason := range escalationCatalog {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
