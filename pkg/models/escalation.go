package models

// EscalationProcess is the resolution process bound to an escalation reason.
type EscalationProcess string

const (
	// ProcessAgentMeeting resolves through a meeting between agents,
	// without human involvement.
	ProcessAgentMeeting EscalationProcess = "agent_meeting"
	// ProcessHumanApproval resolves through a human decision, no meeting.
	ProcessHumanApproval EscalationProcess = "human_approval"
	// ProcessHumanMeeting resolves through a meeting that includes a human.
	ProcessHumanMeeting EscalationProcess = "human_meeting"
	// ProcessExternalDependency waits on an outside party; neither a
	// meeting nor a human decision is scheduled.
	ProcessExternalDependency EscalationProcess = "external_dependency"
)

// RequiresMeeting reports whether resolving through this process schedules
// a meeting.
func (p EscalationProcess) RequiresMeeting() bool {
	return p == ProcessAgentMeeting || p == ProcessHumanMeeting
}

// RequiresHuman reports whether this process needs a human participant.
func (p EscalationProcess) RequiresHuman() bool {
	return p == ProcessHumanApproval || p == ProcessHumanMeeting
}

// EscalationGroup names the family an escalation reason belongs to.
type EscalationGroup string

const (
	GroupDiscussion EscalationGroup = "discussion"
	GroupDecision   EscalationGroup = "decision"
	GroupBudget     EscalationGroup = "budget"
	GroupPriorities EscalationGroup = "priorities"
	GroupScope      EscalationGroup = "scope"
	GroupExternal   EscalationGroup = "external"
)

// Escalation is a named reason for blocking work. The catalog is closed:
// parsing an unknown name fails rather than defaulting.
type Escalation string

const (
	// Discussion: worked out between agents.
	EscalationArchitectureDiscussion Escalation = "architecture_discussion"
	EscalationDesignDiscussion       Escalation = "design_discussion"
	EscalationImplementationConflict Escalation = "implementation_conflict"
	EscalationTestStrategy           Escalation = "test_strategy"

	// Decision: needs a human call.
	EscalationTechnologyChoice Escalation = "technology_choice"
	EscalationSecurityPolicy   Escalation = "security_policy"
	EscalationDataRetention    Escalation = "data_retention"

	// Budget: spend approvals.
	EscalationInfraCost       Escalation = "infra_cost"
	EscalationLicensePurchase Escalation = "license_purchase"
	EscalationHeadcount       Escalation = "headcount"

	// Priorities: ordering conflicts between work streams.
	EscalationConflictingDeadlines Escalation = "conflicting_deadlines"
	EscalationResourceContention   Escalation = "resource_contention"

	// Scope: what the work should include.
	EscalationRequirementsUnclear Escalation = "requirements_unclear"
	EscalationScopeCreep          Escalation = "scope_creep"
	EscalationAcceptanceCriteria  Escalation = "acceptance_criteria"

	// External: blocked on an outside party.
	EscalationThirdPartyOutage  Escalation = "third_party_outage"
	EscalationVendorResponse    Escalation = "vendor_response"
	EscalationUpstreamBugReport Escalation = "upstream_bug_report"
)

// EscalationBinding ties a reason to its group and resolution process.
type EscalationBinding struct {
	Group   EscalationGroup
	Process EscalationProcess
}
