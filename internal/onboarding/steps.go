package onboarding

import "fmt"

// ConfigurationError indicates a request for a role no graph is configured
// for. It is a programming error on the caller's side, not recoverable at
// runtime.
type ConfigurationError struct {
	Role Role
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no onboarding step graph configured for role %q", e.Role)
}

// Graph is the immutable step configuration for one role. Order is display
// order only; availability is governed solely by step dependencies.
type Graph struct {
	role  Role
	steps []Step
	byID  map[string]int
}

func newGraph(role Role, steps []Step) *Graph {
	byID := make(map[string]int, len(steps))
	for i, s := range steps {
		byID[s.ID] = i
	}
	return &Graph{role: role, steps: steps, byID: byID}
}

// Role returns the role this graph belongs to.
func (g *Graph) Role() Role { return g.role }

// Steps returns the steps in display order.
func (g *Graph) Steps() []Step { return g.steps }

// Len returns the number of steps in the graph.
func (g *Graph) Len() int { return len(g.steps) }

// StepByID looks a step up by id.
func (g *Graph) StepByID(id string) (Step, bool) {
	i, ok := g.byID[id]
	if !ok {
		return Step{}, false
	}
	return g.steps[i], true
}

// FirstStep returns the first step in display order.
func (g *Graph) FirstStep() Step {
	return g.steps[0]
}

// DependenciesMet reports whether every dependency of the given step is in
// the completed set.
func (g *Graph) DependenciesMet(step Step, state *ProgressState) bool {
	for _, dep := range step.Dependencies {
		if !state.HasCompleted(dep) {
			return false
		}
	}
	return true
}

// GraphForRole returns the static step graph for a role.
func GraphForRole(role Role) (*Graph, error) {
	g, ok := roleGraphs[role]
	if !ok {
		return nil, &ConfigurationError{Role: role}
	}
	return g, nil
}

// Roles lists the roles a graph is configured for.
func Roles() []Role {
	return []Role{RoleSystemIntegrator, RoleAppProvider, RoleHybrid}
}

// Step tables are deployment-time configuration. Changing them must stay
// backward compatible with persisted completed-step ids: removed ids are
// tolerated (ignored) by the calculator, never rejected.
var roleGraphs = map[Role]*Graph{
	RoleSystemIntegrator: newGraph(RoleSystemIntegrator, []Step{
		{
			ID:               "service_introduction",
			Title:            "Service Introduction",
			Description:      "Overview of the e-invoicing network and your integrator role",
			EstimatedMinutes: 5,
			Required:         true,
		},
		{
			ID:               "integration_choice",
			Title:            "Choose Integration Model",
			Description:      "Pick API, SFTP batch, or Peppol access point integration",
			EstimatedMinutes: 10,
			Required:         true,
			Dependencies:     []string{"service_introduction"},
		},
		{
			ID:               "business_systems_setup",
			Title:            "Business Systems Setup",
			Description:      "Register the ERP and billing systems you will connect on behalf of clients",
			EstimatedMinutes: 20,
			Required:         true,
			Dependencies:     []string{"integration_choice"},
		},
		{
			ID:               "erp_credentials",
			Title:            "ERP Connection Credentials",
			Description:      "Authorize the platform against your ERP sandbox environment",
			EstimatedMinutes: 15,
			Required:         true,
			Dependencies:     []string{"business_systems_setup"},
			Volatile:         true,
		},
		{
			ID:               "test_invoice_exchange",
			Title:            "Test Invoice Exchange",
			Description:      "Send and receive a validation invoice through the sandbox",
			EstimatedMinutes: 10,
			Required:         true,
			Dependencies:     []string{"erp_credentials"},
		},
		{
			ID:               "team_invitations",
			Title:            "Invite Your Team",
			Description:      "Invite colleagues who will operate client integrations",
			EstimatedMinutes: 5,
			Required:         false,
			Dependencies:     []string{"service_introduction"},
		},
		{
			ID:               TerminalStepID,
			Title:            "Onboarding Complete",
			Description:      "Review your setup and go live",
			EstimatedMinutes: 2,
			Required:         true,
			Dependencies:     []string{"test_invoice_exchange"},
		},
	}),

	RoleAppProvider: newGraph(RoleAppProvider, []Step{
		{
			ID:               "service_introduction",
			Title:            "Service Introduction",
			Description:      "Overview of compliant e-invoicing for your application",
			EstimatedMinutes: 5,
			Required:         true,
		},
		{
			ID:               "company_profile",
			Title:            "Company Profile",
			Description:      "Legal entity, VAT registration, and invoicing address details",
			EstimatedMinutes: 10,
			Required:         true,
			Dependencies:     []string{"service_introduction"},
		},
		{
			ID:               "bank_connection",
			Title:            "Bank Connection",
			Description:      "Link the bank account used for invoice settlement",
			EstimatedMinutes: 15,
			Required:         true,
			Dependencies:     []string{"company_profile"},
			Volatile:         true,
		},
		{
			ID:               "invoice_workflow_setup",
			Title:            "Invoice Workflow Setup",
			Description:      "Approval chains, numbering series, and archiving policy",
			EstimatedMinutes: 15,
			Required:         true,
			Dependencies:     []string{"company_profile"},
		},
		{
			ID:               "compliance_checklist",
			Title:            "Compliance Checklist",
			Description:      "Country-specific mandates that apply to your invoices",
			EstimatedMinutes: 10,
			Required:         false,
			Dependencies:     []string{"invoice_workflow_setup"},
		},
		{
			ID:               TerminalStepID,
			Title:            "Onboarding Complete",
			Description:      "Review your setup and start invoicing",
			EstimatedMinutes: 2,
			Required:         true,
			Dependencies:     []string{"bank_connection", "invoice_workflow_setup"},
		},
	}),

	RoleHybrid: newGraph(RoleHybrid, []Step{
		{
			ID:               "service_introduction",
			Title:            "Service Introduction",
			Description:      "Overview for combined integrator and provider accounts",
			EstimatedMinutes: 5,
			Required:         true,
		},
		{
			ID:               "integration_choice",
			Title:            "Choose Integration Model",
			Description:      "Pick the integration model for your client connections",
			EstimatedMinutes: 10,
			Required:         true,
			Dependencies:     []string{"service_introduction"},
		},
		{
			ID:               "company_profile",
			Title:            "Company Profile",
			Description:      "Legal entity, VAT registration, and invoicing address details",
			EstimatedMinutes: 10,
			Required:         true,
			Dependencies:     []string{"service_introduction"},
		},
		{
			ID:               "business_systems_setup",
			Title:            "Business Systems Setup",
			Description:      "Register the business systems you will connect",
			EstimatedMinutes: 20,
			Required:         true,
			Dependencies:     []string{"integration_choice"},
		},
		{
			ID:               "bank_connection",
			Title:            "Bank Connection",
			Description:      "Link the bank account used for invoice settlement",
			EstimatedMinutes: 15,
			Required:         true,
			Dependencies:     []string{"company_profile"},
			Volatile:         true,
		},
		{
			ID:               "test_invoice_exchange",
			Title:            "Test Invoice Exchange",
			Description:      "Send and receive a validation invoice through the sandbox",
			EstimatedMinutes: 10,
			Required:         true,
			Dependencies:     []string{"business_systems_setup"},
		},
		{
			ID:               TerminalStepID,
			Title:            "Onboarding Complete",
			Description:      "Review your setup and go live",
			EstimatedMinutes: 2,
			Required:         true,
			Dependencies:     []string{"test_invoice_exchange", "bank_connection"},
		},
	}),
}
