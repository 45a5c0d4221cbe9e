package classify

import "strings"

// Escalation categories.
const (
	EscalationNetwork = "NO"
	EscalationIT      = "IT"
	EscalationEBO     = "EBO"
	EscalationGTM     = "GTM"
	EscalationBillco  = "Billco"
)

// Escalation assigns the first applicable category. The primary remedy
// reference is checked before the escalation reference, and within the
// escalation reference INC beats EBO, GTM and Billco in that order.
func Escalation(remedyID, escalationRef string) string {
	primary := strings.TrimSpace(remedyID)
	secondary := strings.TrimSpace(escalationRef)

	switch {
	case strings.Contains(primary, "INC"):
		return EscalationNetwork
	case strings.Contains(secondary, "INC"):
		return EscalationIT
	case strings.Contains(secondary, "EBO"):
		return EscalationEBO
	case strings.Contains(secondary, "GTM"):
		return EscalationGTM
	case strings.Contains(secondary, "Billco"):
		return EscalationBillco
	}
	return ""
}
