package services

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// ConversationalReply answers a conversational question without touching
// the database. Replies are generic and parameterized by the tenant profile.
func ConversationalReply(intent models.IntentClassification, profile *models.TenantProfile) string {
	name := profile.DisplayName
	switch intent.SubType {
	case models.SubTypeGreeting:
		return fmt.Sprintf("Hello! I can answer questions about %s's data. Try asking how many employees are in each department.", name)
	case models.SubTypeThanks:
		return "You're welcome! Let me know if you have another question."
	case models.SubTypeIdentity:
		return fmt.Sprintf("I'm the %s data assistant. I turn your questions into read-only database queries and explain the results.", name)
	case models.SubTypeHelp:
		return fmt.Sprintf("Ask me about %s's data: counts by department, lists of records, who works on which project, or totals and averages.", name)
	}
	return fmt.Sprintf("I'm not sure how to help with that. I can answer questions about %s's business data.", name)
}
