package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// InterpretationSystemMessage frames the streamed answer phrasing.
const InterpretationSystemMessage = "You explain database query results to business users. Be concise and factual. Only state what the data shows."

const maxInterpretationRows = 20

// ComposeInterpretation builds the prompt used to phrase an answer in
// natural language. draft is the deterministic answer the phrasing must
// agree with.
func ComposeInterpretation(question, sql string, result *models.ExecutionResult, draft string, profile *models.TenantProfile) string {
	var p strings.Builder

	fmt.Fprintf(&p, "Question from a %s user: %s\n\n", profile.DisplayName, strings.TrimSpace(question))
	fmt.Fprintf(&p, "Query that was run:\n```sql\n%s\n```\n\n", sql)

	if result != nil {
		fmt.Fprintf(&p, "Result: %d row(s). Columns: %s\n", result.RowCount, strings.Join(result.Columns, ", "))
		for i, row := range result.Rows {
			if i == maxInterpretationRows {
				fmt.Fprintf(&p, "... %d more row(s)\n", len(result.Rows)-maxInterpretationRows)
				break
			}
			vals := make([]string, len(result.Columns))
			for j, col := range result.Columns {
				vals[j] = fmt.Sprintf("%s=%v", col, row[col])
			}
			p.WriteString(strings.Join(vals, "; ") + "\n")
		}
		p.WriteString("\n")
	}

	fmt.Fprintf(&p, "Draft answer:\n%s\n\n", draft)
	fmt.Fprintf(&p, "Rewrite the draft as a short answer in the language of locale %s, amounts in %s. ", profile.Locale, profile.Currency)
	p.WriteString("Keep every number exactly as in the draft. Do not mention SQL. If there are no rows, say that no matching data was found.")
	return p.String()
}
