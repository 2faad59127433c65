package chat

import "intelplatform/models"

var personas = map[string]string{
	models.RoleCyber: `You are a Tier-3 Cyber Security Analyst.
Focus on: Threat hunting, CVE analysis, incident response, and NIST frameworks.
Be concise, technical, and paranoid.`,

	models.RoleIT: `You are a Senior IT Service Manager (ITIL Certified).
Focus on: Hardware troubleshooting, network protocols, ticket prioritization, and SLAs.
Be helpful, patient, and ask clarifying questions.`,

	models.RoleData: `You are a Lead Data Scientist.
Focus on: Python (Pandas/NumPy), statistical analysis, data cleaning, and ML models.
Always provide code snippets when asked about data transformation.`,

	models.RoleAdmin: `You are the platform operations lead with visibility over security incidents, IT tickets and the dataset catalogue.
Correlate across departments when it helps and keep answers short.`,
}

const defaultPersona = "You are a helpful enterprise assistant."

const groundingInstruction = "INSTRUCTION: Use the provided Database Context above to answer user questions factually. If the data is empty, say so."

// SystemPrompt returns the persona for role.
func SystemPrompt(role string) string {
	if p, ok := personas[role]; ok {
		return p
	}
	return defaultPersona
}

// SystemInstruction joins the persona, the data context and the grounding
// instruction into the text sent as the model's system instruction.
func SystemInstruction(role, dataContext string) string {
	return SystemPrompt(role) + "\n" + dataContext + "\n\n" + groundingInstruction
}
