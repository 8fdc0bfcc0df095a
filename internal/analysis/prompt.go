package analysis

import "strings"

const promptTemplate = `Analyze this customer support conversation and extract insights. Return your response as valid JSON only.

Conversation:
{{conversation}}

Return ONLY a JSON object with this exact structure (no other text):
{
  "customer_needs": ["specific needs/wants mentioned by customer"],
  "pain_points": ["problems or frustrations mentioned"],
  "customer_mood": "happy/satisfied/neutral/confused/frustrated/angry",
  "satisfaction_level": 1-5,
  "conversation_summary": "2-3 sentence summary of what happened",
  "main_topics": ["key topics discussed"],
  "resolution_status": "resolved/pending/escalated/abandoned",
  "mentioned_products": ["products/features/services mentioned"],
  "technical_issues": ["technical problems mentioned"],
  "feature_requests": ["feature requests or suggestions"]
}

Be specific and actionable. Focus on business insights. Respond with JSON only.`

// BuildPrompt embeds the full conversation into the extraction prompt
func BuildPrompt(conversationText string) string {
	return strings.Replace(promptTemplate, "{{conversation}}", conversationText, 1)
}
