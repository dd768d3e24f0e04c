package vision

// SystemPrompt frames the vision model.
const SystemPrompt = "You analyze web-app screenshots and console logs to find UX/visual/logic issues."

// ReportPrompt describes the JSON the model must answer with. The console
// transcript is appended after it.
const ReportPrompt = `You will receive one or more screenshots and recent console/network logs.
Return STRICT JSON with this schema:
{
  "issues": [
    {
      "title": "short",
      "severity": "low|med|high",
      "evidence": "what in the screenshot/logs proves it",
      "proposed_changes": [
        {"file": "relative/path", "change": "concise instruction describing exact edits"}
      ],
      "tests": [
        {"type":"unit|playwright", "name":"short", "spec":"what to assert"}
      ]
    }
  ],
  "notes": "optional"
}
Only JSON. Be concise. Prefer minimal viable fixes first.
`

// buildUserPrompt appends the (already bounded) transcript to the report prompt.
func buildUserPrompt(logs string) string {
	return ReportPrompt + "\n\nLogs:\n" + logs
}
