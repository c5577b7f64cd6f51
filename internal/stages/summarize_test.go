package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSummaryJSON = `{
	"executiveSummary": "The team agreed to ship the beta on Friday.",
	"keyDecisions": "Ship beta Friday; postpone the billing rework.",
	"actionItems": [
		{"task": "Prepare release notes", "assignee": "Dana", "deadline": "Friday", "priority": "high"},
		{"task": "File billing rework ticket", "assignee": null, "deadline": null, "priority": "low"}
	],
	"nextSteps": "Beta feedback review next Monday.",
	"keyTopics": ["beta release", "billing"],
	"sentiment": "positive"
}`

func TestParseSummary_PlainJSON(t *testing.T) {
	summary, err := parseSummary(sampleSummaryJSON)
	require.NoError(t, err)

	assert.Equal(t, "The team agreed to ship the beta on Friday.", summary.ExecutiveSummary)
	require.Len(t, summary.ActionItems, 2)
	assert.Equal(t, "Prepare release notes", summary.ActionItems[0].Task)
	require.NotNil(t, summary.ActionItems[0].Assignee)
	assert.Equal(t, "Dana", *summary.ActionItems[0].Assignee)
	assert.Nil(t, summary.ActionItems[1].Assignee)
	assert.Equal(t, []string{"beta release", "billing"}, summary.KeyTopics)
	assert.Equal(t, "positive", summary.Sentiment)
}

func TestParseSummary_CodeFences(t *testing.T) {
	fenced := "Here is the summary:\n```json\n" + sampleSummaryJSON + "\n```\nLet me know if you need anything else."
	summary, err := parseSummary(fenced)
	require.NoError(t, err)
	assert.Equal(t, "The team agreed to ship the beta on Friday.", summary.ExecutiveSummary)
}

func TestParseSummary_MalformedIsPermanent(t *testing.T) {
	_, err := parseSummary(`{"executiveSummary": "truncated`)
	require.Error(t, err)

	var stageErr *Error
	require.ErrorAs(t, err, &stageErr)
	assert.True(t, stageErr.Permanent())
	assert.Equal(t, StageSummarize, stageErr.Stage)
}

func TestParseSummary_EmptySummaryIsPermanent(t *testing.T) {
	_, err := parseSummary(`{"keyTopics": ["nothing"]}`)
	require.Error(t, err)

	var stageErr *Error
	require.ErrorAs(t, err, &stageErr)
	assert.True(t, stageErr.Permanent())
}

func TestBuildSummaryPrompt_IncludesFeatures(t *testing.T) {
	prompt := buildSummaryPrompt("full transcript here", nil, MeetingMeta{
		Title:    "Standup",
		Category: "STANDUP",
		Duration: 600,
	})
	assert.Contains(t, prompt, "Meeting Title: Standup")
	assert.Contains(t, prompt, "Duration: 10.0 minutes")
	assert.Contains(t, prompt, "full transcript here")
}
