package stages

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/haris936hk/EchoNote-sub001/internal/models"
)

func TestCompletedBody(t *testing.T) {
	assignee := "Dana"
	snap := ResultSnapshot{
		MeetingID: uuid.New(),
		Title:     "Sprint planning",
		Duration:  1800,
		Summary: models.Summary{
			ExecutiveSummary: "Beta ships Friday.",
			KeyDecisions:     "Ship beta; defer billing rework.",
			ActionItems: []models.ActionItem{
				{Task: "Prepare release notes", Assignee: &assignee, Priority: "high"},
				{Task: "File rework ticket", Priority: "low"},
			},
			NextSteps: "Review feedback Monday.",
		},
	}

	body := completedBody(snap)
	assert.Contains(t, body, `"Sprint planning" (30.0 min)`)
	assert.Contains(t, body, "Beta ships Friday.")
	assert.Contains(t, body, "[high] Prepare release notes (Dana)")
	assert.Contains(t, body, "[low] File rework ticket (unassigned)")
	assert.Contains(t, body, "Review feedback Monday.")
}

func TestFailedBody(t *testing.T) {
	body := failedBody("Sprint planning", "no speech detected in recording")
	assert.Contains(t, body, `"Sprint planning"`)
	assert.Contains(t, body, "no speech detected in recording")
}
