package model

import "time"

// SampleNotifications returns the fixed feed shown when no service is
// both enabled and authenticated, so the panel is never empty on first
// run. The content is deterministic relative to now.
func SampleNotifications(now time.Time) []Notification {
	return []Notification{
		{
			ID:        "gh-1001",
			Service:   ServiceGitHub,
			Title:     "PR #42: Add dark mode support",
			Subtitle:  "octocat/my-project",
			Body:      "Review requested",
			Timestamp: now.Add(-5 * time.Minute),
			Icon:      "pull-request",
			Priority:  PriorityHigh,
		},
		{
			ID:        "teams-2001",
			Service:   ServiceTeams,
			Title:     "Sprint Planning Meeting",
			Subtitle:  "John Doe",
			Body:      "Let's discuss the Q1 roadmap",
			Timestamp: now.Add(-10 * time.Minute),
			Icon:      "chat",
			Priority:  PriorityNormal,
		},
		{
			ID:        "notion-3001",
			Service:   ServiceNotion,
			Title:     "Project Roadmap updated",
			Subtitle:  "Updated 10 minutes ago",
			Timestamp: now.Add(-15 * time.Minute),
			Icon:      "document",
			Priority:  PriorityNormal,
		},
		{
			ID:        "cal-4001",
			Service:   ServiceSystemCalendar,
			Title:     "1:1 with Manager",
			Subtitle:  "2:00 PM - 2:30 PM",
			Body:      "Zoom Meeting",
			Timestamp: now.Add(30 * time.Minute),
			Icon:      "calendar",
			Priority:  PriorityHigh,
		},
		{
			ID:        "gh-1002",
			Service:   ServiceGitHub,
			Title:     "Issue #87: Fix login timeout",
			Subtitle:  "octocat/api-server",
			Body:      "Assigned to you",
			Timestamp: now.Add(-30 * time.Minute),
			Icon:      "issue",
			Priority:  PriorityNormal,
		},
		{
			ID:        "teams-2002",
			Service:   ServiceTeams,
			Title:     "Design Review Feedback",
			Subtitle:  "Jane Smith",
			Body:      "I've left comments on the wireframe",
			Timestamp: now.Add(-40 * time.Minute),
			Icon:      "chat",
			Priority:  PriorityNormal,
		},
		{
			ID:        "gcal-5001",
			Service:   ServiceGoogleCalendar,
			Title:     "Team Standup",
			Subtitle:  "9:00 AM - 9:15 AM",
			Body:      "Google Meet",
			Timestamp: now.Add(time.Hour),
			Icon:      "calendar-clock",
			Priority:  PriorityNormal,
		},
		{
			ID:        "notion-3002",
			Service:   ServiceNotion,
			Title:     "API Documentation draft",
			Subtitle:  "Updated 1 hour ago",
			Timestamp: now.Add(-time.Hour),
			Icon:      "document",
			Priority:  PriorityLow,
		},
		{
			ID:        "gh-1003",
			Service:   ServiceGitHub,
			Title:     "Release v2.1.0 published",
			Subtitle:  "octocat/my-project",
			Body:      "New release",
			Timestamp: now.Add(-90 * time.Minute),
			Icon:      "tag",
			Priority:  PriorityLow,
		},
		{
			ID:        "teams-2003",
			Service:   ServiceTeams,
			Title:     "Deployment notification",
			Subtitle:  "DevOps Bot",
			Body:      "Production deployment completed successfully",
			Timestamp: now.Add(-2 * time.Hour),
			Icon:      "chat",
			Priority:  PriorityLow,
		},
	}
}
