package perk

import "time"

// Demo returns the sample collection shown on first run. Dates are relative
// to now so the dashboard always has something in every bucket.
func Demo(now time.Time) []Perk {
	today := DateOf(now.UTC())
	created := func(daysAgo int) time.Time {
		return today.AddDays(-daysAgo).Time()
	}

	return []Perk{
		{
			ID:          "demo-aws-credits",
			Name:        "AWS Credits",
			Description: "$1000 in AWS credits for compute, storage, and machine learning services",
			Link:        "https://aws.amazon.com/credits/",
			ExpiryDate:  today.AddDays(45),
			Category:    "Cloud Platform",
			Status:      StatusUnused,
			Value:       "$1000",
			Provider:    "Amazon Web Services",
			Notes:       []string{},
			CreatedAt:   created(30),
		},
		{
			ID:          "demo-github-copilot",
			Name:        "GitHub Copilot",
			Description: "AI-powered code completion and suggestions for faster development",
			Link:        "https://github.com/copilot",
			ExpiryDate:  today.AddDays(5),
			Category:    "AI Development Tool",
			Status:      StatusInProgress,
			Value:       "$10/month",
			Provider:    "GitHub",
			Notes:       []string{"Great for React components", "Helps with TypeScript types"},
			Progress:    Progress{ReadDocs: true, UsedInProject: true},
			CreatedAt:   created(35),
		},
		{
			ID:          "demo-vercel-pro",
			Name:        "Vercel Pro",
			Description: "Premium hosting with advanced analytics and team collaboration features",
			Link:        "https://vercel.com/pro",
			ExpiryDate:  today.AddDays(20),
			Category:    "Hosting Platform",
			Status:      StatusUnused,
			Value:       "$20/month",
			Provider:    "Vercel",
			Notes:       []string{},
			CreatedAt:   created(32),
		},
		{
			ID:          "demo-openai-credits",
			Name:        "OpenAI API Credits",
			Description: "$500 in API credits for GPT-4, DALL-E, and other AI models",
			Link:        "https://openai.com/api/",
			ExpiryDate:  today.AddDays(60),
			Category:    "AI Platform",
			Status:      StatusInProgress,
			Value:       "$500",
			Provider:    "OpenAI",
			Notes:       []string{"Used for chatbot project", "Rate limits are generous"},
			Progress:    Progress{ReadDocs: true, UsedInProject: true, CompletedTutorial: true},
			CreatedAt:   created(40),
		},
		{
			ID:          "demo-mongodb-atlas",
			Name:        "MongoDB Atlas",
			Description: "Free tier database with 512MB storage and shared cluster access",
			Link:        "https://mongodb.com/atlas",
			ExpiryDate:  today.AddDays(-30),
			Category:    "Database",
			Status:      StatusExpired,
			Value:       "$9/month",
			Provider:    "MongoDB",
			Notes:       []string{"Good for small projects"},
			Progress:    Progress{ReadDocs: true, UsedInProject: true, SharedWithTeam: true},
			CreatedAt:   created(90),
		},
	}
}
