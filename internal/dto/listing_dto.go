package dto

import "time"

// ClassListing is the cached overview of a class for one viewer.
type ClassListing struct {
	ClassID     string         `json:"classId"`
	ViewerID    string         `json:"viewerId"`
	Role        string         `json:"role"`
	Items       []ListingItem  `json:"items"`
	Summary     ListingSummary `json:"summary"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// ListingItem pairs an exercise with the viewer's progress or the class counts.
type ListingItem struct {
	Exercise    ExerciseResponse  `json:"exercise"`
	Progress    *ProgressResponse `json:"progress,omitempty"`
	Submissions int               `json:"submissions,omitempty"`
	Graded      int               `json:"graded,omitempty"`
	PastDue     bool              `json:"pastDue"`
	CanGrade    bool              `json:"canGrade"`
}

// ListingSummary aggregates the items of a listing.
type ListingSummary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Drafts    int `json:"drafts"`
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
}
