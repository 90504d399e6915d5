package models

import "time"

const (
	// SubmissionStatusSubmitted indicates the submission has been uploaded but not graded.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the lecturer scored the submission.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusPublished indicates the grade is visible to the student.
	SubmissionStatusPublished = "published"
)

// MaxSubmissionEdits is how many times a student may resubmit per exercise.
const MaxSubmissionEdits = 2

// SubmissionKey identifies the single logical submission of a student for an exercise.
type SubmissionKey struct {
	StudentID  string
	ClassID    string
	ExerciseID string
}

// Submission is the latest ERD a student uploaded for an exercise.
type Submission struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	StudentID   string     `gorm:"size:64;not null;uniqueIndex:idx_submission_owner" json:"student_id"`
	ClassID     string     `gorm:"size:64;not null;uniqueIndex:idx_submission_owner" json:"class_id"`
	ExerciseID  string     `gorm:"size:36;not null;uniqueIndex:idx_submission_owner;index" json:"exercise_id"`
	File        FileRef    `gorm:"embedded;embeddedPrefix:file_" json:"file"`
	Comments    string     `gorm:"type:text" json:"comments"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Status      string     `gorm:"size:32;not null" json:"status"`
	Grade       *float64   `json:"grade"`
	Feedback    string     `gorm:"type:text" json:"feedback"`
	GradedAt    *time.Time `json:"graded_at"`
	GradedBy    string     `gorm:"size:64" json:"graded_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Key returns the owner tuple of the submission.
func (s Submission) Key() SubmissionKey {
	return SubmissionKey{StudentID: s.StudentID, ClassID: s.ClassID, ExerciseID: s.ExerciseID}
}

// IsGraded reports whether the submission has a grade, published or not.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded || s.Status == SubmissionStatusPublished
}

// Progress is the per-student-per-exercise summary read by listing views.
type Progress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	StudentID   string     `gorm:"size:64;not null;uniqueIndex:idx_progress_owner" json:"student_id"`
	ClassID     string     `gorm:"size:64;not null;uniqueIndex:idx_progress_owner" json:"class_id"`
	ExerciseID  string     `gorm:"size:36;not null;uniqueIndex:idx_progress_owner;index" json:"exercise_id"`
	Submitted   bool       `json:"submitted"`
	EditCount   int        `json:"edit_count"`
	MaxEdits    int        `json:"max_edits"`
	IsCompleted bool       `json:"is_completed"`
	FileURL     string     `gorm:"size:512" json:"file_url"`
	SubmittedAt *time.Time `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName keeps the table name singular.
func (Progress) TableName() string {
	return "exercise_progress"
}

// RemainingEdits is how many resubmissions are still allowed.
func (p Progress) RemainingEdits() int {
	limit := p.MaxEdits
	if limit <= 0 {
		limit = MaxSubmissionEdits
	}
	if !p.Submitted {
		return limit
	}
	remaining := limit - p.EditCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanResubmit reports whether another submission would stay within the edit limit.
func (p Progress) CanResubmit() bool {
	return !p.Submitted || p.RemainingEdits() > 0
}
