package domain

import "time"

// =============================================================================
// Submission
// =============================================================================

// Submission is one respondent's set of answers to a form.
type Submission struct {
	ID        string    `json:"id"`
	FormID    string    `json:"formId"`
	CreatedAt time.Time `json:"createdAt"`
	Answers   []Answer  `json:"answers"`
}

// Answer holds the value given for one field. Value is nil, a string, a
// float64, a bool or a []string; FilePath is set for uploaded images.
type Answer struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submissionId"`
	FieldID      string `json:"fieldId"`
	Value        any    `json:"value"`
	FilePath     string `json:"filePath,omitempty"`
}

// Export returns what an answer contributes to exports: the file path when
// one was uploaded, otherwise the value.
func (a Answer) Export() any {
	if a.FilePath != "" {
		return a.FilePath
	}
	return a.Value
}

// NewSubmission creates a submission for formID, assigning ids to answers.
func NewSubmission(formID string, answers []Answer) Submission {
	sub := Submission{
		ID:        NewID(),
		FormID:    formID,
		CreatedAt: time.Now().UTC(),
		Answers:   make([]Answer, len(answers)),
	}
	for i, a := range answers {
		a.ID = NewID()
		a.SubmissionID = sub.ID
		sub.Answers[i] = a
	}
	return sub
}

// FilePaths returns the uploaded file paths referenced by the submission.
func (s Submission) FilePaths() []string {
	var paths []string
	for _, a := range s.Answers {
		if a.FilePath != "" {
			paths = append(paths, a.FilePath)
		}
	}
	return paths
}
