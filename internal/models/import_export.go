package models

// ImportValidationError points at one bad cell of an imported sheet.
type ImportValidationError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

// ImportResult summarizes a question set import.
type ImportResult struct {
	AssessmentID  string                  `json:"assessment_id"`
	TotalRows     int                     `json:"total_rows"`
	ImportedCount int                     `json:"imported_count"`
	ErrorCount    int                     `json:"error_count"`
	Errors        []ImportValidationError `json:"errors,omitempty"`
	Set           *QuestionSet            `json:"-"`
}
