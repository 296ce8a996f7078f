package domain

import (
	"fmt"
	"time"
)

// Exam represents an exam file stored for a user
type Exam struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"user_id" db:"id_usuario"`
	Name           string    `json:"test_name" db:"nome_exame"`
	URL            string    `json:"url" db:"url"`
	SubmissionDate time.Time `json:"submission_date" db:"data_submissao"`
}

// UploadFile is a single file received in an upload request
type UploadFile struct {
	Filename string
	Content  []byte
}

// UploadReport aggregates the outcome of a multi-file upload
type UploadReport struct {
	Status   int
	Messages []string
	Data     []Exam
}

// UploadResponse is the body returned by the upload endpoint.
// Message holds a string on success and a list of messages otherwise.
type UploadResponse struct {
	Status  int         `json:"status"`
	Message interface{} `json:"message"`
	Data    []Exam      `json:"data"`
}

// ExamListResponse is the body returned when listing a user's exams
type ExamListResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    []Exam `json:"data"`
}

// StatusResponse is a status plus a single message
type StatusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// BloodPanel holds the blood count values read from a hemogram PDF.
// Values are kept as printed in the document (e.g. "13,5").
type BloodPanel struct {
	Hemoglobin   string `json:"hemoglobin,omitempty"`
	Hematocrit   string `json:"hematocrit,omitempty"`
	Erythrocytes string `json:"erythrocytes,omitempty"`
}

// IsComplete reports whether all three values were found
func (p BloodPanel) IsComplete() bool {
	return p.Hemoglobin != "" && p.Hematocrit != "" && p.Erythrocytes != ""
}

// BloodPanelResponse is the body returned by the hemogram endpoint
type BloodPanelResponse struct {
	ExamID int64  `json:"exam_id"`
	Name   string `json:"test_name"`
	BloodPanel
	Complete bool `json:"complete"`
}

// ToResponse converts the panel to its response DTO for the given exam
func (p BloodPanel) ToResponse(exam *Exam) BloodPanelResponse {
	return BloodPanelResponse{
		ExamID:     exam.ID,
		Name:       exam.Name,
		BloodPanel: p,
		Complete:   p.IsComplete(),
	}
}

// ObjectKey returns the storage key for an exam file
func ObjectKey(userID int64, filename string) string {
	return fmt.Sprintf("%d/%s", userID, filename)
}
