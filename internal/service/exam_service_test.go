package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/healthtech/filemanager/internal/domain"
	"github.com/healthtech/filemanager/internal/metrics"
	"github.com/healthtech/filemanager/internal/processor"
	"github.com/healthtech/filemanager/internal/repository"
	"github.com/healthtech/filemanager/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testUserID int64 = 1

type testDeps struct {
	repo      *repository.MockExamRepository
	storage   *storage.MockS3Client
	processor *processor.MockProcessor
	metrics   *metrics.Metrics
}

// setupTestService creates a new ExamService with mock dependencies for testing
func setupTestService(t *testing.T, policy *domain.UploadPolicy) (*ExamService, testDeps) {
	t.Helper()

	deps := testDeps{
		repo:      repository.NewMockExamRepository(),
		storage:   storage.NewMockS3Client("https://test-bucket.example.com"),
		processor: processor.NewMockProcessor(),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	deps.repo.AddUser(testUserID)

	svc := NewExamService(deps.repo, deps.storage, deps.processor, policy, deps.metrics, zap.NewNop().Sugar())
	return svc, deps
}

func pdfFile(name string) domain.UploadFile {
	return domain.UploadFile{Filename: name, Content: []byte("%PDF-1.4 " + name)}
}

func TestUploadExams_Success(t *testing.T) {
	svc, deps := setupTestService(t, nil)
	ctx := context.Background()

	report, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("a.pdf"), pdfFile("b.pdf")})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, report.Status)
	assert.Equal(t, []string{
		"The file 'a.pdf' has been successfully uploaded for user '1'",
		"The file 'b.pdf' has been successfully uploaded for user '1'",
	}, report.Messages)
	require.Len(t, report.Data, 2)
	assert.Equal(t, "a.pdf", report.Data[0].Name)
	assert.Equal(t, testUserID, report.Data[0].UserID)
	assert.Contains(t, report.Data[0].URL, "1/a.pdf")
	assert.NotZero(t, report.Data[0].ID)

	data, contentType, ok := deps.storage.GetObject("1/a.pdf")
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.4 a.pdf"), data)
	assert.Equal(t, domain.ContentTypePDF, contentType)
	assert.Equal(t, 2, deps.repo.ExamCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(deps.metrics.UploadsTotal.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestUploadExams_NoFiles(t *testing.T) {
	svc, _ := setupTestService(t, nil)

	report, err := svc.UploadExams(context.Background(), testUserID, nil)
	assert.ErrorIs(t, err, domain.ErrNoFiles)
	assert.Nil(t, report)
}

func TestUploadExams_NotPDF(t *testing.T) {
	svc, deps := setupTestService(t, nil)

	report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{
		{Filename: "notes.txt", Content: []byte("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, []string{"The file 'notes.txt' is not a PDF, only PDF files are allowed"}, report.Messages)
	assert.Empty(t, report.Data)
	assert.Equal(t, 0, deps.storage.Calls(storage.OpPut))
}

func TestUploadExams_Duplicate(t *testing.T) {
	svc, deps := setupTestService(t, nil)
	ctx := context.Background()

	_, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	report, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, []string{"A test with the name 'a.pdf' already exists for user '1'"}, report.Messages)
	assert.Equal(t, 1, deps.storage.Calls(storage.OpPut))
}

func TestUploadExams_TooLarge(t *testing.T) {
	svc, deps := setupTestService(t, &domain.UploadPolicy{
		MaxFileSizeMB: 1,
		AllowedTypes:  []string{domain.ContentTypePDF},
	})

	big := domain.UploadFile{Filename: "big.pdf", Content: bytes.Repeat([]byte("x"), 1024*1024+1)}
	exact := domain.UploadFile{Filename: "exact.pdf", Content: bytes.Repeat([]byte("x"), 1024*1024)}

	report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{big, exact})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, "The File 'big.pdf' exceeds the size limit of '1MB'", report.Messages[0])
	assert.Equal(t, "The file 'exact.pdf' has been successfully uploaded for user '1'", report.Messages[1])
	require.Len(t, report.Data, 1)
	assert.False(t, deps.storage.HasObject("1/big.pdf"))
}

func TestUploadExams_DefaultSizeLabel(t *testing.T) {
	svc, _ := setupTestService(t, nil)
	assert.Equal(t, "200MB", svc.policy.MaxFileSizeLabel())
}

func TestUploadExams_StorageFailureReleasesRow(t *testing.T) {
	svc, deps := setupTestService(t, nil)
	deps.storage.FailOn(storage.OpPut, errors.New("connection refused"))

	report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, report.Status)
	assert.Equal(t, []string{"Error while uploading the file 'a.pdf' to AWS S3 for user '1'"}, report.Messages)
	assert.Equal(t, 1, deps.repo.Calls("create"))
	assert.Equal(t, 1, deps.repo.Calls("delete"))
	assert.Equal(t, 0, deps.repo.ExamCount())
}

func TestUploadExams_PresignFailure(t *testing.T) {
	svc, deps := setupTestService(t, nil)
	deps.storage.FailOn(storage.OpPresign, errors.New("signing failed"))

	report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, report.Status)
	assert.Equal(t, []string{"Error while uploading the file 'a.pdf' to AWS S3 for user '1'"}, report.Messages)
	assert.Equal(t, 0, deps.storage.Calls(storage.OpPut))
	assert.Equal(t, 0, deps.repo.ExamCount())
}

func TestUploadExams_DatabaseFailure(t *testing.T) {
	svc, deps := setupTestService(t, nil)
	deps.repo.SetError(errors.New("connection reset"))

	report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{pdfFile("a.pdf")})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, report.Status)
	assert.Equal(t, []string{"Error while saving the file 'a.pdf' for user '1'"}, report.Messages)
	assert.Equal(t, 0, deps.storage.Calls(storage.OpPut))
}

// nameBlindRepository never finds an exam by name, so every upload reaches Create
// as two concurrent requests for the same name would.
type nameBlindRepository struct {
	*repository.MockExamRepository
}

func (r nameBlindRepository) GetByUserAndName(ctx context.Context, userID int64, name string) (*domain.Exam, error) {
	return nil, domain.ErrExamNotFound
}

func TestUploadExams_ConcurrentDuplicateKeepsStoredFile(t *testing.T) {
	deps := testDeps{
		repo:      repository.NewMockExamRepository(),
		storage:   storage.NewMockS3Client("https://test-bucket.example.com"),
		processor: processor.NewMockProcessor(),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	deps.repo.AddUser(testUserID)
	svc := NewExamService(nameBlindRepository{deps.repo}, deps.storage, deps.processor, nil, deps.metrics, zap.NewNop().Sugar())
	ctx := context.Background()

	first := domain.UploadFile{Filename: "a.pdf", Content: []byte("%PDF-1.4 first")}
	second := domain.UploadFile{Filename: "a.pdf", Content: []byte("%PDF-1.4 second")}

	report, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{first})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, report.Status)
	stored := report.Data[0]

	report, err = svc.UploadExams(ctx, testUserID, []domain.UploadFile{second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, []string{"A test with the name 'a.pdf' already exists for user '1'"}, report.Messages)

	exam, err := deps.repo.GetByUserAndID(ctx, testUserID, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", exam.Name)

	data, _, ok := deps.storage.GetObject("1/a.pdf")
	require.True(t, ok, "stored file must survive the rejected duplicate")
	assert.Equal(t, first.Content, data)
	assert.Equal(t, 1, deps.storage.Calls(storage.OpPut))
	assert.Equal(t, 0, deps.storage.Calls(storage.OpDelete))
}

func TestUploadExams_ContentTypeFollowsPolicy(t *testing.T) {
	svc, deps := setupTestService(t, &domain.UploadPolicy{
		MaxFileSizeMB: 5,
		AllowedTypes:  []string{domain.ContentTypePDF, "image/png"},
	})

	report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{
		{Filename: "scan.png", Content: []byte("png")},
		{Filename: "notes.txt", Content: []byte("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, report.Status)
	assert.Equal(t, "The file 'notes.txt' has an unsupported type, allowed types are: application/pdf, image/png",
		report.Messages[1])

	_, contentType, ok := deps.storage.GetObject("1/scan.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
}

func TestUploadExams_StatusAggregation(t *testing.T) {
	t.Run("BadRequestOverSuccess", func(t *testing.T) {
		svc, _ := setupTestService(t, nil)
		report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{
			pdfFile("a.pdf"),
			{Filename: "b.png", Content: []byte("png")},
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, report.Status)
		assert.Len(t, report.Messages, 2)
		assert.Len(t, report.Data, 1)
	})

	t.Run("ServerErrorIsSticky", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		deps.storage.FailOn(storage.OpPut, errors.New("timeout"))

		report, err := svc.UploadExams(context.Background(), testUserID, []domain.UploadFile{
			pdfFile("a.pdf"),
			{Filename: "b.png", Content: []byte("png")},
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, report.Status)
		assert.Equal(t, []string{
			"Error while uploading the file 'a.pdf' to AWS S3 for user '1'",
			"The file 'b.png' is not a PDF, only PDF files are allowed",
		}, report.Messages)
	})
}

func TestDeleteExam(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		report, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("a.pdf")})
		require.NoError(t, err)
		examID := report.Data[0].ID

		exam, err := svc.DeleteExam(ctx, testUserID, examID)
		require.NoError(t, err)
		assert.Equal(t, "a.pdf", exam.Name)
		assert.False(t, deps.storage.HasObject("1/a.pdf"))
		assert.Equal(t, 0, deps.repo.ExamCount())
	})

	t.Run("ExamNotFound", func(t *testing.T) {
		svc, _ := setupTestService(t, nil)
		exam, err := svc.DeleteExam(ctx, testUserID, 99)
		assert.ErrorIs(t, err, domain.ErrExamNotFound)
		assert.Nil(t, exam)
	})

	t.Run("ObjectMissing", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		created := &domain.Exam{UserID: testUserID, Name: "gone.pdf", URL: "u"}
		require.NoError(t, deps.repo.Create(ctx, created))

		exam, err := svc.DeleteExam(ctx, testUserID, created.ID)
		assert.ErrorIs(t, err, domain.ErrObjectNotFound)
		require.NotNil(t, exam)
		assert.Equal(t, "gone.pdf", exam.Name)
		assert.Equal(t, 1, deps.repo.ExamCount())
	})

	t.Run("StorageFailure", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		report, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("a.pdf")})
		require.NoError(t, err)
		deps.storage.FailOn(storage.OpDelete, errors.New("access denied"))

		_, err = svc.DeleteExam(ctx, testUserID, report.Data[0].ID)
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.Equal(t, 1, deps.repo.ExamCount())
	})

	t.Run("WrongOwner", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		deps.repo.AddUser(2)
		report, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("a.pdf")})
		require.NoError(t, err)

		_, err = svc.DeleteExam(ctx, 2, report.Data[0].ID)
		assert.ErrorIs(t, err, domain.ErrExamNotFound)
		assert.True(t, deps.storage.HasObject("1/a.pdf"))
	})
}

func TestListExams(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t, nil)

	exams, err := svc.ListExams(ctx, testUserID)
	require.NoError(t, err)
	assert.NotNil(t, exams)
	assert.Empty(t, exams)

	_, err = svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("b.pdf"), pdfFile("a.pdf")})
	require.NoError(t, err)

	exams, err = svc.ListExams(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Equal(t, "b.pdf", exams[0].Name)
	assert.Less(t, exams[0].ID, exams[1].ID)

	_, err = svc.ListExams(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBloodPanel(t *testing.T) {
	ctx := context.Background()
	report := "Hemoglobina 14,2 g/dL\nHematócrito 42,0 %\nEritrócitos 4,85 milhões"

	t.Run("Success", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		file := pdfFile("hemograma.pdf")
		deps.processor.SetText(file.Content, report)
		up, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{file})
		require.NoError(t, err)

		exam, panel, err := svc.BloodPanel(ctx, testUserID, up.Data[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "hemograma.pdf", exam.Name)
		assert.Equal(t, domain.BloodPanel{Hemoglobin: "14,2", Hematocrit: "42,0", Erythrocytes: "4,85"}, panel)
		assert.Equal(t, file.Content, deps.processor.GetLastData())
	})

	t.Run("ExamNotFound", func(t *testing.T) {
		svc, _ := setupTestService(t, nil)
		_, _, err := svc.BloodPanel(ctx, testUserID, 5)
		assert.ErrorIs(t, err, domain.ErrExamNotFound)
	})

	t.Run("ObjectMissing", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		created := &domain.Exam{UserID: testUserID, Name: "gone.pdf", URL: "u"}
		require.NoError(t, deps.repo.Create(ctx, created))

		_, _, err := svc.BloodPanel(ctx, testUserID, created.ID)
		assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	})

	t.Run("UnreadablePDF", func(t *testing.T) {
		svc, deps := setupTestService(t, nil)
		up, err := svc.UploadExams(ctx, testUserID, []domain.UploadFile{pdfFile("broken.pdf")})
		require.NoError(t, err)
		deps.processor.SetError(errors.New("malformed xref"))

		exam, _, err := svc.BloodPanel(ctx, testUserID, up.Data[0].ID)
		assert.ErrorIs(t, err, domain.ErrInvalidPDF)
		require.NotNil(t, exam)
		assert.Equal(t, "broken.pdf", exam.Name)
	})
}
