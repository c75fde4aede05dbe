package mock

import (
	"context"

	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// MockClassifier satisfies models.Classifier for testing.
type MockClassifier struct {
	Name_            string
	ClassifyOneFunc  func(ctx context.Context, image []byte) (models.Classification, error)
	ClassifyManyFunc func(ctx context.Context, images [][]byte) ([]models.Classification, error)
}

func (m *MockClassifier) Name() string { return m.Name_ }

func (m *MockClassifier) ClassifyOne(ctx context.Context, image []byte) (models.Classification, error) {
	if m.ClassifyOneFunc != nil {
		return m.ClassifyOneFunc(ctx, image)
	}
	results, err := m.ClassifyMany(ctx, [][]byte{image})
	if err != nil {
		return models.Classification{}, err
	}
	return results[0], nil
}

func (m *MockClassifier) ClassifyMany(ctx context.Context, images [][]byte) ([]models.Classification, error) {
	if m.ClassifyManyFunc != nil {
		return m.ClassifyManyFunc(ctx, images)
	}
	return nil, nil
}

// NewClassifier returns a MockClassifier with a deterministic default answer
// for every image.
func NewClassifier() *MockClassifier {
	return &MockClassifier{
		Name_: "mock",
		ClassifyManyFunc: func(_ context.Context, images [][]byte) ([]models.Classification, error) {
			out := make([]models.Classification, len(images))
			for i := range images {
				out[i] = models.Classification{
					Label:      "NORMAL",
					Confidence: 0.93,
					TopClasses: []models.ClassScore{
						{Label: "NORMAL", Confidence: 0.93},
						{Label: "COVID", Confidence: 0.05},
						{Label: "PNEUMONIA", Confidence: 0.02},
					},
					InferenceTimeMS: 12.5,
				}
			}
			return out, nil
		},
	}
}

// NewFailingClassifier returns a MockClassifier that always returns the
// given error.
func NewFailingClassifier(err error) *MockClassifier {
	return &MockClassifier{
		Name_: "mock-failing",
		ClassifyManyFunc: func(_ context.Context, _ [][]byte) ([]models.Classification, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockClassifier implements Classifier.
var _ models.Classifier = (*MockClassifier)(nil)
