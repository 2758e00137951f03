package student

import (
	"context"
	"errors"
	"fmt"
	"log"

	"smartattend/internal/face"
	"smartattend/internal/institute"
)

// Extractor produces a face embedding from raw image bytes.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) (face.Embedding, error)
}

// PhotoArchiver stores the enrollment photo and returns its URL.
type PhotoArchiver interface {
	Upload(ctx context.Context, imageData []byte, filename string) (string, error)
}

// Service handles enrollment: one embedding extracted per student at
// registration time, never recomputed.
type Service struct {
	students   *Repository
	institutes *institute.Repository
	extractor  Extractor
	photos     PhotoArchiver // nil disables photo archiving
}

// NewService creates an enrollment service.
func NewService(students *Repository, institutes *institute.Repository, extractor Extractor, photos PhotoArchiver) *Service {
	return &Service{students: students, institutes: institutes, extractor: extractor, photos: photos}
}

// Enroll registers a new student. The institute is created on first use.
func (s *Service) Enroll(ctx context.Context, name, rollNumber, department, instituteName string, photo []byte) (Student, error) {
	if name == "" || rollNumber == "" || instituteName == "" {
		return Student{}, errors.New("name, roll number and institute are required")
	}

	inst, err := s.institutes.FindOrCreate(ctx, instituteName)
	if err != nil {
		return Student{}, fmt.Errorf("resolve institute: %w", err)
	}

	if existing, err := s.students.FindByRoll(ctx, inst.ID, rollNumber); err != nil {
		return Student{}, err
	} else if existing != nil {
		return Student{}, ErrDuplicate
	}

	embedding, err := s.extractor.Extract(ctx, photo)
	if err != nil {
		return Student{}, err
	}
	encoded, err := embedding.Encode()
	if err != nil {
		return Student{}, err
	}

	var photoURL *string
	if s.photos != nil {
		url, err := s.photos.Upload(ctx, photo, fmt.Sprintf("%d_%s.jpg", inst.ID, rollNumber))
		if err != nil {
			// archiving is best-effort
			log.Printf("student: photo archive failed for %s: %v", rollNumber, err)
		} else {
			photoURL = &url
		}
	}

	return s.students.Create(ctx, Student{
		Name:         name,
		RollNumber:   rollNumber,
		Department:   department,
		InstituteID:  inst.ID,
		FaceEncoding: encoded,
		PhotoURL:     photoURL,
	})
}
