package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"smartattend/internal/calendar"
	"smartattend/internal/dress"
	"smartattend/internal/face"
	"smartattend/internal/institute"
	"smartattend/internal/metrics"
	"smartattend/internal/queue"
	"smartattend/internal/student"
)

// Extractor produces a face embedding from raw image bytes.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) (face.Embedding, error)
}

// RecordStore persists attendance records.
type RecordStore interface {
	FindByStudentAndDate(ctx context.Context, studentID int64, day time.Time) (*Record, error)
	InsertIfAbsent(ctx context.Context, rec Record) (Record, bool, error)
}

// StudentLister supplies the enrolled identities of an institute in
// enrollment order.
type StudentLister interface {
	ListByInstitute(ctx context.Context, instituteID int64) ([]student.Student, error)
}

// InstituteFinder resolves institute names.
type InstituteFinder interface {
	FindByName(ctx context.Context, name string) (*institute.Institute, error)
}

// PolicyChecker answers whether marking is permitted on a day.
type PolicyChecker interface {
	Check(ctx context.Context, instituteID int64, day time.Time) (calendar.Decision, error)
}

// DressRefLister supplies an institute's garment references.
type DressRefLister interface {
	ListByInstitute(ctx context.Context, instituteID int64) ([]dress.Reference, error)
}

// DressVerifier checks a photo against garment references.
type DressVerifier interface {
	Verify(photo []byte, refs []dress.Reference) (*dress.Report, error)
}

// Options carries the injected policy knobs.
type Options struct {
	// DressFailClosed records a dress-code violation when garment features
	// cannot be computed from the submitted photo. Default is the historical
	// fail-open behavior: the check auto-passes with an error note.
	DressFailClosed bool
}

// Service runs the verification pipeline: calendar gate, biometric match,
// garment compliance, then one idempotent record per (student, day).
type Service struct {
	records    RecordStore
	students   StudentLister
	institutes InstituteFinder
	resolver   PolicyChecker
	dressRefs  DressRefLister
	verifier   DressVerifier
	extractor  Extractor
	matcher    face.Matcher
	events     queue.Queue
	opts       Options

	now func() time.Time
}

// NewService wires the pipeline.
func NewService(records RecordStore, students StudentLister, institutes InstituteFinder,
	resolver PolicyChecker, dressRefs DressRefLister, verifier DressVerifier,
	extractor Extractor, matcher face.Matcher, events queue.Queue, opts Options) *Service {
	return &Service{
		records:    records,
		students:   students,
		institutes: institutes,
		resolver:   resolver,
		dressRefs:  dressRefs,
		verifier:   verifier,
		extractor:  extractor,
		matcher:    matcher,
		events:     events,
		opts:       opts,
		now:        time.Now,
	}
}

// MarkResult is the successful outcome of a verification request.
type MarkResult struct {
	Student        student.Student
	Confidence     float64 // percent
	Status         string
	DressCompliant bool
	DressReport    *dress.Report
	Record         Record
}

// Mark runs one verification request end to end. Terminations map onto the
// package error types: *PolicyBlockedError, ErrInstituteNotFound,
// *face.ExtractionError, *face.TransientError, ErrNotRecognized and
// *DuplicateError.
func (s *Service) Mark(ctx context.Context, instituteName string, photo []byte) (*MarkResult, error) {
	start := s.now()
	defer func() {
		metrics.VerificationDuration.Observe(s.now().Sub(start).Seconds())
	}()

	inst, err := s.institutes.FindByName(ctx, instituteName)
	if err != nil {
		if errors.Is(err, institute.ErrNotFound) {
			return nil, ErrInstituteNotFound
		}
		return nil, err
	}

	today := s.now()

	// Cheap rejection before any biometric work.
	decision, err := s.resolver.Check(ctx, inst.ID, today)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeBlocked).Inc()
		return nil, &PolicyBlockedError{Reason: decision.Reason, IsCustom: decision.IsCustom}
	}

	embedding, err := s.extractor.Extract(ctx, photo)
	if err != nil {
		switch err.(type) {
		case *face.ExtractionError:
			metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeNoFace).Inc()
		case *face.TransientError:
			metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeTransient).Inc()
		}
		return nil, err
	}

	matched, err := s.findStudent(ctx, inst.ID, embedding)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		return nil, ErrNotRecognized
	}

	// Duplicate check before the (expensive) garment verification. The
	// atomic insert below still guards against a concurrent racer.
	if existing, err := s.records.FindByStudentAndDate(ctx, matched.student.ID, today); err != nil {
		return nil, err
	} else if existing != nil {
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return nil, s.duplicate(matched.student, *existing)
	}

	compliant, report := s.verifyDress(ctx, inst.ID, photo)

	status := StatusPresent
	if !compliant {
		status = StatusViolation
	}

	rec, inserted, err := s.records.InsertIfAbsent(ctx, Record{
		StudentID:  matched.student.ID,
		Date:       today,
		Time:       today.Format("15:04:05"),
		Status:     status,
		FaceMatch:  true,
		DressMatch: compliant,
	})
	if err != nil {
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeStoreError).Inc()
		return nil, fmt.Errorf("record attendance: %w", err)
	}
	if !inserted {
		// lost a race with a concurrent request; report the winner's record
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return nil, s.duplicate(matched.student, rec)
	}

	if compliant {
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomePresent).Inc()
	} else {
		metrics.VerificationOutcomes.WithLabelValues(metrics.OutcomeViolation).Inc()
	}
	s.publishRecorded(ctx, inst.ID, matched.student, rec)

	return &MarkResult{
		Student:        matched.student,
		Confidence:     matched.confidence,
		Status:         status,
		DressCompliant: compliant,
		DressReport:    report,
		Record:         rec,
	}, nil
}

type matchedStudent struct {
	student    student.Student
	confidence float64
}

// findStudent runs the linear scan over the institute's enrolled identities.
func (s *Service) findStudent(ctx context.Context, instituteID int64, query face.Embedding) (*matchedStudent, error) {
	enrolled, err := s.students.ListByInstitute(ctx, instituteID)
	if err != nil {
		return nil, err
	}

	candidates := make([]face.Candidate, 0, len(enrolled))
	byID := make(map[int64]student.Student, len(enrolled))
	for _, st := range enrolled {
		emb, err := face.DecodeEmbedding(st.FaceEncoding)
		if err != nil {
			log.Printf("attendance: student %d has unreadable embedding: %v", st.ID, err)
			continue
		}
		candidates = append(candidates, face.Candidate{ID: st.ID, Embedding: emb})
		byID[st.ID] = st
	}

	match, ok := s.matcher.BestMatch(query, candidates)
	if !ok {
		return nil, nil
	}
	return &matchedStudent{student: byID[match.ID], confidence: match.Confidence}, nil
}

// verifyDress runs garment verification and applies the configured policy
// when the photo itself cannot be processed.
func (s *Service) verifyDress(ctx context.Context, instituteID int64, photo []byte) (bool, *dress.Report) {
	refs, err := s.dressRefs.ListByInstitute(ctx, instituteID)
	if err != nil {
		log.Printf("attendance: loading dress references failed: %v", err)
		refs = nil
	}

	report, err := s.verifier.Verify(photo, refs)
	if err != nil {
		log.Printf("attendance: dress verification failed: %v", err)
		if s.opts.DressFailClosed {
			return false, &dress.Report{
				Items:      []dress.ItemResult{},
				TotalItems: len(refs),
				Message:    "Dress code check failed: " + err.Error(),
			}
		}
		return true, &dress.Report{
			AllItemsMatched: true,
			Items:           []dress.ItemResult{},
			TotalItems:      len(refs),
			Message:         "Dress code check skipped due to error: " + err.Error(),
		}
	}
	return report.AllItemsMatched, report
}

func (s *Service) duplicate(st student.Student, existing Record) *DuplicateError {
	return &DuplicateError{
		StudentName: st.Name,
		RollNumber:  st.RollNumber,
		Department:  st.Department,
		Existing:    existing,
	}
}

// RecordedEvent is published to the event queue after every new record.
type RecordedEvent struct {
	EventID     string `json:"event_id"`
	RecordID    int64  `json:"record_id"`
	InstituteID int64  `json:"institute_id"`
	StudentID   int64  `json:"student_id"`
	RollNumber  string `json:"roll_number"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

func (s *Service) publishRecorded(ctx context.Context, instituteID int64, st student.Student, rec Record) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(RecordedEvent{
		EventID:     uuid.NewString(),
		RecordID:    rec.ID,
		InstituteID: instituteID,
		StudentID:   st.ID,
		RollNumber:  st.RollNumber,
		Status:      rec.Status,
		Date:        rec.Date.Format(dateFormat),
		Time:        rec.Time,
	})
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: "attendance.recorded", Body: body}); err != nil {
		log.Printf("attendance: event publish failed: %v", err)
	}
}
