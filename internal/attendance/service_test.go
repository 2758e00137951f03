package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartattend/internal/calendar"
	"smartattend/internal/dress"
	"smartattend/internal/face"
	"smartattend/internal/institute"
	"smartattend/internal/queue"
	"smartattend/internal/student"
)

type stubRecords struct {
	existing *Record // pre-existing record for the duplicate pre-check
	conflict *Record // non-nil simulates losing the insert race
	inserted []Record
	nextID   int64
}

func (s *stubRecords) FindByStudentAndDate(ctx context.Context, studentID int64, day time.Time) (*Record, error) {
	return s.existing, nil
}

func (s *stubRecords) InsertIfAbsent(ctx context.Context, rec Record) (Record, bool, error) {
	if s.conflict != nil {
		return *s.conflict, false, nil
	}
	s.nextID++
	rec.ID = s.nextID
	s.inserted = append(s.inserted, rec)
	return rec, true, nil
}

type stubStudents struct {
	list []student.Student
}

func (s *stubStudents) ListByInstitute(ctx context.Context, instituteID int64) ([]student.Student, error) {
	return s.list, nil
}

type stubInstitutes struct {
	inst *institute.Institute
}

func (s *stubInstitutes) FindByName(ctx context.Context, name string) (*institute.Institute, error) {
	if s.inst == nil {
		return nil, institute.ErrNotFound
	}
	return s.inst, nil
}

type stubPolicy struct {
	decision calendar.Decision
}

func (s *stubPolicy) Check(ctx context.Context, instituteID int64, day time.Time) (calendar.Decision, error) {
	return s.decision, nil
}

type stubDressRefs struct {
	refs []dress.Reference
}

func (s *stubDressRefs) ListByInstitute(ctx context.Context, instituteID int64) ([]dress.Reference, error) {
	return s.refs, nil
}

type stubVerifier struct {
	report *dress.Report
	err    error
}

func (s *stubVerifier) Verify(photo []byte, refs []dress.Reference) (*dress.Report, error) {
	return s.report, s.err
}

type stubExtractor struct {
	embedding face.Embedding
	err       error
	calls     int
}

func (s *stubExtractor) Extract(ctx context.Context, imageData []byte) (face.Embedding, error) {
	s.calls++
	return s.embedding, s.err
}

type stubQueue struct {
	published []queue.Message
}

func (s *stubQueue) Publish(ctx context.Context, msg queue.Message) error {
	s.published = append(s.published, msg)
	return nil
}

func (s *stubQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	return nil, nil
}

// pipeline bundles the stubs behind one service for the tests below.
type pipeline struct {
	svc        *Service
	records    *stubRecords
	extractor  *stubExtractor
	events     *stubQueue
	institutes *stubInstitutes
	policy     *stubPolicy
	verifier   *stubVerifier
}

func newPipeline() *pipeline {
	enrolled := student.Student{
		ID: 7, Name: "Asha Rao", RollNumber: "CS-101", Department: "CS",
		InstituteID: 1, FaceEncoding: "[0.1,0.2,0.3]",
	}
	p := &pipeline{
		records:    &stubRecords{},
		extractor:  &stubExtractor{embedding: face.Embedding{0.1, 0.2, 0.3}},
		events:     &stubQueue{},
		institutes: &stubInstitutes{inst: &institute.Institute{ID: 1, Name: "Springfield High"}},
		policy:     &stubPolicy{decision: calendar.Decision{Allowed: true, Reason: "Working day"}},
		verifier:   &stubVerifier{report: &dress.Report{AllItemsMatched: true}},
	}
	p.svc = NewService(p.records, &stubStudents{list: []student.Student{enrolled}}, p.institutes,
		p.policy, &stubDressRefs{}, p.verifier,
		p.extractor, face.NewLinearMatcher(0.6), p.events, Options{})
	p.svc.now = func() time.Time {
		return time.Date(2025, time.March, 12, 9, 30, 5, 0, time.UTC) // Wednesday
	}
	return p
}

func TestMarkRecordsPresence(t *testing.T) {
	p := newPipeline()

	result, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if result.Student.RollNumber != "CS-101" {
		t.Errorf("RollNumber = %q; want CS-101", result.Student.RollNumber)
	}
	if result.Status != StatusPresent {
		t.Errorf("Status = %q; want %q", result.Status, StatusPresent)
	}
	if result.Confidence != 100 {
		t.Errorf("Confidence = %v; want 100 for an exact embedding", result.Confidence)
	}
	if !result.DressCompliant {
		t.Error("expected compliance with an all-matched report")
	}
	if len(p.records.inserted) != 1 {
		t.Fatalf("inserted = %d records; want 1", len(p.records.inserted))
	}
	if got := p.records.inserted[0].Time; got != "09:30:05" {
		t.Errorf("recorded time = %q; want 09:30:05", got)
	}
	if len(p.events.published) != 1 || p.events.published[0].Type != "attendance.recorded" {
		t.Errorf("published = %+v; want one attendance.recorded event", p.events.published)
	}
}

func TestMarkUnknownInstitute(t *testing.T) {
	p := newPipeline()
	p.institutes.inst = nil

	_, err := p.svc.Mark(context.Background(), "Nowhere Academy", []byte("photo"))
	if !errors.Is(err, ErrInstituteNotFound) {
		t.Fatalf("err = %v; want ErrInstituteNotFound", err)
	}
	if p.extractor.calls != 0 {
		t.Error("no biometric work for an unknown institute")
	}
}

func TestMarkBlockedDayShortCircuits(t *testing.T) {
	p := newPipeline()
	p.policy.decision = calendar.Decision{Allowed: false, Reason: "Sunday"}

	_, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))

	var blocked *PolicyBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v; want *PolicyBlockedError", err)
	}
	if blocked.Reason != "Sunday" || blocked.IsCustom {
		t.Errorf("blocked = %+v; want default-calendar Sunday", blocked)
	}
	if p.extractor.calls != 0 {
		t.Error("extraction must not run on a blocked day")
	}
	if len(p.records.inserted) != 0 {
		t.Error("no record on a blocked day")
	}
}

func TestMarkExtractionErrorPassesThrough(t *testing.T) {
	p := newPipeline()
	p.extractor.err = &face.ExtractionError{Reason: "no face detected in image"}

	_, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))

	var extractErr *face.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("err = %v; want *face.ExtractionError", err)
	}
	if len(p.records.inserted) != 0 {
		t.Error("no record without an embedding")
	}
}

func TestMarkUnrecognizedFace(t *testing.T) {
	p := newPipeline()
	// orthogonal to the enrolled embedding: distance 1.0, over threshold
	p.extractor.embedding = face.Embedding{-0.2, 0.1, 0}

	_, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))
	if !errors.Is(err, ErrNotRecognized) {
		t.Fatalf("err = %v; want ErrNotRecognized", err)
	}
}

func TestMarkDuplicateReturnsPriorRecord(t *testing.T) {
	p := newPipeline()
	p.records.existing = &Record{
		ID: 3, StudentID: 7, Time: "08:15:00", Status: StatusPresent,
	}

	_, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))

	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v; want *DuplicateError", err)
	}
	if dup.StudentName != "Asha Rao" || dup.RollNumber != "CS-101" {
		t.Errorf("dup identifies %s/%s; want Asha Rao/CS-101", dup.StudentName, dup.RollNumber)
	}
	if dup.Existing.Time != "08:15:00" {
		t.Errorf("Existing.Time = %q; want the original 08:15:00", dup.Existing.Time)
	}
	if len(p.records.inserted) != 0 {
		t.Error("duplicate must not write a second record")
	}
}

func TestMarkLostInsertRace(t *testing.T) {
	p := newPipeline()
	p.records.conflict = &Record{
		ID: 9, StudentID: 7, Time: "09:30:04", Status: StatusPresent,
	}

	_, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))

	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v; want *DuplicateError", err)
	}
	if dup.Existing.ID != 9 || dup.Existing.Time != "09:30:04" {
		t.Errorf("Existing = %+v; want the winner's record", dup.Existing)
	}
	if len(p.events.published) != 0 {
		t.Error("the loser of the race must not publish an event")
	}
}

func TestMarkDressViolationStillRecords(t *testing.T) {
	p := newPipeline()
	p.verifier.report = &dress.Report{AllItemsMatched: false, TotalItems: 1}

	result, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if result.Status != StatusViolation {
		t.Errorf("Status = %q; want %q", result.Status, StatusViolation)
	}
	if result.DressCompliant {
		t.Error("DressCompliant should be false")
	}
	if len(p.records.inserted) != 1 {
		t.Fatal("a violation still records attendance")
	}
	if p.records.inserted[0].DressMatch {
		t.Error("record should carry dress_code_match=false")
	}
}

func TestMarkDressCheckFailurePolicy(t *testing.T) {
	tests := []struct {
		name       string
		failClosed bool
		wantStatus string
	}{
		{"fail open records presence", false, StatusPresent},
		{"fail closed records violation", true, StatusViolation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline()
			p.svc.opts.DressFailClosed = tc.failClosed
			p.verifier.report = nil
			p.verifier.err = &dress.ExtractionError{Stage: "decode", Err: errors.New("bad image")}

			result, err := p.svc.Mark(context.Background(), "Springfield High", []byte("photo"))
			if err != nil {
				t.Fatalf("Mark: %v", err)
			}
			if result.Status != tc.wantStatus {
				t.Errorf("Status = %q; want %q", result.Status, tc.wantStatus)
			}
			if result.DressReport == nil || result.DressReport.Message == "" {
				t.Error("report should note the failed check")
			}
		})
	}
}
