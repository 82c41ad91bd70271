package scraper

import (
	"context"
	"sync"
	"time"
)

// stubStore is an in-memory Store for pipeline and novelty tests. Known URLs
// seed the novelty comparison; every insert is recorded.
type stubStore struct {
	mu sync.Mutex

	knownURLs map[string]bool
	queryErr  error

	insertedLinks       []CourseLink
	insertedDetails     []CourseDetail
	insertedInstructors []InstructorDetail
	insertedMerged      []MergedRow
	combinedCalls       int

	linkInsertErr error
}

func newStubStore(known ...string) *stubStore {
	s := &stubStore{knownURLs: make(map[string]bool)}
	for _, url := range known {
		s.knownURLs[url] = true
	}
	return s
}

func (s *stubStore) CreateTables(context.Context) error { return nil }

func (s *stubStore) InsertCourseLinks(_ context.Context, _ string, links []CourseLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkInsertErr != nil {
		return s.linkInsertErr
	}
	s.insertedLinks = append(s.insertedLinks, links...)
	return nil
}

func (s *stubStore) InsertCourseDetails(_ context.Context, _ string, details []CourseDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertedDetails = append(s.insertedDetails, details...)
	return nil
}

func (s *stubStore) InsertInstructorDetails(_ context.Context, _ string, details []InstructorDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertedInstructors = append(s.insertedInstructors, details...)
	return nil
}

func (s *stubStore) InsertMergedRows(_ context.Context, _ string, rows []MergedRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertedMerged = append(s.insertedMerged, rows...)
	return nil
}

// InsertCombined mirrors the real store: the combined path creates fresh
// parent rows for every index, so calling it after the stage-boundary
// inserts shows up as doubled table counts.
func (s *stubStore) InsertCombined(_ context.Context, _ string, links []CourseLink, details []CourseDetail, instructors []InstructorDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combinedCalls++
	s.insertedLinks = append(s.insertedLinks, links...)
	s.insertedDetails = append(s.insertedDetails, details...)
	s.insertedInstructors = append(s.insertedInstructors, instructors...)
	return nil
}

func (s *stubStore) CourseLinksByURL(_ context.Context, url string) ([]CourseLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if s.knownURLs[url] {
		return []CourseLink{{URL: url}}, nil
	}
	return nil, nil
}

func (s *stubStore) UpdateRows(context.Context, TableKind, map[string]string) (int64, error) {
	return 0, nil
}

func (s *stubStore) DeleteAllRows(context.Context, TableKind) (int64, error) {
	return 0, nil
}

func (s *stubStore) Close() {}

// stubExporter records export calls.
type stubExporter struct {
	mu          sync.Mutex
	expressions []string
	calls       int
}

func (e *stubExporter) record(expression string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.expressions = append(e.expressions, expression)
}

func (e *stubExporter) ExportCourseLinks(_ []CourseLink, expression string, _ time.Time) error {
	e.record(expression)
	return nil
}

func (e *stubExporter) ExportCourseDetails(_ []CourseDetail, expression string, _ time.Time) error {
	e.record(expression)
	return nil
}

func (e *stubExporter) ExportInstructorDetails(_ []InstructorDetail, expression string, _ time.Time) error {
	e.record(expression)
	return nil
}
