// Package postgres provides the Postgres-backed persistence layer for the
// scrape pipeline: four append-only data tables plus the foreign-key join
// table written by the combined-insert path.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peterkacmarik/course-scraper/internal/scraper"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the slice of pgxpool.Pool the store uses; pgxmock implements it
// for tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements scraper.Store on Postgres.
type Store struct {
	pool querier
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateTables creates the schema if it does not exist yet.
func (s *Store) CreateTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS course_links (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	wanted_expression TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE TABLE IF NOT EXISTS detail_course_links (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	course_title TEXT,
	course_subtitle TEXT,
	course_num_students TEXT,
	course_rating TEXT,
	course_created_by TEXT,
	course_last_updated TEXT,
	course_url TEXT,
	instructor_name TEXT,
	instructor_ratings TEXT,
	instructor_reviews TEXT,
	instructor_students TEXT,
	instructor_courses TEXT,
	instructor_url TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE TABLE IF NOT EXISTS instructor_details (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	instructor_name TEXT,
	instructor_website TEXT,
	twitter TEXT,
	linkedin TEXT,
	facebook TEXT,
	youtube TEXT,
	instructor_url TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE TABLE IF NOT EXISTS merge_data (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	url TEXT,
	wanted_expression TEXT,
	course_title TEXT,
	course_subtitle TEXT,
	course_num_students TEXT,
	course_rating TEXT,
	course_created_by TEXT,
	course_last_updated TEXT,
	course_url TEXT,
	instructor_name TEXT,
	instructor_ratings TEXT,
	instructor_reviews TEXT,
	instructor_students TEXT,
	instructor_courses TEXT,
	instructor_url TEXT,
	profile_name TEXT,
	profile_website TEXT,
	twitter TEXT,
	linkedin TEXT,
	facebook TEXT,
	youtube TEXT,
	profile_url TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE TABLE IF NOT EXISTS combined_data (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	course_link_id BIGINT NOT NULL REFERENCES course_links(id),
	detail_course_link_id BIGINT NOT NULL REFERENCES detail_course_links(id),
	instructor_detail_id BIGINT NOT NULL REFERENCES instructor_details(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// InsertCourseLinks appends the links to course_links.
func (s *Store) InsertCourseLinks(ctx context.Context, runID string, links []scraper.CourseLink) error {
	const query = `INSERT INTO course_links (run_id, url, wanted_expression) VALUES ($1, $2, $3)`
	for _, link := range links {
		if _, err := s.pool.Exec(ctx, query, runID, link.URL, link.WantedExpression); err != nil {
			return fmt.Errorf("insert course link: %w", err)
		}
	}
	return nil
}

const insertDetailQuery = `INSERT INTO detail_course_links (
	run_id, course_title, course_subtitle, course_num_students, course_rating,
	course_created_by, course_last_updated, course_url, instructor_name,
	instructor_ratings, instructor_reviews, instructor_students,
	instructor_courses, instructor_url
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

func detailArgs(runID string, d scraper.CourseDetail) []any {
	return []any{
		runID, d.CourseTitle, d.CourseSubtitle, d.CourseNumStudents,
		d.CourseRating, d.CourseCreatedBy, d.CourseLastUpdated, d.CourseURL,
		d.InstructorName, d.InstructorRatings, d.InstructorReviews,
		d.InstructorStudents, d.InstructorCourses, d.InstructorURL,
	}
}

// InsertCourseDetails appends the details to detail_course_links.
func (s *Store) InsertCourseDetails(ctx context.Context, runID string, details []scraper.CourseDetail) error {
	for _, detail := range details {
		if _, err := s.pool.Exec(ctx, insertDetailQuery, detailArgs(runID, detail)...); err != nil {
			return fmt.Errorf("insert course detail: %w", err)
		}
	}
	return nil
}

const insertInstructorQuery = `INSERT INTO instructor_details (
	run_id, instructor_name, instructor_website, twitter, linkedin,
	facebook, youtube, instructor_url
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

func instructorArgs(runID string, d scraper.InstructorDetail) []any {
	return []any{
		runID, d.InstructorName, d.InstructorWebsite, d.Twitter,
		d.LinkedIn, d.Facebook, d.YouTube, d.InstructorURL,
	}
}

// InsertInstructorDetails appends the details to instructor_details.
func (s *Store) InsertInstructorDetails(ctx context.Context, runID string, details []scraper.InstructorDetail) error {
	for _, detail := range details {
		if _, err := s.pool.Exec(ctx, insertInstructorQuery, instructorArgs(runID, detail)...); err != nil {
			return fmt.Errorf("insert instructor detail: %w", err)
		}
	}
	return nil
}

// InsertMergedRows appends the positional concatenation rows to merge_data.
func (s *Store) InsertMergedRows(ctx context.Context, runID string, rows []scraper.MergedRow) error {
	const query = `INSERT INTO merge_data (
	run_id, url, wanted_expression,
	course_title, course_subtitle, course_num_students, course_rating,
	course_created_by, course_last_updated, course_url, instructor_name,
	instructor_ratings, instructor_reviews, instructor_students,
	instructor_courses, instructor_url,
	profile_name, profile_website, twitter, linkedin, facebook, youtube, profile_url
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
	for _, row := range rows {
		args := []any{
			runID, row.Link.URL, row.Link.WantedExpression,
			row.Detail.CourseTitle, row.Detail.CourseSubtitle,
			row.Detail.CourseNumStudents, row.Detail.CourseRating,
			row.Detail.CourseCreatedBy, row.Detail.CourseLastUpdated,
			row.Detail.CourseURL, row.Detail.InstructorName,
			row.Detail.InstructorRatings, row.Detail.InstructorReviews,
			row.Detail.InstructorStudents, row.Detail.InstructorCourses,
			row.Detail.InstructorURL,
			row.Instructor.InstructorName, row.Instructor.InstructorWebsite,
			row.Instructor.Twitter, row.Instructor.LinkedIn,
			row.Instructor.Facebook, row.Instructor.YouTube,
			row.Instructor.InstructorURL,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert merged row: %w", err)
		}
	}
	return nil
}

// InsertCombined inserts the three parent rows per index and records their
// foreign keys in combined_data, all within one transaction so a partial
// failure cannot leave dangling parents.
func (s *Store) InsertCombined(ctx context.Context, runID string, links []scraper.CourseLink, details []scraper.CourseDetail, instructors []scraper.InstructorDetail) error {
	if len(links) != len(details) || len(details) != len(instructors) {
		return &scraper.AlignmentError{
			Links:       len(links),
			Details:     len(details),
			Instructors: len(instructors),
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin combined insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range links {
		var linkID, detailID, instructorID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO course_links (run_id, url, wanted_expression) VALUES ($1, $2, $3) RETURNING id`,
			runID, links[i].URL, links[i].WantedExpression,
		).Scan(&linkID)
		if err != nil {
			return fmt.Errorf("combined insert course link %d: %w", i, err)
		}
		err = tx.QueryRow(ctx, insertDetailQuery+` RETURNING id`, detailArgs(runID, details[i])...).Scan(&detailID)
		if err != nil {
			return fmt.Errorf("combined insert course detail %d: %w", i, err)
		}
		err = tx.QueryRow(ctx, insertInstructorQuery+` RETURNING id`, instructorArgs(runID, instructors[i])...).Scan(&instructorID)
		if err != nil {
			return fmt.Errorf("combined insert instructor detail %d: %w", i, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO combined_data (run_id, course_link_id, detail_course_link_id, instructor_detail_id) VALUES ($1, $2, $3, $4)`,
			runID, linkID, detailID, instructorID,
		)
		if err != nil {
			return fmt.Errorf("combined insert join row %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit combined insert: %w", err)
	}
	return nil
}

// CourseLinksByURL returns persisted links whose url equals the given value
// exactly. It backs the novelty filter's comparison.
func (s *Store) CourseLinksByURL(ctx context.Context, url string) ([]scraper.CourseLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, wanted_expression FROM course_links WHERE url = $1`, url)
	if err != nil {
		return nil, fmt.Errorf("query course links: %w", err)
	}
	defer rows.Close()

	var links []scraper.CourseLink
	for rows.Next() {
		var link scraper.CourseLink
		if err := rows.Scan(&link.URL, &link.WantedExpression); err != nil {
			return nil, fmt.Errorf("scan course link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course links: %w", err)
	}
	return links, nil
}

// UpdateRows applies the field updates to every row of the table. Column
// names are validated against identifier syntax before being interpolated.
func (s *Store) UpdateRows(ctx context.Context, kind scraper.TableKind, updates map[string]string) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	table, err := tableName(kind)
	if err != nil {
		return 0, err
	}

	columns := make([]string, 0, len(updates))
	for column := range updates {
		if !validIdentifier.MatchString(column) {
			return 0, fmt.Errorf("invalid column name %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	query := fmt.Sprintf("UPDATE %s SET ", table)
	args := make([]any, 0, len(columns))
	for i, column := range columns {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("%s = $%d", column, i+1)
		args = append(args, updates[column])
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllRows removes every row of the table.
func (s *Store) DeleteAllRows(ctx context.Context, kind scraper.TableKind) (int64, error) {
	table, err := tableName(kind)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func tableName(kind scraper.TableKind) (string, error) {
	switch kind {
	case scraper.TableCourseLinks, scraper.TableCourseDetails,
		scraper.TableInstructorDetails, scraper.TableMergedRows,
		scraper.TableCombined:
		return string(kind), nil
	default:
		return "", fmt.Errorf("unknown table kind %q", kind)
	}
}
