// Package export writes flat-file snapshots of a run's datasets. Every
// dataset is written twice, as CSV and as XLSX, under a common base name
// carrying the search expression and a minute-resolution timestamp.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/peterkacmarik/course-scraper/internal/scraper"
)

const timestampLayout = "2006-01-02_15-04"

// Exporter implements scraper.Exporter on the local filesystem.
type Exporter struct {
	dir    string
	logger *zap.Logger
}

// New builds an Exporter writing under dir. The directory is created on the
// first export if it does not exist.
func New(dir string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dir: dir, logger: logger}
}

// ExportCourseLinks writes the course-link snapshot pair.
func (e *Exporter) ExportCourseLinks(links []scraper.CourseLink, expression string, at time.Time) error {
	header := []string{"url", "wanted_expression"}
	rows := make([][]string, len(links))
	for i, link := range links {
		rows[i] = []string{link.URL, link.WantedExpression}
	}
	return e.write("course_links", expression, at, header, rows)
}

// ExportCourseDetails writes the course-detail snapshot pair.
func (e *Exporter) ExportCourseDetails(details []scraper.CourseDetail, expression string, at time.Time) error {
	header := []string{
		"course_title", "course_subtitle", "course_num_students",
		"course_rating", "course_created_by", "course_last_updated",
		"course_url", "instructor_name", "instructor_ratings",
		"instructor_reviews", "instructor_students", "instructor_courses",
		"instructor_url",
	}
	rows := make([][]string, len(details))
	for i, d := range details {
		rows[i] = []string{
			d.CourseTitle, d.CourseSubtitle, d.CourseNumStudents,
			d.CourseRating, d.CourseCreatedBy, d.CourseLastUpdated,
			d.CourseURL, d.InstructorName, d.InstructorRatings,
			d.InstructorReviews, d.InstructorStudents, d.InstructorCourses,
			d.InstructorURL,
		}
	}
	return e.write("detail_data", expression, at, header, rows)
}

// ExportInstructorDetails writes the instructor snapshot pair.
func (e *Exporter) ExportInstructorDetails(details []scraper.InstructorDetail, expression string, at time.Time) error {
	header := []string{
		"instructor_name", "instructor_website", "twitter", "linkedin",
		"facebook", "youtube", "instructor_url",
	}
	rows := make([][]string, len(details))
	for i, d := range details {
		rows[i] = []string{
			d.InstructorName, d.InstructorWebsite, d.Twitter, d.LinkedIn,
			d.Facebook, d.YouTube, d.InstructorURL,
		}
	}
	return e.write("instructor_detail_data", expression, at, header, rows)
}

// BaseName returns the shared stem of one dataset's snapshot pair. Expression
// words are joined with underscores and the timestamp has minute resolution.
func BaseName(dataset, expression string, at time.Time) string {
	expr := strings.Join(strings.Fields(expression), "_")
	if expr == "" {
		expr = "all"
	}
	return fmt.Sprintf("%s_%s_%s", dataset, expr, at.Format(timestampLayout))
}

func (e *Exporter) write(dataset, expression string, at time.Time, header []string, rows [][]string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir %s: %w", e.dir, err)
	}
	base := BaseName(dataset, expression, at)

	csvPath := filepath.Join(e.dir, base+".csv")
	if err := e.writeCSV(csvPath, header, rows); err != nil {
		return err
	}
	e.logger.Info("data saved to csv file", zap.String("path", csvPath), zap.Int("rows", len(rows)))

	xlsxPath := filepath.Join(e.dir, base+".xlsx")
	if err := e.writeXLSX(xlsxPath, header, rows); err != nil {
		return err
	}
	e.logger.Info("data saved to excel file", zap.String("path", xlsxPath), zap.Int("rows", len(rows)))
	return nil
}

func (e *Exporter) writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv %s: %w", path, err)
	}
	return f.Close()
}

func (e *Exporter) writeXLSX(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Sheet1"
	if err := writeSheetRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeSheetRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", row, err)
	}
	return nil
}
