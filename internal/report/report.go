package report

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/model"
)

const (
	fontFamily     = "NotoSans"
	fallbackFamily = "Helvetica"
	lineHeight     = 6.0
)

// Options configures a Renderer
type Options struct {
	// Dir receives the generated files.
	Dir string
	// FontPath is a UTF-8 TrueType font. Missing or invalid fonts fall back
	// to the core Helvetica font.
	FontPath string
	// FontURL is downloaded to FontPath when the file does not exist.
	FontURL  string
	Compress bool
	Labels   Labels
}

// Labels holds the fixed texts printed in the document and the email.
type Labels struct {
	Title      string
	Date       string
	Analysis   string
	References string
	Subject    string
	Body       string
}

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		Title:      "GLOBAL & VIETNAM ECONOMIC NEWS ANALYSIS REPORT",
		Date:       "Date",
		Analysis:   "I. ANALYSIS",
		References: "II. REFERENCE ARTICLES",
		Subject:    "[ECONOMIC REPORT]",
		Body:       "Attached is the latest AI generated analysis of global and Vietnamese economic news.",
	}
}

// Renderer writes the report PDF
type Renderer struct {
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRenderer creates a Renderer
func NewRenderer(opts Options, logger *zap.Logger) *Renderer {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.Labels == (Labels{}) {
		opts.Labels = DefaultLabels()
	}
	return &Renderer{
		opts:       opts,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Filename returns the file name used for the report of date.
func Filename(date time.Time) string {
	return fmt.Sprintf("economic-report-%s.pdf", date.Format("2006-01-02"))
}

// Render writes the summary and the reference list to a PDF file.
func (r *Renderer) Render(ctx context.Context, summary string, articles []model.Article, date time.Time) (model.Report, error) {
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return model.Report{}, fmt.Errorf("creating report directory: %w", err)
	}

	day := date.Format("2006-01-02")
	labels := r.opts.Labels

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.opts.Compress)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	family, tr := r.setupFont(ctx, pdf)
	pdf.SetTitle(labels.Title, true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(family, "", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.MultiCell(0, 8, tr(labels.Title), "", "C", false)
	pdf.Ln(4)

	pdf.SetFont(family, "", 11)
	pdf.Write(lineHeight, tr(fmt.Sprintf("%s: %s", labels.Date, day)))
	pdf.Ln(lineHeight * 2)

	pdf.SetFont(family, "B", 11)
	pdf.Write(lineHeight, tr(labels.Analysis))
	pdf.Ln(lineHeight + 2)
	pdf.SetFont(family, "", 11)
	r.writeAnalysis(pdf, family, tr, summary)

	pdf.Ln(lineHeight)
	pdf.SetFont(family, "B", 11)
	pdf.Write(lineHeight, tr(labels.References))
	pdf.Ln(lineHeight + 2)
	pdf.SetFont(family, "", 11)
	writeReferences(pdf, family, tr, articles)

	filename := Filename(date)
	path := filepath.Join(r.opts.Dir, filename)
	if err := pdf.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return model.Report{}, fmt.Errorf("writing pdf: %w", err)
	}

	r.logger.Info("Report rendered", zap.String("path", path), zap.Int("articles", len(articles)))
	return model.Report{
		Path:         path,
		Filename:     filename,
		Date:         date,
		Subject:      fmt.Sprintf("%s %s", labels.Subject, day),
		Body:         labels.Body,
		ArticleCount: len(articles),
	}, nil
}

// setupFont registers the UTF-8 font when possible. The returned function
// translates text for the selected font.
func (r *Renderer) setupFont(ctx context.Context, pdf *fpdf.Fpdf) (family string, tr func(string) string) {
	if r.opts.FontPath != "" {
		err := r.loadFont(ctx, pdf)
		if err == nil {
			return fontFamily, func(s string) string { return s }
		}
		r.logger.Warn("Falling back to Helvetica", zap.String("font", r.opts.FontPath), zap.Error(err))
	}
	return fallbackFamily, pdf.UnicodeTranslatorFromDescriptor("")
}

func (r *Renderer) loadFont(ctx context.Context, pdf *fpdf.Fpdf) (err error) {
	if err := EnsureFont(ctx, r.httpClient, r.opts.FontPath, r.opts.FontURL); err != nil {
		return err
	}
	data, err := os.ReadFile(r.opts.FontPath)
	if err != nil {
		return fmt.Errorf("reading font: %w", err)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			pdf.ClearError()
			err = fmt.Errorf("parsing font: %v", recovered)
		}
	}()
	pdf.AddUTF8FontFromBytes(fontFamily, "", data)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", data)
	if pdf.Err() {
		err = pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("registering font: %w", err)
	}
	return nil
}

func (r *Renderer) writeAnalysis(pdf *fpdf.Fpdf, family string, tr func(string) string, summary string) {
	html := pdf.HTMLBasicNew()

	for _, paragraph := range strings.Split(summary, "\n\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		for _, line := range strings.Split(paragraph, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			rendered, err := RenderLine(line)
			if err == nil {
				html.Write(lineHeight, tr(rendered))
				if pdf.Err() {
					err = pdf.Error()
					pdf.ClearError()
				}
			}
			if err != nil {
				r.logger.Debug("Writing line as plain text", zap.Error(err))
				pdf.SetFont(family, "", 11)
				pdf.Write(lineHeight, tr(StripMarkup(line)))
			}
			pdf.SetFont(family, "", 11)
			pdf.Ln(lineHeight)
		}
		pdf.Ln(2)
	}
}

func writeReferences(pdf *fpdf.Fpdf, family string, tr func(string) string, articles []model.Article) {
	for _, article := range articles {
		pdf.Write(lineHeight, "- ")
		pdf.SetTextColor(0, 0, 128)
		pdf.SetFont(family, "U", 11)
		pdf.WriteLinkString(lineHeight, tr(article.Title), article.URL)
		pdf.SetFont(family, "", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.Write(lineHeight, tr(fmt.Sprintf(" (%s)", article.Source)))
		pdf.Ln(lineHeight + 1)
	}
}
