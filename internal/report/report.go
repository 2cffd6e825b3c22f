package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/khanhnv2901/webharden/internal/checker"
	"github.com/khanhnv2901/webharden/internal/security"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

const (
	FormatJSON = "json"
	FormatHTML = "html"
	FormatPDF  = "pdf"

	htmlTemplatePath = "templates/report.html"
	fileTimeLayout   = "20060102_150405"
	maxNameAttempts  = 1000
)

//go:embed templates/report.html
var reportTemplateFS embed.FS

var htmlReportTemplate = template.Must(
	template.New("report.html").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}).ParseFS(reportTemplateFS, htmlTemplatePath),
)

// DefaultFormats are written when the caller does not choose.
var DefaultFormats = []string{FormatJSON, FormatHTML}

// HeaderRow is one security header line in rendered reports.
type HeaderRow struct {
	Name  string
	State checker.HeaderState
}

// TemplateData holds the data for HTML/PDF rendering
type TemplateData struct {
	Result     checker.AuditResult
	Host       string
	ScoreClass string
	Headers    []HeaderRow
}

// NewTemplateData orders headers by catalog so rendered reports are stable.
func NewTemplateData(result checker.AuditResult) TemplateData {
	data := TemplateData{
		Result:     result,
		Host:       checker.ExtractHost(result.URL),
		ScoreClass: checker.Grade(result.Score),
	}

	seen := make(map[string]bool, len(result.Headers))
	for _, spec := range checker.SecurityHeaderCatalog() {
		if state, ok := result.Headers[spec.Name]; ok {
			data.Headers = append(data.Headers, HeaderRow{Name: spec.Name, State: state})
			seen[spec.Name] = true
		}
	}
	var extra []string
	for name := range result.Headers {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		data.Headers = append(data.Headers, HeaderRow{Name: name, State: result.Headers[name]})
	}
	return data
}

// RenderJSON returns the indented JSON document of a result.
func RenderJSON(result checker.AuditResult) ([]byte, error) {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharederrors.ErrSerializationFailed, err)
	}
	return append(out, '\n'), nil
}

// RenderHTML renders the standalone HTML report.
func RenderHTML(result checker.AuditResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlReportTemplate.Execute(&buf, NewTemplateData(result)); err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", htmlReportTemplate.Name(), err)
	}
	return buf.Bytes(), nil
}

// Render dispatches on format.
func Render(result checker.AuditResult, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return RenderJSON(result)
	case FormatHTML:
		return RenderHTML(result)
	case FormatPDF:
		return RenderPDF(result)
	default:
		return nil, fmt.Errorf("%w: %s", sharederrors.ErrUnsupportedFormat, format)
	}
}

// Writer persists reports under Dir.
type Writer struct {
	Dir string
	Now func() time.Time
}

// FileName returns report_<host>_<YYYYMMDD_HHMMSS>.<format> for result.
func (w *Writer) FileName(result checker.AuditResult, format string) string {
	return w.baseName(result) + "." + strings.ToLower(format)
}

func (w *Writer) baseName(result checker.AuditResult) string {
	host := checker.ExtractHost(result.URL)
	if host == "" {
		host = "target"
	}
	return fmt.Sprintf("report_%s_%s", security.SafeFileComponent(host), w.now().UTC().Format(fileTimeLayout))
}

// Write renders result in every requested format and returns the written
// paths in the same order. All formats share one timestamp. When another
// report already owns the name, a _2, _3, ... suffix is added.
func (w *Writer) Write(result checker.AuditResult, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	dir := w.Dir
	if dir == "" {
		dir = consts.DefaultResultsDir
	}
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}

	rendered := make([][]byte, len(formats))
	for i, format := range formats {
		content, err := Render(result, format)
		if err != nil {
			return nil, err
		}
		rendered[i] = content
	}

	stamp := w.now()
	base := (&Writer{Now: func() time.Time { return stamp }}).baseName(result)

	paths := make([]string, 0, len(formats))
	for attempt := 1; len(paths) == 0; attempt++ {
		if attempt > maxNameAttempts {
			return nil, fmt.Errorf("no free report name for %s in %s", base, dir)
		}
		name := base
		if attempt > 1 {
			name = fmt.Sprintf("%s_%d", base, attempt)
		}
		first, err := security.ResolveWithin(dir, name+"."+strings.ToLower(formats[0]))
		if err != nil {
			return nil, err
		}
		if err := writeExclusive(first, rendered[0]); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("write %s report: %w", formats[0], err)
		}
		paths = append(paths, first)

		for i := 1; i < len(formats); i++ {
			path, err := security.ResolveWithin(dir, name+"."+strings.ToLower(formats[i]))
			if err != nil {
				return paths, err
			}
			if err := os.WriteFile(path, rendered[i], consts.DefaultFilePerm); err != nil {
				return paths, fmt.Errorf("write %s report: %w", formats[i], err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// writeExclusive fails with fs.ErrExist when path is already taken.
func writeExclusive(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, consts.DefaultFilePerm) // #nosec G304 -- path resolved within the results dir.
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// ParseFormats splits a comma separated list such as "json,html".
func ParseFormats(raw string) ([]string, error) {
	var formats []string
	for _, part := range strings.Split(raw, ",") {
		f := strings.ToLower(strings.TrimSpace(part))
		if f == "" {
			continue
		}
		switch f {
		case FormatJSON, FormatHTML, FormatPDF:
			formats = append(formats, f)
		default:
			return nil, fmt.Errorf("%w: %s", sharederrors.ErrUnsupportedFormat, f)
		}
	}
	return formats, nil
}

// RenderPDF lays out the same sections as the HTML report.
func RenderPDF(result checker.AuditResult) ([]byte, error) {
	data := NewTemplateData(result)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Web Hardening Report: "+data.Host, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Target: "+result.URL, "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, "Time: "+result.Timestamp.UTC().Format(time.RFC3339), "", 1, "", false, 0, "")
	if result.Failed() {
		pdf.CellFormat(0, 6, "Failure: "+result.Failure.Label(), "", 1, "", false, 0, "")
	}

	r, g, b := scoreColor(data.ScoreClass)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(r, g, b)
	pdf.CellFormat(0, 8, fmt.Sprintf("Score: %d/100", result.Score), "", 1, "", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)

	section := func(title string, lines []string, empty string) {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 8, title, "", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 9)
		if len(lines) == 0 {
			lines = []string{empty}
		}
		for _, line := range lines {
			pdf.MultiCell(0, 5, "- "+line, "", "", false)
		}
		pdf.Ln(3)
	}

	var headerLines []string
	for _, h := range data.Headers {
		headerLines = append(headerLines, fmt.Sprintf("%s: %s", h.Name, h.State))
	}
	section("Security headers", headerLines, "No headers checked")

	var leakLines []string
	for _, l := range result.Leaks {
		leakLines = append(leakLines, fmt.Sprintf("%s: %s", l.Header, l.Value))
	}
	section("Information leakage", leakLines, "No information leakage detected")

	var cookieLines []string
	for _, c := range result.Cookies {
		sameSite := "unset"
		if c.SameSite != nil {
			sameSite = *c.SameSite
		}
		cookieLines = append(cookieLines, fmt.Sprintf("%s: Secure=%t HttpOnly=%t SameSite=%s", c.Name, c.Secure, c.HttpOnly, sameSite))
	}
	section("Cookies", cookieLines, "No cookies set")

	var tlsLines []string
	if result.HTTPS.Status == checker.ProbeOK {
		if result.HTTPS.TLSVersion != nil {
			tlsLines = append(tlsLines, "Version: "+*result.HTTPS.TLSVersion)
		}
		if result.HTTPS.NotAfter != nil {
			tlsLines = append(tlsLines, "Not after: "+*result.HTTPS.NotAfter)
		}
		keys := make([]string, 0, len(result.HTTPS.Issuer))
		for k := range result.HTTPS.Issuer {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tlsLines = append(tlsLines, fmt.Sprintf("Issuer %s: %s", k, result.HTTPS.Issuer[k]))
		}
	}
	section("TLS", tlsLines, "TLS probe "+string(result.HTTPS.Status))

	var checkLines []string
	for _, c := range result.Checks {
		checkLines = append(checkLines, fmt.Sprintf("%s: %s", c.Name, c.Result))
	}
	section("Additional checks", checkLines, "No additional checks")

	section("Recommendations", result.Recommendations, "All good")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func scoreColor(class string) (int, int, int) {
	switch class {
	case "good":
		return 22, 163, 74
	case "warn":
		return 217, 119, 6
	default:
		return 220, 38, 38
	}
}
