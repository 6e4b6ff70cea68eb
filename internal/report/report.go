// Package report renders the PDF artifact for a finalized record.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/helpline1930/helpline/internal/models"
	"github.com/helpline1930/helpline/internal/record"
)

// Renderer writes complaint reports as PDF files under a directory.
type Renderer struct {
	dir      string
	mediaDir string
}

// Opts holds parameters for creating a Renderer.
type Opts struct {
	Dir      string // output directory for report_<id>.pdf files
	MediaDir string // where downloaded evidence images live
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Opts) (*Renderer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("report: dir is required")
	}
	if opts.MediaDir == "" {
		return nil, fmt.Errorf("report: media dir is required")
	}
	return &Renderer{dir: opts.Dir, mediaDir: opts.MediaDir}, nil
}

// PathFor returns the report file path for a record id.
func (r *Renderer) PathFor(id uint) string {
	return filepath.Join(r.dir, fmt.Sprintf("report_%d.pdf", id))
}

// Exists reports whether the artifact for a record id is on disk.
func (r *Renderer) Exists(id uint) bool {
	_, err := os.Stat(r.PathFor(id))
	return err == nil
}

// Render writes the PDF for a record and returns its path. Re-rendering
// overwrites the previous artifact, so the file always reflects the
// current record.
func (r *Renderer) Render(rec *models.Complaint) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("report: record is required")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: output dir: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "1930 Cyber Crime Helpline, Odisha")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Complaint Report")
	pdf.Ln(14)

	ref := rec.ReferenceNumber
	if ref == "" {
		ref = "N/A"
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Reference Number: "+ref)
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Complaint ID: %d   Status: %s", rec.ID, strings.ToUpper(rec.Status)))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Complaint Type: "+rec.ComplaintType)
	pdf.Ln(10)

	r.section(pdf, "Category Information:", []kv{
		{"Main Category", titleCase(rec.MainCategory)},
		{"Fraud Type", rec.FraudType},
		{"Sub Type", rec.SubType},
	})
	r.section(pdf, "Personal Information:", []kv{
		{"Name", rec.Name},
		{"Father/Spouse/Guardian Name", rec.FatherSpouseGuardianName},
		{"Date of Birth", rec.DateOfBirth},
		{"Phone Number", rec.PhoneNumber},
		{"Email ID", rec.EmailID},
		{"Gender", rec.Gender},
	})
	r.section(pdf, "Address Information:", []kv{
		{"Village", rec.Village},
		{"Post Office", rec.PostOffice},
		{"Police Station", rec.PoliceStation},
		{"District", rec.District},
		{"PIN Code", rec.PinCode},
	})
	if rec.AccountNumber != "" {
		r.section(pdf, "Account Information:", []kv{
			{"Account Number", rec.AccountNumber},
		})
	}

	if docs := record.DecodeDocuments(rec.Documents); len(docs) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Documents & Evidence:")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 11)
		for i, doc := range docs {
			pdf.Cell(0, 6, fmt.Sprintf("%d. %s", i+1, clipLine(doc)))
			pdf.Ln(6)
			r.embedImage(pdf, doc)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, "Created: "+rec.CreatedAt.Format("02/01/2006 15:04:05"))
	pdf.Ln(5)
	updated := "N/A"
	if !rec.UpdatedAt.IsZero() {
		updated = rec.UpdatedAt.Format("02/01/2006 15:04:05")
	}
	pdf.Cell(0, 5, "Updated: "+updated)
	pdf.Ln(5)
	pdf.Cell(0, 5, "WhatsApp ID: "+rec.WaID)

	path := r.PathFor(rec.ID)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

type kv struct {
	label string
	value string
}

// section writes a titled block, skipping empty values. A section with
// no values at all still shows its title, matching the plain layout of
// the printed forms the helpline uses.
func (r *Renderer) section(pdf *fpdf.Fpdf, title string, fields []kv) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, title)
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		pdf.Cell(4, 6, "")
		pdf.Cell(0, 6, f.label+": "+f.value)
		pdf.Ln(6)
	}
	pdf.Ln(4)
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

// embedImage draws an evidence image when the referenced file exists in
// the media directory; otherwise it notes the gap and moves on so one
// missing upload never blocks the whole report.
func (r *Renderer) embedImage(pdf *fpdf.Fpdf, doc string) {
	ext := strings.ToLower(filepath.Ext(doc))
	if !imageExtensions[ext] {
		return
	}
	path := filepath.Join(r.mediaDir, filepath.Base(doc))
	if _, err := os.Stat(path); err != nil {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 5, "[Image file missing]")
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "", 11)
		return
	}
	opts := fpdf.ImageOptions{ReadDpi: true} // type inferred from the extension
	pdf.ImageOptions(path, pdf.GetX()+4, pdf.GetY(), 80, 0, true, opts, 0, "")
	pdf.Ln(4)
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func clipLine(s string) string {
	if len(s) <= 150 {
		return s
	}
	return s[:150]
}
