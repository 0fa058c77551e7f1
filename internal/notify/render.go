package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/mattjoyce/intake-gw/internal/intake"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

const heading = "New Patient Intake"

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
	headPattern  = regexp.MustCompile(`(?is)<head>.*?</head>`)
	templateList = []string{"intake", "basic"}
)

// BasicIntake is the flat camelCase body accepted by the direct email route.
type BasicIntake struct {
	AgentID           string `json:"agentId"`
	PatientName       string `json:"patientName"`
	PhoneNumber       string `json:"phoneNumber"`
	Email             string `json:"email"`
	DateOfBirth       string `json:"dateOfBirth"`
	InsuranceProvider string `json:"insuranceProvider"`
	ReasonForVisit    string `json:"reasonForVisit"`
	Transcript        string `json:"transcript"`
}

// Row is one labelled field in the intake template.
type Row struct {
	Label   string
	Value   string
	Present bool
}

type intakeView struct {
	Title      string
	Rows       []Row
	Transcript Row
}

type basicView struct {
	Title string
	BasicIntake
}

// Renderer turns extracted fields into HTML and a plain-text fallback.
type Renderer struct {
	schema    *intake.Schema
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates. Labels come from schema.
func NewRenderer(schema *intake.Schema) (*Renderer, error) {
	if schema == nil {
		schema = intake.DefaultSchema()
	}
	r := &Renderer{schema: schema, templates: make(map[string]*template.Template, len(templateList))}
	for _, name := range templateList {
		t, err := template.ParseFS(templateFS, "templates/"+name+".html.tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// RenderIntake renders the full field set. Absent fields show as
// "Not provided"; present empty values render empty.
func (r *Renderer) RenderIntake(fields intake.Fields) (htmlBody, text string, err error) {
	view := intakeView{Title: heading}
	for _, f := range r.schema.Fields() {
		v, ok := fields.Lookup(f.Key)
		row := Row{Label: f.Label, Value: v, Present: ok}
		if f.Key == intake.FieldTranscript {
			view.Transcript = row
			continue
		}
		view.Rows = append(view.Rows, row)
	}
	return r.execute("intake", view)
}

// RenderBasic renders the alternate template used by the direct email route.
func (r *Renderer) RenderBasic(in BasicIntake) (htmlBody, text string, err error) {
	return r.execute("basic", basicView{Title: heading, BasicIntake: in})
}

func (r *Renderer) execute(name string, data any) (string, string, error) {
	var buf bytes.Buffer
	if err := r.templates[name].Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	out := buf.String()
	return out, PlainText(out), nil
}

// PlainText strips tags from an HTML document and unescapes entities.
func PlainText(doc string) string {
	s := headPattern.ReplaceAllString(doc, "")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
