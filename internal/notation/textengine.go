package notation

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// TextEngine renders MusicXML as a compact text sketch: one cell per
// measure with note names in order, joined on a single row. It is not a
// layout engine; it exists so the terminal client has something faithful to
// draw while the identifier/lifecycle machinery stays fully exercised.
type TextEngine struct {
	cfg       Config
	container *Container
	score     *score
}

// NewTextEngine returns a TextEngine drawing into c.
func NewTextEngine(cfg Config, c *Container) *TextEngine {
	return &TextEngine{cfg: cfg, container: c}
}

// DefaultFactory builds TextEngines. It is the factory the application
// wires into the pool.
func DefaultFactory(cfg Config, c *Container) Engine {
	return NewTextEngine(cfg, c)
}

// score is the subset of MusicXML the sketch needs.
type score struct {
	XMLName  xml.Name    `xml:"score-partwise"`
	Work     xmlWork     `xml:"work"`
	Credits  []xmlCredit `xml:"credit"`
	PartList xmlPartList `xml:"part-list"`
	Parts    []xmlPart   `xml:"part"`
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlCredit struct {
	Words []string `xml:"credit-words"`
}

type xmlPartList struct {
	ScoreParts []xmlScorePart `xml:"score-part"`
}

type xmlScorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	Number string    `xml:"number,attr"`
	Notes  []xmlNote `xml:"note"`
}

type xmlNote struct {
	Pitch    *xmlPitch `xml:"pitch"`
	Rest     *struct{} `xml:"rest"`
	Chord    *struct{} `xml:"chord"`
	Duration int       `xml:"duration"`
	Type     string    `xml:"type"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter"`
	Octave int    `xml:"octave"`
}

// Load parses text as a score-partwise MusicXML document. A document that
// does not parse, is not score-partwise, or contains no measures fails with
// ErrBadDocument.
func (e *TextEngine) Load(text string) error {
	var s score
	if err := xml.Unmarshal([]byte(text), &s); err != nil {
		return fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if s.XMLName.Local != "score-partwise" {
		return fmt.Errorf("%w: root element %q", ErrBadDocument, s.XMLName.Local)
	}
	if countMeasures(&s) == 0 {
		return fmt.Errorf("%w: no measures", ErrBadDocument)
	}
	e.score = &s
	return nil
}

// Render draws the loaded score into the container. Must follow a
// successful Load.
func (e *TextEngine) Render() error {
	if e.score == nil {
		return ErrNotLoaded
	}
	e.container.SetContent(e.format())
	return nil
}

// Clear erases the container and drops the loaded score.
func (e *TextEngine) Clear() {
	e.score = nil
	e.container.Clear()
}

func countMeasures(s *score) int {
	n := 0
	for _, p := range s.Parts {
		n += len(p.Measures)
	}
	return n
}

// format produces the sketch. Single-row mode joins every measure cell on
// one line per part; otherwise each measure gets its own line. Metadata
// lines honor the suppress flags.
func (e *TextEngine) format() string {
	var b strings.Builder

	if !e.cfg.SuppressTitle && e.score.Work.Title != "" {
		fmt.Fprintf(&b, "%s\n", e.score.Work.Title)
	}
	if !e.cfg.SuppressCredits {
		for _, c := range e.score.Credits {
			for _, w := range c.Words {
				if w != "" {
					fmt.Fprintf(&b, "%s\n", w)
				}
			}
		}
	}

	partNames := make(map[string]string, len(e.score.PartList.ScoreParts))
	for _, sp := range e.score.PartList.ScoreParts {
		partNames[sp.ID] = sp.Name
	}

	for i, p := range e.score.Parts {
		if i > 0 {
			b.WriteString("\n")
		}
		if !e.cfg.SuppressPartNames {
			if name := partNames[p.ID]; name != "" {
				fmt.Fprintf(&b, "[%s] ", name)
			}
		}

		cells := make([]string, 0, len(p.Measures))
		for _, m := range p.Measures {
			cells = append(cells, formatMeasure(m))
		}
		if e.cfg.SingleRow {
			b.WriteString(strings.Join(cells, " | "))
		} else {
			b.WriteString(strings.Join(cells, "\n"))
		}
	}

	return b.String()
}

// formatMeasure renders one measure cell: "m12: E4 G4 B4". Chord members
// attach to the preceding note with '+'. Rests render as "r".
func formatMeasure(m xmlMeasure) string {
	var events []string
	for _, n := range m.Notes {
		text := formatNote(n)
		if text == "" {
			continue
		}
		if n.Chord != nil && len(events) > 0 {
			events[len(events)-1] += "+" + text
			continue
		}
		events = append(events, text)
	}
	if len(events) == 0 {
		events = []string{"r"}
	}
	return fmt.Sprintf("m%s: %s", m.Number, strings.Join(events, " "))
}

func formatNote(n xmlNote) string {
	if n.Rest != nil {
		return "r"
	}
	if n.Pitch == nil {
		return ""
	}
	accidental := ""
	switch {
	case n.Pitch.Alter > 0:
		accidental = strings.Repeat("#", n.Pitch.Alter)
	case n.Pitch.Alter < 0:
		accidental = strings.Repeat("b", -n.Pitch.Alter)
	}
	return fmt.Sprintf("%s%s%d", n.Pitch.Step, accidental, n.Pitch.Octave)
}
