// Package prompt holds the templates that turn a document snapshot into a
// model prompt.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"
)

// Kind identifies which placeholders a template must fill.
type Kind int

const (
	// KindField generates one top-level document field.
	KindField Kind = iota
	// KindChapter generates the text of one chapter.
	KindChapter
	// KindImage generates a visual description of one character.
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindChapter:
		return "chapter"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

func (k Kind) placeholders() []string {
	switch k {
	case KindChapter:
		return []string{"Document", "Chapter", "Instructions"}
	case KindImage:
		return []string{"Document", "Index", "Character"}
	default:
		return []string{"Document", "Field", "Instructions"}
	}
}

// Data is the value a template is executed with. Only the placeholders of
// the template's Kind are filled.
type Data struct {
	Document     string
	Field        string
	Chapter      string
	Instructions string
	Index        int
	Character    string
}

// Template is a parsed prompt whose placeholders have been checked.
type Template struct {
	kind Kind
	tmpl *template.Template
}

// Parse parses text and verifies it references every placeholder its kind
// fills. A template that would silently drop the document or the format
// instructions is rejected here rather than at generation time.
func Parse(kind Kind, name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s template %s: %w", kind, name, err)
	}

	used := make(map[string]bool)
	if tmpl.Tree != nil {
		collectFields(tmpl.Tree.Root, used)
	}

	var missing []string
	for _, p := range kind.placeholders() {
		if !used[p] {
			missing = append(missing, "{{."+p+"}}")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s template %s is missing placeholders %s", kind, name, strings.Join(missing, ", "))
	}

	return &Template{kind: kind, tmpl: tmpl}, nil
}

// MustParse is like Parse but panics on error. Used for built-in defaults.
func MustParse(kind Kind, name, text string) *Template {
	t, err := Parse(kind, name, text)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) Kind() Kind {
	return t.kind
}

func (t *Template) Name() string {
	return t.tmpl.Name()
}

// Execute renders the template.
func (t *Template) Execute(data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s template %s: %w", t.kind, t.Name(), err)
	}
	return buf.String(), nil
}

func collectFields(node parse.Node, used map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			collectFields(c, used)
		}
	case *parse.ActionNode:
		collectPipe(n.Pipe, used)
	case *parse.IfNode:
		collectBranch(&n.BranchNode, used)
	case *parse.RangeNode:
		collectBranch(&n.BranchNode, used)
	case *parse.WithNode:
		collectBranch(&n.BranchNode, used)
	case *parse.TemplateNode:
		collectPipe(n.Pipe, used)
	}
}

func collectBranch(b *parse.BranchNode, used map[string]bool) {
	collectPipe(b.Pipe, used)
	collectFields(b.List, used)
	if b.ElseList != nil {
		collectFields(b.ElseList, used)
	}
}

func collectPipe(p *parse.PipeNode, used map[string]bool) {
	if p == nil {
		return
	}
	for _, cmd := range p.Cmds {
		for _, arg := range cmd.Args {
			switch a := arg.(type) {
			case *parse.FieldNode:
				if len(a.Ident) > 0 {
					used[a.Ident[0]] = true
				}
			case *parse.PipeNode:
				collectPipe(a, used)
			}
		}
	}
}
