package plandoc

import (
	"bytes"
	"fmt"
	"text/template"

	_ "embed"
)

//go:embed plan.gotmpl
var planTpl string

var planScaffold = template.Must(template.New("plan").Parse(planTpl))

// Render produces the markdown form of the document.
func Render(doc Doc) ([]byte, error) {
	var buf bytes.Buffer
	if err := planScaffold.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("plandoc: render: %w", err)
	}
	return buf.Bytes(), nil
}
