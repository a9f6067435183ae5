package content

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/kiliankoe/gptdungeon/internal/combat"
)

var templateFuncs = func() template.FuncMap {
	m := sprig.TxtFuncMap()
	m["verb"] = combat.DamageVerb
	return m
}()

// expand renders one named template from set with data.
func expand(set *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(text))
}
