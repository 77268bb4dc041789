package execute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	KarmaTemplateID = "karma-template"
	UIBootstrapID   = "ui-bootstrap"

	// DefaultKarmaTemplate is AngularJS's file list template.
	DefaultKarmaTemplate = "angularFiles.template.js"
	UIBootstrapTemplate  = "retrospec-karma.template.js"
	UIBootstrapOutput    = "retrospec-karma.conf.js"

	testSuiteListToken = "${testSuiteList}"
)

// KarmaTemplate writes the selected files into a karma file list generated
// from a template, then runs `grunt test:retrospec`.
type KarmaTemplate struct {
	id       string
	template string
	output   string
	opts     Options
}

func NewKarmaTemplate(opts Options) *KarmaTemplate {
	tmpl := opts.KarmaTemplate
	if tmpl == "" {
		tmpl = DefaultKarmaTemplate
	}
	return &KarmaTemplate{
		id:       KarmaTemplateID,
		template: tmpl,
		output:   strings.Replace(filepath.Base(tmpl), ".template", "", 1),
		opts:     opts,
	}
}

func (e *KarmaTemplate) ID() string { return e.id }

func (e *KarmaTemplate) Execute(ctx context.Context, tests []string) (*Result, error) {
	if err := e.render(tests); err != nil {
		return nil, err
	}

	argv := []string{"grunt", "test:retrospec"}
	out, err := run(ctx, e.opts, argv)
	res := &Result{Commands: [][]string{argv}, Output: out}
	if err != nil {
		res.ExitCode = exitCode(err)
		return res, err
	}
	return res, nil
}

func (e *KarmaTemplate) render(tests []string) error {
	src := e.template
	if !filepath.IsAbs(src) {
		src = filepath.Join(e.opts.WorkDir, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read karma template: %w", err)
	}

	content := RenderFileList(string(data), tests)
	dst := filepath.Join(filepath.Dir(src), e.output)
	if err := os.WriteFile(dst, []byte(content), 0644); err != nil {
		return fmt.Errorf("write karma file list: %w", err)
	}
	e.opts.logger().Debug("rendered karma file list", "template", src, "output", dst, "tests", len(tests))
	return nil
}

// RenderFileList replaces the quoted '${testSuiteList}' token (or, failing
// that, the bare token) with a comma-separated list of single-quoted paths.
func RenderFileList(template string, tests []string) string {
	quoted := make([]string, len(tests))
	for i, t := range tests {
		quoted[i] = "'" + strings.ReplaceAll(t, "\\", "/") + "'"
	}
	list := strings.Join(quoted, ",")

	if q := "'" + testSuiteListToken + "'"; strings.Contains(template, q) {
		return strings.Replace(template, q, list, 1)
	}
	return strings.Replace(template, testSuiteListToken, list, 1)
}
