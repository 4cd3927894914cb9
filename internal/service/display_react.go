package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/tools"
)

const defaultExportPrefix = "export default "

// anonymousExportName binds default-exported expressions.
const anonymousExportName = "Component"

var (
	exportedName = regexp.MustCompile(`^export default [A-Za-z_$][\w$]*\s*;?$`)
	// namedDeclaration matches a declaration that keeps its name without
	// the export.
	namedDeclaration = regexp.MustCompile(`^(async\s+)?(function\s*\*?|class)\s+[A-Za-z_$]`)

	declarationKeywords = map[string]bool{"function": true, "async": true, "class": true}
)

func (s *Service) displayReact(ctx context.Context, tc *turnContext, args tools.DisplayReactArgs) {
	code := stripDefaultExport(args.Code)
	view := domain.ReactView{
		ID:     uuid.New().String(),
		Code:   code,
		Render: args.Render,
	}
	content, _ := json.Marshal(map[string]string{
		"code":   code,
		"render": args.Render,
	})
	tc.settleAction(ctx, tools.DisplayReact, tc.display(domain.DisplayReact, view), string(content))
}

// stripDefaultExport removes the default export from a component module.
// "export default Name;" lines are dropped, named declarations lose the
// prefix and any other default-exported expression is bound to a const so
// it may span several lines.
func stripDefaultExport(code string) string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, defaultExportPrefix) {
			out = append(out, line)
			continue
		}
		indent := line[:strings.Index(line, defaultExportPrefix)]
		rest := strings.TrimPrefix(trimmed, defaultExportPrefix)
		if exportedName.MatchString(trimmed) && !declarationKeywords[strings.TrimRight(rest, "; \t")] {
			continue
		}
		if namedDeclaration.MatchString(rest) {
			out = append(out, indent+rest)
			continue
		}
		out = append(out, indent+"const "+anonymousExportName+" = "+rest)
	}
	return strings.Join(out, "\n")
}
