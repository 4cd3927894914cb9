package deploy

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed assets/main.ts assets/cors.ts assets/db.ts assets/handler.ts.tmpl
var assetFS embed.FS

var handlerTemplate = template.Must(template.ParseFS(assetFS, "assets/handler.ts.tmpl"))

// Asset is one file of a deployment.
type Asset struct {
	Kind     string `json:"kind"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Assets maps deployment file paths to their contents.
type Assets map[string]Asset

// FileAsset wraps content as a utf-8 file asset.
func FileAsset(content string) Asset {
	return Asset{Kind: "file", Encoding: "utf-8", Content: content}
}

func embedded(name string) (Asset, error) {
	raw, err := assetFS.ReadFile("assets/" + name)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to read asset %s: %w", name, err)
	}
	return FileAsset(string(raw)), nil
}

// QueryEndpointAssets builds the program serving one query as JSON. The SQL
// and params are embedded as JSON literals, which are valid TypeScript.
func QueryEndpointAssets(sql string, params []string) (Assets, error) {
	if params == nil {
		params = []string{}
	}
	sqlLit, err := json.Marshal(sql)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sql: %w", err)
	}
	paramsLit, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	var buf bytes.Buffer
	if err := handlerTemplate.Execute(&buf, map[string]string{
		"SQL":    string(sqlLit),
		"Params": string(paramsLit),
	}); err != nil {
		return nil, fmt.Errorf("failed to render handler: %w", err)
	}

	db, err := embedded("db.ts")
	if err != nil {
		return nil, err
	}
	return Assets{
		"db.ts":      db,
		"handler.ts": FileAsset(buf.String()),
	}, nil
}

// withEntryPoint adds main.ts and cors.ts to assets. Caller files win.
func withEntryPoint(assets Assets) (Assets, error) {
	out := make(Assets, len(assets)+2)
	for _, name := range []string{"main.ts", "cors.ts"} {
		a, err := embedded(name)
		if err != nil {
			return nil, err
		}
		out[name] = a
	}
	for k, v := range assets {
		out[k] = v
	}
	return out, nil
}
