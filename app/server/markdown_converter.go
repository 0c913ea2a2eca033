package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type entityLookup interface {
	Lookup(ctx context.Context, code string) (common.Entity, error)
}

// MarkdownConverter renders the info section of the index page. Mentions
// like @KU091 become links that select the entity on the map.
type MarkdownConverter struct {
	entities entityLookup
	goldmark goldmark.Markdown
}

func NewMarkdownConverter(entities entityLookup) *MarkdownConverter {
	mc := &MarkdownConverter{entities: entities}
	mc.goldmark = goldmark.New(
		goldmark.WithExtensions(extension.Table, &entityMentionExtension{mc: mc}),
	)
	return mc
}

func (mc *MarkdownConverter) ConvertToHTML(source []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := mc.goldmark.Convert(source, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

type entityMentionExtension struct {
	mc *MarkdownConverter
}

func (e *entityMentionExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithASTTransformers(
			util.Prioritized(&entityMentionTransformer{mc: e.mc}, 100),
		),
	)
}

type entityMentionTransformer struct {
	mc *MarkdownConverter
}

var mentionRegex = regexp.MustCompile(`@((?:KU[0-9]{3})|SSS)\b`)

func (t *entityMentionTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	var texts []*ast.Text
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindCodeSpan, ast.KindAutoLink:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			texts = append(texts, n.(*ast.Text))
		}
		return ast.WalkContinue, nil
	})

	// nodes are replaced after the walk, the walker does not like its
	// siblings changing under it
	for _, txt := range texts {
		content := string(txt.Segment.Value(reader.Source()))
		if !strings.Contains(content, "@") {
			continue
		}
		matches := mentionRegex.FindAllStringSubmatchIndex(content, -1)
		if len(matches) == 0 {
			continue
		}

		var newNodes []ast.Node
		lastIndex := 0
		for _, match := range matches {
			start, end := match[0], match[1]
			if start > lastIndex {
				newNodes = append(newNodes, ast.NewString([]byte(content[lastIndex:start])))
			}
			code := content[match[2]:match[3]]
			entity, err := t.mc.entities.Lookup(context.Background(), code)
			if err != nil {
				// leave unknown codes as written
				newNodes = append(newNodes, ast.NewString([]byte(content[start:end])))
			} else {
				link := ast.NewLink()
				link.Destination = []byte(fmt.Sprintf("/?entity=%s", entity.Code))
				link.SetAttributeString("class", []byte("entity-link"))
				link.AppendChild(link, ast.NewString([]byte(entity.Name)))
				newNodes = append(newNodes, link)
			}
			lastIndex = end
		}
		if lastIndex < len(content) {
			newNodes = append(newNodes, ast.NewString([]byte(content[lastIndex:])))
		}
		if txt.SoftLineBreak() {
			last := ast.NewString(nil)
			if s, ok := newNodes[len(newNodes)-1].(*ast.String); ok {
				last = s
			} else {
				newNodes = append(newNodes, last)
			}
			last.Value = append(last.Value, '\n')
		}

		parent := txt.Parent()
		for _, newNode := range newNodes {
			parent.InsertBefore(parent, txt, newNode)
		}
		parent.RemoveChild(parent, txt)
	}
}
