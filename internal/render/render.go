package render

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// lookPath is swappable so tests can simulate a missing wkhtmltopdf binary.
var lookPath = exec.LookPath

// Renderer turns HTML documents into PDFs via the wkhtmltopdf binary.
type Renderer struct {
	// Path to the wkhtmltopdf binary; empty means rely on PATH lookup.
	Path string
}

func NewRenderer(path string) *Renderer {
	return &Renderer{Path: path}
}

// Available reports whether the wkhtmltopdf binary can be found.
func (r *Renderer) Available() bool {
	if r.Path != "" {
		info, err := os.Stat(r.Path)
		return err == nil && !info.IsDir()
	}
	_, err := lookPath("wkhtmltopdf")
	return err == nil
}

// HTMLToPDF renders the HTML file to <base>.pdf in outputDir.
// Letter pages with one-inch margins, matching the document stylesheet.
func (r *Renderer) HTMLToPDF(htmlPath, outputDir, base string) (string, error) {
	if _, err := os.Stat(htmlPath); err != nil {
		return "", fmt.Errorf("HTML file not found: %w", err)
	}
	if r.Path != "" {
		wkhtmltopdf.SetPath(r.Path)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return "", fmt.Errorf("failed to init wkhtmltopdf: %w", err)
	}

	pdfg.PageSize.Set(wkhtmltopdf.PageSizeLetter)
	pdfg.MarginTop.Set(25)
	pdfg.MarginBottom.Set(25)
	pdfg.MarginLeft.Set(25)
	pdfg.MarginRight.Set(25)

	page := wkhtmltopdf.NewPage(htmlPath)
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return "", fmt.Errorf("PDF generation failed: %w", err)
	}

	pdfPath := filepath.Join(outputDir, base+".pdf")
	if err := pdfg.WriteFile(pdfPath); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}
	return pdfPath, nil
}

// MarkdownToHTML converts the markdown file into a standalone HTML document
// at <base>_temp.html in outputDir, ready for PDF rendering.
func MarkdownToHTML(mdPath, outputDir, base string) (string, error) {
	source, err := os.ReadFile(mdPath)
	if err != nil {
		return "", fmt.Errorf("markdown file not found: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)

	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}

	htmlPath := filepath.Join(outputDir, base+"_temp.html")
	doc := documentHTML(base, body.String())
	if err := os.WriteFile(htmlPath, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("failed to write HTML document: %w", err)
	}
	return htmlPath, nil
}

// documentHTML wraps a rendered body in a full HTML document with the
// print stylesheet.
func documentHTML(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body {
            font-family: "Times New Roman", serif;
            font-size: 12pt;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 1em;
            color: #333;
        }
        h1, h2, h3, h4, h5, h6 {
            color: #222;
            margin-top: 1.5em;
            margin-bottom: 0.5em;
        }
        table {
            border-collapse: collapse;
            width: 100%%;
            margin: 1em 0;
        }
        th, td {
            border: 1px solid #ddd;
            padding: 8px;
            text-align: left;
        }
        th {
            background-color: #f5f5f5;
            font-weight: bold;
        }
        code {
            background-color: #f5f5f5;
            padding: 2px 4px;
            border-radius: 3px;
            font-family: 'Courier New', monospace;
            font-size: 0.9em;
        }
        pre {
            background-color: #f5f5f5;
            padding: 1em;
            border-radius: 5px;
            overflow-x: auto;
        }
        pre code {
            background: none;
            padding: 0;
        }
        blockquote {
            border-left: 4px solid #ddd;
            margin: 1em 0;
            padding-left: 1em;
            color: #666;
        }
        img {
            max-width: 100%%;
            height: auto;
            margin: 1em 0;
        }
    </style>
</head>
<body>
%s
</body>
</html>`, html.EscapeString(title), body)
}
