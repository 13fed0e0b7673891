package lpa

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// PlaceholderError после рендеринга в документе остались {{...}}.
// Фатально: такой документ загружать нельзя.
type PlaceholderError struct {
	File   string
	Sample string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("lpa: unresolved placeholder in %s: %s", e.File, e.Sample)
}

var (
	// плейсхолдер может быть разорван на XML-раны Word-ом, теги внутри
	// скобок вычищаются перед поиском имени
	placeholderRe = regexp.MustCompile(`\{\{(?:[^{}]|<[^>]*>)*?\}\}`)
	controlTagRe  = regexp.MustCompile(`\{%(?:[^%]|%[^}])*?%\}`)
	xmlTagRe      = regexp.MustCompile(`<[^>]*>`)
)

// fillTemplate заполняет DOCX-шаблон значениями. Неизвестные плейсхолдеры
// остаются на месте — их поймает аудит.
func fillTemplate(templatePath, outPath string, values map[string]string) error {
	const op = "service.lpa.docx.fillTemplate"

	entries, err := readDocx(templatePath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for name, data := range entries {
		if !isWordXML(name) {
			continue
		}
		entries[name] = []byte(substitute(string(data), values))
	}

	if err := writeDocx(outPath, entries); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func substitute(xml string, values map[string]string) string {
	xml = controlTagRe.ReplaceAllString(xml, "")
	return placeholderRe.ReplaceAllStringFunc(xml, func(ph string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(ph, "{{"), "}}")
		inner = strings.TrimSpace(xmlTagRe.ReplaceAllString(inner, ""))
		val, ok := values[inner]
		if !ok {
			return ph
		}
		return xmlEscape(val)
	})
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
		"\n", "; ",
	)
	return r.Replace(s)
}

// auditDocx ищет оставшиеся {{ во всех word/*.xml. Любая находка —
// PlaceholderError, файл остаётся на диске для разбора.
func auditDocx(path string) error {
	const op = "service.lpa.docx.auditDocx"

	entries, err := readDocx(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for name, data := range entries {
		if !isWordXML(name) {
			continue
		}
		if idx := bytes.Index(data, []byte("{{")); idx >= 0 {
			end := idx + 60
			if end > len(data) {
				end = len(data)
			}
			return &PlaceholderError{File: name, Sample: string(data[idx:end])}
		}
	}
	return nil
}

func isWordXML(name string) bool {
	return strings.HasPrefix(name, "word/") && strings.HasSuffix(name, ".xml")
}

func readDocx(path string) (map[string][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		entries[f.Name] = data
	}
	return entries, nil
}

func writeDocx(path string, entries map[string][]byte) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// [Content_Types].xml обязан идти первым для некоторых читателей
	names := make([]string, 0, len(entries))
	if _, ok := entries["[Content_Types].xml"]; ok {
		names = append(names, "[Content_Types].xml")
	}
	for name := range entries {
		if name == "[Content_Types].xml" {
			continue
		}
		names = append(names, name)
	}

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(entries[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

const emuPerInch = 914400

// photoWidthEMU ширина вставляемого фото, 4,5 дюйма.
const photoWidthEMU = int64(4.5 * emuPerInch)

type processedPhoto struct {
	data   []byte
	width  int
	height int
}

// appendPhotos дописывает в конец документа раздел "Фото смены:" с не
// более чем пятью снимками; если фотографий было больше, добавляется
// примечание с общим числом.
func appendPhotos(docxPath string, photos []processedPhoto, total int) error {
	const op = "service.lpa.docx.appendPhotos"

	if len(photos) == 0 {
		return nil
	}
	if len(photos) > maxInlinePics {
		photos = photos[:maxInlinePics]
	}

	entries, err := readDocx(docxPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	doc, ok := entries["word/document.xml"]
	if !ok {
		return fmt.Errorf("%s: нет word/document.xml", op)
	}

	var block strings.Builder
	block.WriteString(headingParagraph("Фото смены:"))

	for i, p := range photos {
		mediaName := fmt.Sprintf("media/lpa_photo_%d.jpg", i+1)
		relID := fmt.Sprintf("rIdLpa%d", i+1)
		entries["word/"+mediaName] = p.data
		addRelationship(entries, relID, mediaName)
		block.WriteString(imageParagraph(relID, 9000+i, p.width, p.height))
	}

	if total > len(photos) {
		block.WriteString(headingParagraph(fmt.Sprintf("Всего фото: %d", total)))
	}

	entries["word/document.xml"] = insertBeforeBodyEnd(doc, block.String())
	ensureJpegContentType(entries)

	if err := writeDocx(docxPath, entries); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// insertBeforeBodyEnd вставляет XML перед sectPr (он должен оставаться
// последним ребёнком body) либо перед </w:body>.
func insertBeforeBodyEnd(doc []byte, xml string) []byte {
	s := string(doc)
	if idx := strings.LastIndex(s, "<w:sectPr"); idx >= 0 {
		return []byte(s[:idx] + xml + s[idx:])
	}
	if idx := strings.LastIndex(s, "</w:body>"); idx >= 0 {
		return []byte(s[:idx] + xml + s[idx:])
	}
	return append(doc, []byte(xml)...)
}

func headingParagraph(text string) string {
	return `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">` + xmlEscape(text) + `</w:t></w:r></w:p>`
}

// imageParagraph стандартный wp:inline с фиксированной шириной и высотой
// по соотношению сторон снимка.
func imageParagraph(relID string, docPrID, w, h int) string {
	cx := photoWidthEMU
	cy := cx * int64(h) / int64(w)
	return fmt.Sprintf(`<w:p><w:r><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="%d" name="Фото %d"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="Фото %d"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		cx, cy, docPrID, docPrID, docPrID, docPrID, relID, cx, cy)
}

func addRelationship(entries map[string][]byte, relID, target string) {
	const relsName = "word/_rels/document.xml.rels"

	rels, ok := entries[relsName]
	if !ok {
		rels = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`)
	}

	rel := fmt.Sprintf(`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s"/>`, relID, target)
	s := string(rels)
	if idx := strings.LastIndex(s, "</Relationships>"); idx >= 0 {
		s = s[:idx] + rel + s[idx:]
	}
	entries[relsName] = []byte(s)
}

func ensureJpegContentType(entries map[string][]byte) {
	const ctName = "[Content_Types].xml"

	ct, ok := entries[ctName]
	if !ok {
		return
	}
	s := string(ct)
	if strings.Contains(s, `Extension="jpg"`) {
		return
	}
	def := `<Default Extension="jpg" ContentType="image/jpeg"/>`
	if idx := strings.LastIndex(s, "</Types>"); idx >= 0 {
		s = s[:idx] + def + s[idx:]
	}
	entries[ctName] = []byte(s)
}
