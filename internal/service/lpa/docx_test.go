package lpa

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`</Types>`

const testRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// writeTestDocx собирает минимальный docx с заданным word/document.xml.
func writeTestDocx(t *testing.T, path, documentXML string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range map[string]string{
		"[Content_Types].xml":          testContentTypes,
		"word/_rels/document.xml.rels": testRels,
		"word/document.xml":            documentXML,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func docBody(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		inner +
		`<w:sectPr/></w:body></w:document>`
}

func TestFillTemplate_Substitution(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "tmpl.docx")
	out := filepath.Join(dir, "out.docx")

	writeTestDocx(t, tmpl, docBody(
		`<w:p><w:r><w:t>{{site_name}}: план {{plan_total}}</w:t></w:r></w:p>`))

	err := fillTemplate(tmpl, out, map[string]string{
		"site_name":  "ЖК «Северный» & Ко",
		"plan_total": "203",
	})
	require.NoError(t, err)

	entries, err := readDocx(out)
	require.NoError(t, err)
	doc := string(entries["word/document.xml"])

	assert.Contains(t, doc, "ЖК «Северный» &amp; Ко: план 203")
	assert.NotContains(t, doc, "{{")
}

func TestFillTemplate_RunSplitPlaceholder(t *testing.T) {
	// Word разрывает плейсхолдер на несколько ранов; теги внутри скобок
	// вычищаются перед поиском имени
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "tmpl.docx")
	out := filepath.Join(dir, "out.docx")

	writeTestDocx(t, tmpl, docBody(
		`<w:p><w:r><w:t>{{site</w:t></w:r><w:r><w:t>_name}}</w:t></w:r></w:p>`))

	err := fillTemplate(tmpl, out, map[string]string{"site_name": "ЖК Северный"})
	require.NoError(t, err)

	entries, err := readDocx(out)
	require.NoError(t, err)
	assert.Contains(t, string(entries["word/document.xml"]), "ЖК Северный")
}

func TestFillTemplate_NewlineBecomesSeparator(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "tmpl.docx")
	out := filepath.Join(dir, "out.docx")

	writeTestDocx(t, tmpl, docBody(`<w:p><w:r><w:t>{{reasons_text}}</w:t></w:r></w:p>`))

	err := fillTemplate(tmpl, out, map[string]string{
		"reasons_text": "Опалубка: Отклонение от плана\nУборка: Работа вне плана",
	})
	require.NoError(t, err)

	entries, err := readDocx(out)
	require.NoError(t, err)
	assert.Contains(t, string(entries["word/document.xml"]),
		"Опалубка: Отклонение от плана; Уборка: Работа вне плана")
}

func TestFillTemplate_ControlTagsStripped(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "tmpl.docx")
	out := filepath.Join(dir, "out.docx")

	writeTestDocx(t, tmpl, docBody(`<w:p><w:r><w:t>{% if x %}{{date}}{% endif %}</w:t></w:r></w:p>`))

	err := fillTemplate(tmpl, out, map[string]string{"date": "17.11.2025"})
	require.NoError(t, err)

	entries, err := readDocx(out)
	require.NoError(t, err)
	doc := string(entries["word/document.xml"])
	assert.Contains(t, doc, "17.11.2025")
	assert.NotContains(t, doc, "{%")
}

func TestAuditDocx(t *testing.T) {
	dir := t.TempDir()

	clean := filepath.Join(dir, "clean.docx")
	writeTestDocx(t, clean, docBody(`<w:p><w:r><w:t>готово</w:t></w:r></w:p>`))
	assert.NoError(t, auditDocx(clean))

	dirty := filepath.Join(dir, "dirty.docx")
	writeTestDocx(t, dirty, docBody(`<w:p><w:r><w:t>{{забытое_поле}}</w:t></w:r></w:p>`))

	err := auditDocx(dirty)
	var phErr *PlaceholderError
	require.True(t, errors.As(err, &phErr))
	assert.Equal(t, "word/document.xml", phErr.File)
	assert.Contains(t, phErr.Sample, "{{")
}

func TestFillTemplate_UnknownPlaceholderLeftForAudit(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "tmpl.docx")
	out := filepath.Join(dir, "out.docx")

	writeTestDocx(t, tmpl, docBody(`<w:p><w:r><w:t>{{нет_такого}}</w:t></w:r></w:p>`))

	// подстановка не падает, находку ловит аудит
	require.NoError(t, fillTemplate(tmpl, out, map[string]string{}))
	require.Error(t, auditDocx(out))
}

func TestAppendPhotos(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeTestDocx(t, path, docBody(`<w:p><w:r><w:t>отчёт</w:t></w:r></w:p>`))

	photos := []processedPhoto{
		{data: []byte("jpeg-1"), width: 800, height: 600},
		{data: []byte("jpeg-2"), width: 800, height: 600},
	}
	require.NoError(t, appendPhotos(path, photos, 7))

	entries, err := readDocx(path)
	require.NoError(t, err)

	// снимки легли в media, связи и content type дописаны
	assert.Equal(t, []byte("jpeg-1"), entries["word/media/lpa_photo_1.jpg"])
	assert.Equal(t, []byte("jpeg-2"), entries["word/media/lpa_photo_2.jpg"])

	rels := string(entries["word/_rels/document.xml.rels"])
	assert.Contains(t, rels, `Id="rIdLpa1"`)
	assert.Contains(t, rels, `Target="media/lpa_photo_2.jpg"`)

	assert.Contains(t, string(entries["[Content_Types].xml"]), `Extension="jpg"`)

	doc := string(entries["word/document.xml"])
	assert.Contains(t, doc, "Фото смены:")
	// всего фото было больше, чем вставлено
	assert.Contains(t, doc, "Всего фото: 7")
	// блок вставлен до sectPr
	assert.Less(t, strings.Index(doc, "Фото смены:"), strings.Index(doc, "<w:sectPr"))
}

func TestAppendPhotos_CapsAtFive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeTestDocx(t, path, docBody(``))

	photos := make([]processedPhoto, 8)
	for i := range photos {
		photos[i] = processedPhoto{data: []byte{byte(i)}, width: 4, height: 3}
	}
	require.NoError(t, appendPhotos(path, photos, 8))

	entries, err := readDocx(path)
	require.NoError(t, err)
	assert.Contains(t, entries, "word/media/lpa_photo_5.jpg")
	assert.NotContains(t, entries, "word/media/lpa_photo_6.jpg")
}

func TestWriteDocx_ContentTypesFirst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")

	require.NoError(t, writeDocx(path, map[string][]byte{
		"word/document.xml":   []byte("<w:document/>"),
		"[Content_Types].xml": []byte(testContentTypes),
	}))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	require.NotEmpty(t, zr.File)
	assert.Equal(t, "[Content_Types].xml", zr.File[0].Name)
}
