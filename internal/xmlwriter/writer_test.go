package xmlwriter_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx-engine/internal/xmlwriter"
)

func TestEscapeXML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"Dupont & Fils", "Dupont &amp; Fils"},
		{`<a href="x">'y'</a>`, "&lt;a href=&quot;x&quot;&gt;&apos;y&apos;&lt;/a&gt;"},
		{"Société", "Société"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, xmlwriter.EscapeXML(tt.input))
		})
	}
}

func TestRender(t *testing.T) {
	root := xmlwriter.New("invoices", xmlwriter.Attr{Name: "version", Value: "1"})
	item := root.Child("invoice")
	item.Text("Number", "F-1")
	item.Text("Amount", "10.00", xmlwriter.Attr{Name: "currency", Value: "EUR"})
	item.TextIf("Skipped", "  ")
	item.Child("Empty")

	expected := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<invoices version=\"1\">\n" +
		"  <invoice>\n" +
		"    <Number>F-1</Number>\n" +
		"    <Amount currency=\"EUR\">10.00</Amount>\n" +
		"    <Empty/>\n" +
		"  </invoice>\n" +
		"</invoices>\n"

	assert.Equal(t, expected, xmlwriter.Render(root, xmlwriter.DefaultOptions()))
}

func TestRender_NoDeclaration(t *testing.T) {
	root := xmlwriter.New("root")
	out := xmlwriter.Render(root, xmlwriter.Options{Indent: "\t"})
	assert.Equal(t, "<root/>\n", out)
}

func TestRender_EscapedValuesParseBack(t *testing.T) {
	root := xmlwriter.New("root")
	root.Text("Name", `Dupont & Fils <"SA">`)
	root.SetAttr("note", "it's")

	var decoded struct {
		Note string `xml:"note,attr"`
		Name string `xml:"Name"`
	}
	out := xmlwriter.Render(root, xmlwriter.DefaultOptions())
	require.NoError(t, xml.NewDecoder(strings.NewReader(out)).Decode(&decoded))
	assert.Equal(t, `Dupont & Fils <"SA">`, decoded.Name)
	assert.Equal(t, "it's", decoded.Note)
}

func TestRender_Nil(t *testing.T) {
	assert.Equal(t, "", xmlwriter.Render(nil, xmlwriter.Options{}))
}
