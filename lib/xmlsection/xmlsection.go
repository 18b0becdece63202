// Package xmlsection flattens named sections of an XML document into
// plain string maps.
package xmlsection

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

var ErrMalformed = errors.New("malformed xml")

type Document struct {
	sections map[string]map[string]string
}

// Section returns the leaves of the first element called name, ok is false
// when the document has no such element.
func (d Document) Section(name string) (map[string]string, bool) {
	fields, ok := d.sections[name]
	return fields, ok
}

type element struct {
	name        string
	text        strings.Builder
	hasChildren bool
}

// Parse decodes the whole document and, for every name in sections, collects
// the text of each leaf element below the first element with that local name.
// Leaves without text are skipped and later duplicates win.
func Parse(body []byte, sections ...string) (Document, error) {
	wanted := make(map[string]bool, len(sections))
	for _, s := range sections {
		wanted[s] = true
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel

	doc := Document{sections: map[string]map[string]string{}}
	var stack []*element
	// depth of the section currently being collected, -1 if none
	active := -1
	var fields map[string]string
	sawRoot := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("%w: %s", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			if len(stack) > 0 {
				stack[len(stack)-1].hasChildren = true
			}
			stack = append(stack, &element{name: t.Name.Local})

			_, seen := doc.sections[t.Name.Local]
			if active < 0 && wanted[t.Name.Local] && !seen {
				active = len(stack) - 1
				fields = map[string]string{}
				doc.sections[t.Name.Local] = fields
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if active >= 0 && len(stack) > active && !top.hasChildren && top.text.Len() > 0 {
				fields[top.name] = top.text.String()
			}
			if active == len(stack) {
				active = -1
			}
		}
	}

	if !sawRoot {
		return Document{}, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return doc, nil
}
