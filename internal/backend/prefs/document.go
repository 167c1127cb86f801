package prefs

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/codec"
)

const xmlHeader = "<?xml version='1.0' encoding='utf-8' standalone='yes' ?>\n"

// document is the root <map> element of a preferences file.
type document struct {
	XMLName xml.Name `xml:"map"`
	Entries []entry  `xml:",any"`
}

// entry is one named child of <map>. Which fields are set depends on the
// element: sets carry Strings, string entries carry Text and scalar
// entries carry Value.
type entry struct {
	XMLName xml.Name
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr,omitempty"`
	Strings []string `xml:"string"`
	Text    string   `xml:",chardata"`
}

func newSetEntry(name string, strs []string) entry {
	return entry{XMLName: xml.Name{Local: "set"}, Name: name, Strings: strs}
}

func parseDocument(data []byte) (*document, error) {
	d := &document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return d, nil
	}
	if err := xml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}
	for i := range d.Entries {
		if d.Entries[i].XMLName.Local == "set" {
			d.Entries[i].Text = ""
		}
	}
	return d, nil
}

func (d *document) marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding preferences: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (d *document) index(name string) int {
	for i, e := range d.Entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func (d *document) entry(name string) (entry, bool) {
	if i := d.index(name); i >= 0 {
		return d.Entries[i], true
	}
	return entry{}, false
}

func (d *document) put(e entry) {
	if i := d.index(e.Name); i >= 0 {
		d.Entries[i] = e
		return
	}
	d.Entries = append(d.Entries, e)
}

func (d *document) remove(name string) bool {
	i := d.index(name)
	if i < 0 {
		return false
	}
	d.Entries = append(d.Entries[:i], d.Entries[i+1:]...)
	return true
}

// value decodes the entry. A set whose tag is "null" reads as absent.
func (e entry) value() (storage.Value, bool, error) {
	switch e.XMLName.Local {
	case "set":
		return codec.Decode(e.Strings)
	case "string":
		return storage.String(e.Text), true, nil
	case "int":
		return scalar(storage.KindInt32, e.Value)
	case "long":
		return scalar(storage.KindInt64, e.Value)
	case "float":
		return scalar(storage.KindFloat32, e.Value)
	case "boolean":
		return scalar(storage.KindBool, e.Value)
	default:
		return storage.Null(), false, fmt.Errorf("%w: unsupported preference element <%s>",
			storage.ErrTypeMismatch, e.XMLName.Local)
	}
}

// present reports whether the entry holds a value. Entries that fail to
// decode still count as present so they can be listed and removed.
func (e entry) present() bool {
	_, ok, err := e.value()
	return ok || err != nil
}

func scalar(k storage.Kind, text string) (storage.Value, bool, error) {
	v, err := storage.ParseValue(k, strings.TrimSpace(text))
	if err != nil {
		return storage.Null(), false, err
	}
	return v, true, nil
}
