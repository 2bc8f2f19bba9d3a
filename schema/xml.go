package schema

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/werror"
)

// xmlSchema/xmlColumns/xmlColumn mirror the on-disk document:
// <schema version="X.Y"><columns><column .../>...</columns></schema>.
// Unknown attributes on <column> cause load failure, as does a missing
// version - both are enforced in FromXML, since encoding/xml silently
// ignores attributes it isn't told to decode into a field.
type xmlSchema struct {
	XMLName xml.Name   `xml:"schema"`
	Version string     `xml:"version,attr"`
	Columns xmlColumns `xml:"columns"`
}

type xmlColumns struct {
	Column []xmlColumn `xml:"column"`
}

type xmlColumn struct {
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr"`
	ElementType string `xml:"element_type,attr"`
	ElementSize int    `xml:"element_size,attr"`
	NumElements string `xml:"num_elements,attr"`
}

var knownColumnAttrs = map[string]bool{
	"name": true, "description": true, "element_type": true,
	"element_size": true, "num_elements": true,
}

// ToXML renders the schema as its on-disk XML document.
func (s *Schema) ToXML() ([]byte, error) {
	doc := xmlSchema{Version: s.Version}
	for _, c := range s.columns {
		xc := xmlColumn{
			Name:        c.Name,
			Description: c.Description,
			ElementType: c.Type.String(),
			ElementSize: c.ElementSize,
		}
		if c.Variable {
			xc.NumElements = fmt.Sprintf("var(%d)", c.VarWidth)
		} else {
			xc.NumElements = strconv.Itoa(c.NumElements)
		}
		doc.Columns.Column = append(doc.Columns.Column, xc)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, werror.IO(err, "marshal schema xml")
	}
	return append([]byte(xml.Header), out...), nil
}

// FromXML parses a schema XML document, validating the version and every
// attribute, and returns an already-finalized schema.
func FromXML(data []byte) (*Schema, error) {
	if err := rejectUnknownColumnAttrs(data); err != nil {
		return nil, err
	}
	var doc xmlSchema
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, werror.Format(err, "parse schema xml")
	}
	if doc.Version == "" {
		return nil, werror.Format(nil, "schema xml is missing a version attribute")
	}
	if doc.Version != DefaultVersion {
		return nil, werror.Format(nil, "unsupported schema version %q (expected %q)", doc.Version, DefaultVersion)
	}
	if len(doc.Columns.Column) == 0 {
		return nil, werror.Format(nil, "schema xml declares no columns")
	}

	s := &Schema{
		Version: doc.Version,
		byName:  map[string]int{},
	}
	for _, xc := range doc.Columns.Column {
		col, err := columnFromXML(xc)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[col.Name]; dup {
			return nil, werror.Format(nil, "schema xml: duplicate column name %q", col.Name)
		}
		s.byName[col.Name] = len(s.columns)
		s.columns = append(s.columns, col)
	}
	if s.columns[0].Name != RowIDColumnName {
		return nil, werror.Format(nil, "schema xml: column 0 must be %q, got %q", RowIDColumnName, s.columns[0].Name)
	}
	if err := s.Finalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func columnFromXML(xc xmlColumn) (Column, error) {
	typ, err := parseElementType(xc.ElementType)
	if err != nil {
		return Column{}, err
	}
	if width, ok := parseVarMarker(xc.NumElements); ok {
		return NewVariableColumn(xc.Name, xc.Description, typ, xc.ElementSize, width)
	}
	n, err := strconv.Atoi(xc.NumElements)
	if err != nil {
		return Column{}, werror.Format(err, "column %q: invalid num_elements %q", xc.Name, xc.NumElements)
	}
	return NewFixedColumn(xc.Name, xc.Description, typ, xc.ElementSize, n)
}

func parseElementType(s string) (codec.ElementType, error) {
	switch s {
	case "uint":
		return codec.Uint, nil
	case "int":
		return codec.Int, nil
	case "float":
		return codec.Float, nil
	case "char":
		return codec.Char, nil
	default:
		return 0, werror.Format(nil, "unknown element_type %q", s)
	}
}

func parseVarMarker(s string) (width int, ok bool) {
	if s == "var(1)" {
		return 1, true
	}
	if s == "var(2)" {
		return 2, true
	}
	return 0, false
}

// rejectUnknownColumnAttrs does a lightweight scan of the raw XML for
// <column> attributes outside knownColumnAttrs, since encoding/xml.Unmarshal
// silently drops attributes that have no matching struct field.
func rejectUnknownColumnAttrs(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "column" {
			continue
		}
		for _, attr := range start.Attr {
			if !knownColumnAttrs[attr.Name.Local] {
				return werror.Format(nil, "schema xml: unknown column attribute %q", attr.Name.Local)
			}
		}
	}
	return nil
}
