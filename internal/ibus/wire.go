//go:build linux

package ibus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/candidate"
	"imbridge/internal/engine"
	"imbridge/internal/preedit"
)

// IBus passes its objects as serialized structs inside variants. Every
// struct starts with the type name and an attachment dictionary.

type serializedText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	AttrList    dbus.Variant
}

type serializedAttribute struct {
	Name        string
	Attachments map[string]dbus.Variant
	Type        uint32
	Value       uint32
	StartIndex  uint32
	EndIndex    uint32
}

type serializedAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

type serializedLookupTable struct {
	Name          string
	Attachments   map[string]dbus.Variant
	PageSize      uint32
	CursorPos     uint32
	CursorVisible bool
	Round         bool
	Orientation   int32
	Candidates    []dbus.Variant
	Labels        []dbus.Variant
}

type serializedProperty struct {
	Name        string
	Attachments map[string]dbus.Variant
	Key         string
	Type        uint32
	Label       dbus.Variant
	Icon        string
	Tooltip     dbus.Variant
	Sensitive   bool
	Visible     bool
	State       uint32
	SubProps    dbus.Variant
	Symbol      dbus.Variant
}

type serializedPropList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Properties  []dbus.Variant
}

var errMalformedText = errors.New("malformed IBusText")

func attachments() map[string]dbus.Variant {
	return map[string]dbus.Variant{}
}

func attrListVariant(attrs []preedit.Attribute) dbus.Variant {
	list := serializedAttrList{
		Name:        "IBusAttrList",
		Attachments: attachments(),
		Attributes:  make([]dbus.Variant, 0, len(attrs)),
	}
	for _, a := range attrs {
		list.Attributes = append(list.Attributes, dbus.MakeVariant(serializedAttribute{
			Name:        "IBusAttribute",
			Attachments: attachments(),
			Type:        uint32(a.Type),
			Value:       a.Value,
			StartIndex:  a.Start,
			EndIndex:    a.End,
		}))
	}
	return dbus.MakeVariant(list)
}

// textVariant serializes text with attrs as an IBusText.
func textVariant(text string, attrs []preedit.Attribute) dbus.Variant {
	return dbus.MakeVariant(serializedText{
		Name:        "IBusText",
		Attachments: attachments(),
		Text:        text,
		AttrList:    attrListVariant(attrs),
	})
}

func lookupTableVariant(t candidate.Table) dbus.Variant {
	table := serializedLookupTable{
		Name:          "IBusLookupTable",
		Attachments:   attachments(),
		PageSize:      t.PageSize,
		CursorPos:     t.CursorPos,
		CursorVisible: t.CursorVisible,
		Round:         t.Round,
		Orientation:   int32(t.Orientation),
		Candidates:    make([]dbus.Variant, 0, len(t.Candidates)),
		Labels:        make([]dbus.Variant, 0, len(t.Labels)),
	}
	for _, c := range t.Candidates {
		table.Candidates = append(table.Candidates, textVariant(c, nil))
	}
	for _, l := range t.Labels {
		table.Labels = append(table.Labels, textVariant(l, nil))
	}
	return dbus.MakeVariant(table)
}

func propertyVariant(p engine.Property) dbus.Variant {
	return dbus.MakeVariant(serializedProperty{
		Name:        "IBusProperty",
		Attachments: attachments(),
		Key:         p.Key,
		Type:        uint32(p.Type),
		Label:       textVariant(p.Label, nil),
		Icon:        p.Icon,
		Tooltip:     textVariant(p.Tooltip, nil),
		Sensitive:   p.Sensitive,
		Visible:     p.Visible,
		State:       p.State,
		SubProps:    propListVariant(nil),
		Symbol:      textVariant("", nil),
	})
}

func propListVariant(props []engine.Property) dbus.Variant {
	list := serializedPropList{
		Name:        "IBusPropList",
		Attachments: attachments(),
		Properties:  make([]dbus.Variant, 0, len(props)),
	}
	for _, p := range props {
		list.Properties = append(list.Properties, propertyVariant(p))
	}
	return dbus.MakeVariant(list)
}

// decodeText extracts the string of a serialized IBusText. Over the wire
// the struct arrives as a field slice.
func decodeText(v dbus.Variant) (string, error) {
	switch val := v.Value().(type) {
	case serializedText:
		return val.Text, nil
	case string:
		return val, nil
	case []interface{}:
		if len(val) < 3 {
			break
		}
		if name, _ := val[0].(string); name != "IBusText" {
			return "", fmt.Errorf("%w: type %v", errMalformedText, val[0])
		}
		if text, ok := val[2].(string); ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: signature %s", errMalformedText, v.Signature())
}
