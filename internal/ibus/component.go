package ibus

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Component is the IBus component description read by ibus-daemon, either
// from a file in the component directory or from `<exec> --xml`.
type Component struct {
	XMLName     xml.Name     `xml:"component"`
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Exec        string       `xml:"exec"`
	Version     string       `xml:"version"`
	Author      string       `xml:"author"`
	License     string       `xml:"license"`
	Textdomain  string       `xml:"textdomain"`
	Engines     []EngineDesc `xml:"engines>engine"`
}

// EngineDesc advertises one engine of a component.
type EngineDesc struct {
	Name        string `xml:"name"`
	Language    string `xml:"language"`
	License     string `xml:"license"`
	Author      string `xml:"author"`
	Layout      string `xml:"layout"`
	LongName    string `xml:"longname"`
	Description string `xml:"description"`
	Symbol      string `xml:"symbol,omitempty"`
	Rank        int    `xml:"rank"`
}

// WriteComponent writes c as XML.
func WriteComponent(w io.Writer, c Component) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode component: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// InstallComponent writes c to dir/<file>.
func InstallComponent(dir, file string, c Component) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, file))
	if err != nil {
		return err
	}
	if err := WriteComponent(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ComponentDir is the per-user IBus component directory.
func ComponentDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "ibus", "component"), nil
}
