// imbridge-keysym prints the key symbol an IBus key event encodes to.
//
// Events are "keyval keycode state" triples, given as arguments or one
// per line on stdin. Numbers accept 0x and 0 prefixes. The keyval may
// also be a key name such as Return or U+1F600.
//
//	imbridge-keysym 0x61 30 0x4        # C-A
//	imbridge-keysym Return 28 0x4      # C-Return
//	xev | ... | imbridge-keysym -
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"imbridge/internal/keysym"
)

var errUsage = errors.New("expected keyval keycode state")

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, `imbridge-keysym - Print the symbol of an IBus key event

Usage: imbridge-keysym <keyval> <keycode> <state>
       imbridge-keysym -          read triples from stdin`)
	}
	flag.Parse()

	args := flag.Args()
	switch {
	case len(args) == 1 && args[0] == "-":
		if err := run(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case len(args) == 3:
		line, err := describe(strings.Join(args, " "))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
		fmt.Println(line)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// run describes every non-blank line of r. Malformed lines are reported
// inline and do not stop the loop.
func run(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		line, err := describe(text)
		if err != nil {
			line = fmt.Sprintf("%s: %v", text, err)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func describe(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return "", errUsage
	}
	var n [3]uint32
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 0, 32)
		if err == nil {
			n[i] = uint32(v)
			continue
		}
		if i == 0 {
			if keyval, ok := keysym.FromName(f); ok {
				n[i] = keyval
				continue
			}
		}
		return "", fmt.Errorf("%w: %q", errUsage, f)
	}

	keyval, keycode, mods := n[0], n[1], keysym.Modifier(n[2])
	name, ok := keysym.Name(keyval)
	switch {
	case keysym.IsPrintable(keyval):
		name = string(rune(keyval))
	case !ok:
		name = fmt.Sprintf("0x%x", keyval)
	}

	sym, ok := keysym.Encode(keycode, keyval, mods)
	if !ok {
		return fmt.Sprintf("%-12s %-4d %-24s -> (none)", name, keycode, mods), nil
	}
	return fmt.Sprintf("%-12s %-4d %-24s -> %s", name, keycode, mods, sym), nil
}
