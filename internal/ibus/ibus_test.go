//go:build linux

package ibus

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/candidate"
	"imbridge/internal/engine"
	"imbridge/internal/im/table"
	"imbridge/internal/logging"
	"imbridge/internal/preedit"
)

type emitted struct {
	path   dbus.ObjectPath
	name   string
	values []interface{}
}

type fakeConn struct {
	mu      sync.Mutex
	signals []emitted
	exports map[string]interface{}
	failOn  string
}

func newFakeConn() *fakeConn {
	return &fakeConn{exports: make(map[string]interface{})}
}

func (c *fakeConn) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, emitted{path, name, values})
	return nil
}

func (c *fakeConn) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if iface == c.failOn {
		return errors.New("export refused")
	}
	key := string(path) + " " + iface
	if v == nil {
		delete(c.exports, key)
	} else {
		c.exports[key] = v
	}
	return nil
}

// names returns the short names of the signals emitted so far and clears
// them.
func (c *fakeConn) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.signals {
		out = append(out, strings.TrimPrefix(s.name, EngineInterface+"."))
	}
	c.signals = nil
	return out
}

func (c *fakeConn) last(name string) (emitted, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.signals) - 1; i >= 0; i-- {
		if c.signals[i].name == EngineInterface+"."+name {
			return c.signals[i], true
		}
	}
	return emitted{}, false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFactory(t *testing.T) (*Factory, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	reg := engine.NewRegistry(table.NewDriver(nil, quietLogger()), engine.Options{Logger: quietLogger()})
	t.Cleanup(func() { _ = reg.Close() })
	f := NewFactory(conn, reg, quietLogger())
	require.NoError(t, f.Export())
	return f, conn
}

func textOf(t *testing.T, v interface{}) string {
	t.Helper()
	variant, ok := v.(dbus.Variant)
	require.True(t, ok, "%T is not a variant", v)
	s, err := decodeText(variant)
	require.NoError(t, err)
	return s
}

func TestWireSignatures(t *testing.T) {
	tests := []struct {
		name string
		v    dbus.Variant
		want string
	}{
		{"text", textVariant("a", nil), "(sa{sv}sv)"},
		{"attr list", attrListVariant([]preedit.Attribute{{Type: preedit.AttrUnderline}}), "(sa{sv}av)"},
		{"lookup table", lookupTableVariant(candidate.Table{Candidates: []string{"x"}}), "(sa{sv}uubbiavav)"},
		{"property", propertyVariant(engine.Property{Key: "status"}), "(sa{sv}suvsvbbuvv)"},
		{"prop list", propListVariant(nil), "(sa{sv}av)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Signature().String())
		})
	}
}

func TestPreeditAttributes(t *testing.T) {
	attrs := []preedit.Attribute{
		{Type: preedit.AttrForeground, Value: 0x000000, End: 2},
		{Type: preedit.AttrUnderline, Value: 1, End: 2},
	}
	text := textVariant("にほ", attrs).Value().(serializedText)
	list := text.AttrList.Value().(serializedAttrList)
	require.Len(t, list.Attributes, 2)

	first := list.Attributes[0].Value().(serializedAttribute)
	assert.Equal(t, "IBusAttribute", first.Name)
	assert.Equal(t, uint32(preedit.AttrForeground), first.Type)
	assert.Equal(t, uint32(0), first.StartIndex)
	assert.Equal(t, uint32(2), first.EndIndex)
}

func TestDecodeText(t *testing.T) {
	wire := dbus.MakeVariantWithSignature(
		[]interface{}{"IBusText", map[string]dbus.Variant{}, "héllo", dbus.MakeVariant("")},
		dbus.ParseSignatureMust("(sa{sv}sv)"),
	)
	s, err := decodeText(wire)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	s, err = decodeText(textVariant("x", nil))
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	_, err = decodeText(dbus.MakeVariant(uint32(3)))
	assert.ErrorIs(t, err, errMalformedText)

	bad := dbus.MakeVariantWithSignature(
		[]interface{}{"IBusAttrList", map[string]dbus.Variant{}, "x", dbus.MakeVariant("")},
		dbus.ParseSignatureMust("(sa{sv}sv)"),
	)
	_, err = decodeText(bad)
	assert.ErrorIs(t, err, errMalformedText)
}

func TestCreateEngine(t *testing.T) {
	f, conn := newTestFactory(t)

	path, derr := f.CreateEngine("table:ja:kana")
	require.Nil(t, derr)
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/IBus/Engine/1"), path)
	assert.Contains(t, conn.exports, string(path)+" "+EngineInterface)
	assert.Contains(t, conn.exports, string(path)+" "+ServiceInterface)
	assert.Contains(t, conn.exports, FactoryPath+" "+FactoryInterface)
	assert.Equal(t, 1, f.Engines())

	// Status callbacks raised while the context is created.
	assert.Equal(t, []string{"HidePreeditText", "UpdateProperty"}, conn.names())

	path2, derr := f.CreateEngine("table:ja:kana")
	require.Nil(t, derr)
	assert.NotEqual(t, path, path2)
}

func TestCreateEngineErrors(t *testing.T) {
	f, conn := newTestFactory(t)

	_, derr := f.CreateEngine("table:zz:missing")
	require.NotNil(t, derr)
	assert.Equal(t, errorName, derr.Name)

	_, derr = f.CreateEngine("bogus")
	require.NotNil(t, derr)

	conn.failOn = EngineInterface
	_, derr = f.CreateEngine("table:ja:kana")
	require.NotNil(t, derr)
	assert.Equal(t, 0, f.Engines())
}

func TestEngineObjectKeys(t *testing.T) {
	f, conn := newTestFactory(t)
	path, derr := f.CreateEngine("table:ja:kana")
	require.Nil(t, derr)
	obj := f.engines[path]
	assert.Equal(t, []string{"HidePreeditText", "UpdateProperty"}, conn.names())

	require.Nil(t, obj.FocusIn())
	assert.Equal(t, []string{"RegisterProperties", "UpdateProperty", "RequireSurroundingText"}, conn.names())

	consumed, derr := obj.ProcessKeyEvent('k', 37, 0)
	require.Nil(t, derr)
	assert.True(t, consumed)
	sig, ok := conn.last("UpdatePreeditText")
	require.True(t, ok)
	assert.Equal(t, "k", textOf(t, sig.values[0]))
	assert.Equal(t, uint32(1), sig.values[1])
	assert.Equal(t, true, sig.values[2])
	assert.Equal(t, path, sig.path)
	conn.names()

	consumed, _ = obj.ProcessKeyEvent('i', 23, 0)
	assert.True(t, consumed)
	sig, ok = conn.last("CommitText")
	require.True(t, ok)
	assert.Equal(t, "き", textOf(t, sig.values[0]))
	conn.names()

	// Key releases and bare modifiers pass through.
	consumed, _ = obj.ProcessKeyEvent('k', 37, 1<<30)
	assert.False(t, consumed)
	consumed, _ = obj.ProcessKeyEvent(0xffe1, 42, 0)
	assert.False(t, consumed)
	assert.Empty(t, conn.names())
}

func TestEngineObjectCandidates(t *testing.T) {
	f, conn := newTestFactory(t)
	path, _ := f.CreateEngine("table:ja:kana")
	obj := f.engines[path]

	for _, c := range "nihon" {
		obj.ProcessKeyEvent(uint32(c), 0, 0)
	}
	sig, ok := conn.last("UpdateLookupTable")
	require.True(t, ok)
	lt := sig.values[0].(dbus.Variant).Value().(serializedLookupTable)
	assert.Equal(t, uint32(3), lt.PageSize)
	assert.Len(t, lt.Candidates, 3)
	assert.Equal(t, "日本", textOf(t, lt.Candidates[0]))

	aux, ok := conn.last("UpdateAuxiliaryText")
	require.True(t, ok)
	assert.Equal(t, "( 1 / 1 )", textOf(t, aux.values[0]))
	conn.names()

	require.Nil(t, obj.CursorDown())
	sig, _ = conn.last("UpdateLookupTable")
	lt = sig.values[0].(dbus.Variant).Value().(serializedLookupTable)
	assert.Equal(t, uint32(1), lt.CursorPos)

	require.Nil(t, obj.CandidateClicked(2, 1, 0))
	commit, ok := conn.last("CommitText")
	require.True(t, ok)
	assert.Equal(t, "にほん", textOf(t, commit.values[0]))
}

func TestEngineObjectSurrounding(t *testing.T) {
	f, conn := newTestFactory(t)
	path, _ := f.CreateEngine("table:latn:post")
	obj := f.engines[path]

	require.Nil(t, obj.SetCapabilities(uint32(engine.CapPreeditText|engine.CapSurroundingText)))
	require.Nil(t, obj.SetSurroundingText(textVariant("cafe", nil), 4, 4))
	conn.names()

	consumed, _ := obj.ProcessKeyEvent('\'', 40, 0)
	assert.True(t, consumed)

	del, ok := conn.last("DeleteSurroundingText")
	require.True(t, ok)
	assert.Equal(t, []interface{}{int32(-1), uint32(1)}, del.values)
	commit, ok := conn.last("CommitText")
	require.True(t, ok)
	assert.Equal(t, "é", textOf(t, commit.values[0]))
}

func TestEngineObjectDestroy(t *testing.T) {
	f, conn := newTestFactory(t)
	path, _ := f.CreateEngine("table:ja:kana")
	obj := f.engines[path]

	require.Nil(t, obj.Destroy())
	assert.NotContains(t, conn.exports, string(path)+" "+EngineInterface)
	assert.Equal(t, 0, f.Engines())

	require.Nil(t, obj.Destroy())
	consumed, derr := obj.ProcessKeyEvent('a', 30, 0)
	assert.Nil(t, derr)
	assert.False(t, consumed)
	assert.Nil(t, obj.Reset())
}

func TestFactoryClose(t *testing.T) {
	f, conn := newTestFactory(t)
	f.CreateEngine("table:ja:kana")
	f.CreateEngine("table:latn:post")

	f.Close()
	assert.Equal(t, 0, f.Engines())
	assert.Empty(t, conn.exports)
}

func TestConfigSignal(t *testing.T) {
	c := NewConfigClient(nil, quietLogger())

	var got []string
	fn := func(section, name string, value any) {
		got = append(got, section+" "+name+" "+value.(string))
	}

	c.handle(&dbus.Signal{
		Name: ConfigInterface + ".ValueChanged",
		Body: []interface{}{"engine/Table/ja/kana", "preedit_foreground", dbus.MakeVariant("#ff0000")},
	}, fn)
	c.handle(&dbus.Signal{Name: "org.example.Other", Body: []interface{}{"a", "b", dbus.MakeVariant("c")}}, fn)
	c.handle(&dbus.Signal{Name: ConfigInterface + ".ValueChanged", Body: []interface{}{"a"}}, fn)
	c.handle(&dbus.Signal{Name: ConfigInterface + ".ValueChanged", Body: []interface{}{"a", 1, dbus.MakeVariant("c")}}, fn)
	c.handle(nil, fn)

	assert.Equal(t, []string{"engine/Table/ja/kana preedit_foreground #ff0000"}, got)

	plain := plainValues(map[string]dbus.Variant{"preedit_underline": dbus.MakeVariant(int32(2))})
	assert.Equal(t, map[string]any{"preedit_underline": int32(2)}, plain)
}

func TestBusFilePath(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"x11", map[string]string{"DISPLAY": ":0.0", "HOME": "/home/u"}, "/home/u/.config/ibus/bus/mid-unix-0"},
		{"remote", map[string]string{"DISPLAY": "host:1", "HOME": "/home/u"}, "/home/u/.config/ibus/bus/mid-host-1"},
		{"wayland", map[string]string{"WAYLAND_DISPLAY": "wayland-1", "XDG_CONFIG_HOME": "/cfg"}, "/cfg/ibus/bus/mid-unix-wayland-1"},
		{"nothing", map[string]string{"HOME": "/h"}, "/h/.config/ibus/bus/mid-unix-wayland-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := busFilePath(func(k string) string { return tt.env[k] }, "mid")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := busFilePath(func(k string) string { return map[string]string{"DISPLAY": "bad"}[k] }, "mid")
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestParseBusFile(t *testing.T) {
	const file = "# This file is created by ibus-daemon, please do not modify it.\n" +
		"IBUS_ADDRESS=unix:path=/tmp/ibus-abc,guid=123\n" +
		"IBUS_DAEMON_PID=4242\n"

	alive := func(pid int) bool { return pid == 4242 }
	addr, err := parseBusFile(strings.NewReader(file), alive)
	require.NoError(t, err)
	assert.Equal(t, "unix:path=/tmp/ibus-abc,guid=123", addr)

	_, err = parseBusFile(strings.NewReader(file), func(int) bool { return false })
	assert.ErrorIs(t, err, ErrNoAddress)

	_, err = parseBusFile(strings.NewReader("IBUS_DAEMON_PID=4242\n"), alive)
	assert.ErrorIs(t, err, ErrNoAddress)

	assert.True(t, processAlive(os.Getpid()))
}

func TestAddressFromEnv(t *testing.T) {
	t.Setenv("IBUS_ADDRESS", "unix:path=/run/ibus")
	addr, err := Address()
	require.NoError(t, err)
	assert.Equal(t, "unix:path=/run/ibus", addr)
}

func TestWriteComponent(t *testing.T) {
	var buf bytes.Buffer
	err := WriteComponent(&buf, Component{
		Name: "org.freedesktop.IBus.Imbridge",
		Exec: "/usr/bin/imbridge-ibus -ibus",
		Engines: []EngineDesc{{
			Name: "table:ja:kana", Language: "ja", LongName: "kana", Layout: "us", Symbol: "あ",
		}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<component>")
	assert.Contains(t, out, "<engines>")
	assert.Contains(t, out, "<name>table:ja:kana</name>")
	assert.Contains(t, out, "<symbol>あ</symbol>")

	dir := t.TempDir()
	require.NoError(t, InstallComponent(filepath.Join(dir, "component"), "imbridge.xml", Component{Name: "x"}))
	data, err := os.ReadFile(filepath.Join(dir, "component", "imbridge.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<name>x</name>")
}

type panicSessions struct{}

func (panicSessions) NewSession(string, engine.Host) (*engine.Session, error) {
	panic("table exploded")
}

func TestCreateEngineRecoversPanic(t *testing.T) {
	conn := newFakeConn()
	var crashes []logging.CrashReport
	f := NewFactory(conn, panicSessions{}, quietLogger())
	f.SetCrashHandler(logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Logger:  quietLogger(),
		OnCrash: func(r logging.CrashReport) { crashes = append(crashes, r) },
	}))

	path, derr := f.CreateEngine("table:ja:kana")
	require.NotNil(t, derr)
	assert.Equal(t, errorName, derr.Name)
	assert.Empty(t, path)
	assert.Zero(t, f.Engines())

	require.Len(t, crashes, 1)
	assert.Equal(t, "table exploded", crashes[0].PanicValue)
	assert.Equal(t, "CreateEngine", crashes[0].Context["method"])
}
