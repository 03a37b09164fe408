package fserrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	e := New(KindCsv, "reflist.load", "/tmp/refs.csv", errors.New("boom"))
	assert.Contains(t, e.Error(), "reflist.load")
	assert.Contains(t, e.Error(), "/tmp/refs.csv")
	assert.Contains(t, e.Error(), "boom")
}

func TestErrorStringNoPath(t *testing.T) {
	e := New(KindSignal, "signalrouter.register", "", errors.New("bad signal"))
	assert.NotContains(t, e.Error(), "()")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := New(KindFs, "worker.move", "/a/b", cause)
	assert.True(t, errors.Is(e, cause))
}

func TestNewAdapterSubKind(t *testing.T) {
	e := NewAdapter(AdapterAuth, "smb.connect", "host", errors.New("denied"))
	var fe *Error
	require.True(t, errors.As(e, &fe))
	assert.Equal(t, KindAdapter, fe.Kind)
	assert.Equal(t, AdapterAuth, fe.Sub)
}

func TestIsFatal(t *testing.T) {
	e := Fatal(New(KindConfig, "config.load", "", errors.New("missing")))
	assert.True(t, IsFatal(e))

	nonFatal := New(KindCsv, "reflist.load", "", errors.New("bad row"))
	assert.False(t, IsFatal(nonFatal))
}

func TestKindOf(t *testing.T) {
	e := New(KindMonitor, "monitor.watch", "/data", errors.New("gone"))
	assert.Equal(t, KindMonitor, KindOf(e))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
