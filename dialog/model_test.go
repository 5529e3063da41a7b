package dialog

import (
	"testing"

	"github.com/sipcore/dialogcore/sip"
	"github.com/stretchr/testify/assert"
)

func TestDialog_Clone(t *testing.T) {
	d := &Dialog{
		ID:       "d1",
		RouteSet: []sip.Uri{{User: "a"}, {User: "b"}},
	}
	cp := d.clone()
	cp.RouteSet[0].User = "changed"

	assert.Equal(t, "a", d.RouteSet[0].User, "clone must deep-copy RouteSet")
	assert.Equal(t, d.ID, cp.ID)
}

func TestDialog_IsTerminal(t *testing.T) {
	d := &Dialog{Status: StatusConfirmed}
	assert.False(t, d.IsTerminal())
	d.Status = StatusStop
	assert.True(t, d.IsTerminal())
}

func TestDialog_String_Nil(t *testing.T) {
	var d *Dialog
	assert.Equal(t, "<nil dialog>", d.String())
}

func TestStopReason_String(t *testing.T) {
	assert.Equal(t, "code=408", StopReason{Code: 408}.String())
	assert.Equal(t, "code=486 reason=Busy Here", StopReason{Code: 486, Reason: "Busy Here"}.String())
}
