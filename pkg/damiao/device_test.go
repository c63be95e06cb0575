package damiao

import (
	"testing"
)

func mustMotor(t *testing.T, typ MotorType, sendID, recvID uint32) *Motor {
	t.Helper()
	m, err := NewMotor(typ, sendID, recvID)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewMotor_Validation(t *testing.T) {
	if _, err := NewMotor(MotorType(99), 0x01, 0x11); err == nil {
		t.Error("expected error for unknown motor type")
	}
	if _, err := NewMotor(DM4310, 0x01, 0x01); err == nil {
		t.Error("expected error for equal send/recv ids")
	}
	if _, err := NewMotor(DM4310, BroadcastID, 0x11); err == nil {
		t.Error("expected error for broadcast send id")
	}
	m := mustMotor(t, DM4310, 0x01, 0x11)
	if m.Type() != DM4310 || m.SendID() != 0x01 || m.RecvID() != 0x11 {
		t.Errorf("motor identity wrong: %s", m)
	}
}

func TestCollection_Dispatch_StateMode(t *testing.T) {
	c := NewCollection()
	d1 := NewDevice(mustMotor(t, DM4310, 0x01, 0x11))
	d2 := NewDevice(mustMotor(t, DM4310, 0x02, 0x12))
	if err := c.Add(d1); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(d2); err != nil {
		t.Fatal(err)
	}

	// Feedback for motor 1: enabled, temps 25/33.
	f := stateFrame(0x11, [8]byte{0x11, 0x7F, 0xFF, 0x7F, 0xF7, 0xFF, 25, 33})
	handled, err := c.Dispatch(f)
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Fatal("frame for registered recv id should be handled")
	}
	if d1.Motor().Status() != StatusEnabled {
		t.Errorf("motor 1 status = %v, want enabled", d1.Motor().Status())
	}
	mos, rotor := d1.Motor().Temperatures()
	if mos != 25 || rotor != 33 {
		t.Errorf("motor 1 temps = %d/%d", mos, rotor)
	}
	if d2.Motor().Status() != StatusDisabled {
		t.Error("motor 2 must not be touched by motor 1 frames")
	}

	// Unknown id passes through unhandled.
	handled, err = c.Dispatch(stateFrame(0x55, [8]byte{}))
	if err != nil || handled {
		t.Errorf("unknown id: handled=%v err=%v", handled, err)
	}
}

func TestCollection_Dispatch_IgnoreMode(t *testing.T) {
	c := NewCollection()
	d := NewDevice(mustMotor(t, DM4310, 0x01, 0x11))
	if err := c.Add(d); err != nil {
		t.Fatal(err)
	}
	d.SetCallbackMode(CallbackIgnore)

	f := stateFrame(0x11, [8]byte{0x11, 0, 0, 0, 0, 0, 90, 90})
	handled, err := c.Dispatch(f)
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Fatal("frame should still be consumed in ignore mode")
	}
	if mos, _ := d.Motor().Temperatures(); mos != 0 {
		t.Error("ignore mode must not update motor state")
	}
}

func TestCollection_Dispatch_ParamMode(t *testing.T) {
	c := NewCollection()
	d := NewDevice(mustMotor(t, DM4310, 0x08, 0x18))
	if err := c.Add(d); err != nil {
		t.Fatal(err)
	}

	reply := EncodeRegisterWrite(0x08, 10, 1234)

	// State mode drops register replies.
	if _, err := c.Dispatch(reply); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Motor().Register(10); ok {
		t.Error("state mode must not record registers")
	}

	d.SetCallbackMode(CallbackParam)
	handled, err := c.Dispatch(reply)
	if err != nil {
		t.Fatal(err)
	}
	if !handled {
		t.Fatal("register reply for registered motor should be handled")
	}
	if v, ok := d.Motor().Register(10); !ok || v != 1234 {
		t.Errorf("register 10 = %d (ok=%v), want 1234", v, ok)
	}

	// Reply for a motor id nobody registered.
	other := EncodeRegisterWrite(0x55, 3, 1)
	handled, err = c.Dispatch(other)
	if err != nil || handled {
		t.Errorf("foreign register reply: handled=%v err=%v", handled, err)
	}
}

func TestCollection_Add_Duplicates(t *testing.T) {
	c := NewCollection()
	if err := c.Add(NewDevice(mustMotor(t, DM4310, 0x01, 0x11))); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(NewDevice(mustMotor(t, DM4310, 0x02, 0x11))); err == nil {
		t.Error("expected duplicate recv id error")
	}
	if err := c.Add(NewDevice(mustMotor(t, DM4310, 0x01, 0x12))); err == nil {
		t.Error("expected duplicate send id error")
	}
	if got := len(c.Devices()); got != 1 {
		t.Errorf("collection has %d devices, want 1", got)
	}
}
