package openarm

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/openarm/openarm-go/pkg/canbus"
	"github.com/openarm/openarm-go/pkg/damiao"
)

// encodeState builds a state feedback frame the way a motor controller
// would: position scaled over [-P, P], velocity and torque at mid-range.
func encodeState(recvID uint32, motorID uint8, status damiao.StatusCode, pos float64, lim damiao.Limits) canbus.Frame {
	q := uint32((pos + lim.P) / (2 * lim.P) * 65535)
	var f canbus.Frame
	f.ID = recvID
	f.Len = 8
	f.Data[0] = motorID&0x0F | byte(status)<<4
	f.Data[1] = byte(q >> 8)
	f.Data[2] = byte(q)
	f.Data[3] = 0x7F
	f.Data[4] = 0xF7
	f.Data[5] = 0xFF
	f.Data[6] = 25
	f.Data[7] = 30
	return f
}

func newTestArm(t *testing.T) (*Arm, canbus.Bus) {
	t.Helper()
	lb := canbus.NewLoopbackBus()
	t.Cleanup(func() { lb.Close() })
	arm := New(lb.Open(), false)
	peer := lb.Open()
	if err := arm.InitArmMotors(
		[]damiao.MotorType{damiao.DM4310, damiao.DM4310},
		[]uint32{0x01, 0x02},
		[]uint32{0x11, 0x12},
	); err != nil {
		t.Fatal(err)
	}
	return arm, peer
}

func TestEnableDisableAll_SendsCommandFrames(t *testing.T) {
	arm, peer := newTestArm(t)
	ctx := context.Background()

	if err := arm.EnableAll(ctx); err != nil {
		t.Fatal(err)
	}
	for _, wantID := range []uint32{0x01, 0x02} {
		f, err := peer.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if f.ID != wantID {
			t.Errorf("enable frame id = 0x%X, want 0x%X", f.ID, wantID)
		}
		if f.Data[7] != 0xFC {
			t.Errorf("enable opcode = 0x%02X, want 0xFC", f.Data[7])
		}
	}

	if err := arm.DisableAll(ctx); err != nil {
		t.Fatal(err)
	}
	f, err := peer.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if f.Data[7] != 0xFD {
		t.Errorf("disable opcode = 0x%02X, want 0xFD", f.Data[7])
	}
}

func TestCommandMotor_SingleAndUnknown(t *testing.T) {
	arm, peer := newTestArm(t)
	ctx := context.Background()

	if err := arm.EnableMotor(ctx, 0x02); err != nil {
		t.Fatal(err)
	}
	f, err := peer.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 0x02 || f.Data[7] != 0xFC {
		t.Errorf("single enable frame = %s", f)
	}

	if err := arm.SetZeroMotor(ctx, 0x01); err != nil {
		t.Fatal(err)
	}
	f, err = peer.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if f.Data[7] != 0xFE {
		t.Errorf("set zero opcode = 0x%02X, want 0xFE", f.Data[7])
	}

	if err := arm.DisableMotor(ctx, 0x42); err == nil {
		t.Error("expected error for unregistered send id")
	}
}

func TestRefreshAll_SendsBroadcastQueries(t *testing.T) {
	arm, peer := newTestArm(t)
	ctx := context.Background()

	if err := arm.RefreshAll(ctx); err != nil {
		t.Fatal(err)
	}
	for _, wantMotor := range []byte{0x01, 0x02} {
		f, err := peer.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if f.ID != damiao.BroadcastID {
			t.Errorf("refresh id = 0x%X, want 0x7FF", f.ID)
		}
		if f.Data[0] != wantMotor || f.Data[2] != 0xCC {
			t.Errorf("refresh payload = % X", f.Bytes())
		}
	}
}

func TestRecvAll_UpdatesState(t *testing.T) {
	arm, peer := newTestArm(t)
	ctx := context.Background()
	lim, _ := damiao.DM4310.Limits()

	// Two state frames plus one frame from an unrelated node.
	for _, f := range []canbus.Frame{
		encodeState(0x11, 1, damiao.StatusEnabled, 0.8, lim),
		encodeState(0x12, 2, damiao.StatusEnabled, -1.2, lim),
		canbus.MustFrame(0x3AA, []byte{1, 2}),
	} {
		if err := peer.Send(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	n, err := arm.RecvAll(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("dispatched %d frames, want 2", n)
	}
	if arm.UnknownFrames() != 1 {
		t.Errorf("unknown frames = %d, want 1", arm.UnknownFrames())
	}

	pos := arm.Arm().Positions()
	if math.Abs(pos[0]-0.8) > 1e-3 || math.Abs(pos[1]+1.2) > 1e-3 {
		t.Errorf("positions = %v, want [0.8 -1.2]", pos)
	}
	states := arm.Arm().States()
	if states[0].Status != damiao.StatusEnabled || states[0].TempMOS != 25 {
		t.Errorf("joint 0 state = %+v", states[0])
	}
	if err := arm.Arm().Err(); err != nil {
		t.Errorf("healthy arm reported error: %v", err)
	}
}

func TestRecvAll_IgnoreMode(t *testing.T) {
	arm, peer := newTestArm(t)
	ctx := context.Background()
	lim, _ := damiao.DM4310.Limits()

	arm.SetCallbackModeAll(damiao.CallbackIgnore)
	if err := peer.Send(ctx, encodeState(0x11, 1, damiao.StatusEnabled, 0.8, lim)); err != nil {
		t.Fatal(err)
	}

	n, err := arm.RecvAll(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ignore mode should still consume addressed frames, got %d", n)
	}
	if got := arm.Arm().Positions()[0]; got != 0 {
		t.Errorf("ignore mode must not update state, position = %f", got)
	}
}

func TestRecvAll_ClosedBus(t *testing.T) {
	arm, _ := newTestArm(t)
	if err := arm.Close(); err != nil {
		t.Fatal(err)
	}

	// A dead bus is a transport failure, not an empty drain.
	_, err := arm.RecvAll(context.Background(), 500*time.Millisecond)
	if !errors.Is(err, canbus.ErrClosed) {
		t.Fatalf("RecvAll on closed bus returned %v, want ErrClosed", err)
	}
}

func TestRecvAll_ContextCancel(t *testing.T) {
	arm, _ := newTestArm(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := arm.RecvAll(ctx, time.Second); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGripper_SetAperture(t *testing.T) {
	arm, peer := newTestArm(t)
	ctx := context.Background()
	cal := GripperCalibration{OpenPosition: 0.0, ClosedPosition: 0.8}
	if err := arm.InitGripperMotor(damiao.DM4310, 0x08, 0x18, cal); err != nil {
		t.Fatal(err)
	}

	if err := arm.Gripper().SetAperture(ctx, 0.5, 4, 1); err != nil {
		t.Fatal(err)
	}
	f, err := peer.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 0x08 || f.Len != 8 {
		t.Fatalf("gripper frame header: id=0x%X len=%d", f.ID, f.Len)
	}

	// Aperture 0.5 maps to 0.4 rad; check the packed 16-bit position.
	lim, _ := damiao.DM4310.Limits()
	q := uint32(f.Data[0])<<8 | uint32(f.Data[1])
	got := float64(q)/65535*(2*lim.P) - lim.P
	if math.Abs(got-0.4) > 1e-3 {
		t.Errorf("commanded position = %f, want 0.4", got)
	}

	// Feedback maps back to aperture.
	if err := peer.Send(ctx, encodeState(0x18, 8, damiao.StatusEnabled, 0.4, lim)); err != nil {
		t.Fatal(err)
	}
	if _, err := arm.RecvAll(ctx, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := arm.Gripper().Aperture(); math.Abs(got-0.5) > 1e-2 {
		t.Errorf("aperture = %f, want 0.5", got)
	}
}

func TestInitMotors_Validation(t *testing.T) {
	lb := canbus.NewLoopbackBus()
	defer lb.Close()
	arm := New(lb.Open(), false)

	err := arm.InitArmMotors([]damiao.MotorType{damiao.DM4310}, []uint32{1, 2}, []uint32{0x11})
	if err == nil {
		t.Error("expected length mismatch error")
	}

	cal := GripperCalibration{OpenPosition: 0, ClosedPosition: 0.8}
	if err := arm.InitGripperMotor(damiao.DM4310, 0x08, 0x18, cal); err != nil {
		t.Fatal(err)
	}
	if err := arm.InitGripperMotor(damiao.DM4310, 0x09, 0x19, cal); err == nil {
		t.Error("expected error on double gripper init")
	}
}

func TestConfig_SaveLoad_InitMotors(t *testing.T) {
	cfg := &Config{
		Interface: "can0",
		FD:        true,
		Arm: []MotorConfig{
			{Type: "DM4310", SendID: 0x01, RecvID: 0x11},
			{Type: "DM8009", SendID: 0x02, RecvID: 0x12},
		},
		Gripper:    &MotorConfig{Type: "DM4310", SendID: 0x08, RecvID: 0x18},
		GripperCal: GripperCalibration{OpenPosition: 0, ClosedPosition: 0.8},
	}

	path := filepath.Join(t.TempDir(), "openarm.json")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Interface != "can0" || !loaded.FD {
		t.Errorf("loaded config = %+v", loaded)
	}
	if !loaded.HasGripper() || !loaded.IsCalibrated() {
		t.Error("gripper configuration lost in round-trip")
	}

	lb := canbus.NewLoopbackBus()
	defer lb.Close()
	arm := New(lb.Open(), loaded.FD)
	if err := loaded.initMotors(arm); err != nil {
		t.Fatal(err)
	}
	if got := len(arm.Devices()); got != 3 {
		t.Errorf("registered %d devices, want 3", got)
	}
	if arm.Gripper() == nil {
		t.Error("gripper component missing")
	}

	bad := *loaded
	bad.Arm = []MotorConfig{{Type: "DM9999", SendID: 1, RecvID: 2}}
	arm2 := New(lb.Open(), false)
	if err := bad.initMotors(arm2); err == nil {
		t.Error("expected error for unknown motor type in config")
	}
}
