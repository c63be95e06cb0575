package control

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/openarm/openarm-go/pkg/canbus"
	"github.com/openarm/openarm-go/pkg/damiao"
	"github.com/openarm/openarm-go/pkg/openarm"
)

func TestLerp(t *testing.T) {
	cases := []struct {
		a, b, t, want float64
	}{
		{0, 1, 0, 0},
		{0, 1, 1, 1},
		{0, 1, 0.5, 0.5},
		{1, 0, 0.25, 0.75},
		{-2, 2, 0.75, 1},
	}
	for _, tc := range cases {
		if got := Lerp(tc.a, tc.b, tc.t); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Lerp(%v, %v, %v) = %v, want %v", tc.a, tc.b, tc.t, got, tc.want)
		}
	}
}

func TestGripperMove_Steps(t *testing.T) {
	mv := GripperMove{Duration: 3 * time.Second, Hz: 50}
	if got := mv.steps(); got != 150 {
		t.Errorf("steps = %d, want 150", got)
	}
	mv = GripperMove{Duration: 0, Hz: 50}
	if got := mv.steps(); got != 1 {
		t.Errorf("zero duration steps = %d, want 1", got)
	}
}

func newTestArm(t *testing.T, withGripper bool) (*openarm.Arm, canbus.Bus) {
	t.Helper()
	lb := canbus.NewLoopbackBus()
	t.Cleanup(func() { lb.Close() })
	arm := openarm.New(lb.Open(), false)
	peer := lb.Open()
	if err := arm.InitArmMotors(
		[]damiao.MotorType{damiao.DM4310, damiao.DM4310},
		[]uint32{0x01, 0x02},
		[]uint32{0x11, 0x12},
	); err != nil {
		t.Fatal(err)
	}
	if withGripper {
		cal := openarm.GripperCalibration{OpenPosition: 0, ClosedPosition: 0.8}
		if err := arm.InitGripperMotor(damiao.DM4310, 0x08, 0x18, cal); err != nil {
			t.Fatal(err)
		}
	}
	return arm, peer
}

// drain keeps the peer endpoint empty so the controller's sends never
// block on a full loopback buffer.
func drain(ctx context.Context, peer canbus.Bus) {
	go func() {
		for {
			if _, err := peer.Receive(ctx); err != nil {
				return
			}
		}
	}()
}

func TestController_PublishesStates(t *testing.T) {
	arm, peer := newTestArm(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain(ctx, peer)

	ctrl := NewController(arm, Config{Hz: 100, Quiet: time.Millisecond})
	if ctrl.Hz() != 100 {
		t.Fatalf("hz = %d", ctrl.Hz())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Start(ctx) }()

	select {
	case s := <-ctrl.States():
		if len(s.Joints) != 2 {
			t.Errorf("state has %d joints, want 2", len(s.Joints))
		}
		if !s.HasGripper {
			t.Error("state should include gripper")
		}
		if s.Timestamp.IsZero() {
			t.Error("state timestamp not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no state published")
	}

	select {
	case msg := <-ctrl.Logs():
		if msg == "" {
			t.Error("empty log message")
		}
	case <-time.After(time.Second):
		t.Fatal("no log message")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	if err := ctrl.Start(ctx); err == nil {
		t.Error("Start on done context should fail fast or return its error")
	}
}

func TestController_DoubleStart(t *testing.T) {
	arm, peer := newTestArm(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drain(ctx, peer)

	ctrl := NewController(arm, Config{})
	go ctrl.Start(ctx)

	// The startup log line means the loop is up; a second Start must refuse.
	select {
	case <-ctrl.Logs():
	case <-time.After(2 * time.Second):
		t.Fatal("controller never started")
	}
	if err := ctrl.Start(ctx); err == nil || err.Error() != "already running" {
		t.Errorf("second Start returned %v, want already running", err)
	}
}

func TestController_DropsOldestState(t *testing.T) {
	arm, _ := newTestArm(t, false)
	ctrl := NewController(arm, Config{})

	// Nobody is reading: publishing must never block and a late consumer
	// must see the newest sample, not the oldest.
	for i := 1; i <= 3; i++ {
		ctrl.sendState(State{Frames: i, Timestamp: time.Now()})
	}

	select {
	case s := <-ctrl.States():
		if s.Frames != 3 {
			t.Errorf("stalled consumer got frames=%d, want newest 3", s.Frames)
		}
	default:
		t.Fatal("no state buffered for the consumer")
	}
}

func TestMoveGripper_Trajectory(t *testing.T) {
	arm, peer := newTestArm(t, true)
	ctx := context.Background()

	mv := GripperMove{From: 0, To: 1, Duration: 80 * time.Millisecond, Hz: 50, Kp: 4, Kd: 1}
	if err := MoveGripper(ctx, arm, mv); err != nil {
		t.Fatal(err)
	}

	// 4 steps -> 5 commands, all addressed to the gripper.
	lim, _ := damiao.DM4310.Limits()
	var positions []float64
	for i := 0; i < 5; i++ {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		f, err := peer.Receive(rctx)
		cancel()
		if err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
		if f.ID != 0x08 {
			t.Fatalf("command %d addressed to 0x%X", i, f.ID)
		}
		q := uint32(f.Data[0])<<8 | uint32(f.Data[1])
		positions = append(positions, float64(q)/65535*(2*lim.P)-lim.P)
	}

	// Aperture 0 is the closed position (0.8 rad), aperture 1 is open (0).
	if math.Abs(positions[0]-0.8) > 1e-2 {
		t.Errorf("first target = %f, want 0.8", positions[0])
	}
	if math.Abs(positions[len(positions)-1]) > 1e-2 {
		t.Errorf("last target = %f, want 0", positions[len(positions)-1])
	}
	for i := 1; i < len(positions); i++ {
		if positions[i] > positions[i-1]+1e-9 {
			t.Errorf("trajectory not monotonic: %v", positions)
			break
		}
	}
}

func TestHoldGripper_Resends(t *testing.T) {
	arm, peer := newTestArm(t, true)
	ctx := context.Background()

	if err := HoldGripper(ctx, arm, true, 4, 1, 60*time.Millisecond, 50); err != nil {
		t.Fatal(err)
	}

	// 3 resends of the open target.
	for i := 0; i < 3; i++ {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		f, err := peer.Receive(rctx)
		cancel()
		if err != nil {
			t.Fatalf("resend %d: %v", i, err)
		}
		if f.ID != 0x08 {
			t.Fatalf("resend %d addressed to 0x%X", i, f.ID)
		}
	}
}

func TestTrajectories_RequireGripper(t *testing.T) {
	arm, _ := newTestArm(t, false)
	ctx := context.Background()

	if err := MoveGripper(ctx, arm, GripperMove{}); err == nil {
		t.Error("MoveGripper without gripper should fail")
	}
	if err := HoldGripper(ctx, arm, true, 4, 1, time.Second, 50); err == nil {
		t.Error("HoldGripper without gripper should fail")
	}
}
