package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/ssag/internal/hw/camera"
	"github.com/cjeanneret/ssag/internal/persist"
)

// recordingCamera records the order of device calls.
type recordingCamera struct {
	calls      []string
	connectErr error
	exposeErr  error
	frame      *camera.RawFrame

	gain     int
	duration time.Duration
}

func (c *recordingCamera) Connect() error {
	c.calls = append(c.calls, "connect")
	return c.connectErr
}

func (c *recordingCamera) Disconnect() error {
	c.calls = append(c.calls, "disconnect")
	return nil
}

func (c *recordingCamera) SetGain(gain int) error {
	c.calls = append(c.calls, "gain")
	c.gain = gain
	return nil
}

func (c *recordingCamera) Expose(ctx context.Context, d time.Duration) (*camera.RawFrame, error) {
	c.calls = append(c.calls, "expose")
	c.duration = d
	if c.exposeErr != nil {
		return nil, c.exposeErr
	}
	return c.frame, nil
}

// recordingLoader records boot session calls.
type recordingLoader struct {
	calls      []string
	connectErr error
}

func (l *recordingLoader) Connect() error {
	l.calls = append(l.calls, "connect")
	return l.connectErr
}

func (l *recordingLoader) LoadFirmware(ctx context.Context) error {
	l.calls = append(l.calls, "load")
	return nil
}

func (l *recordingLoader) Disconnect() error {
	l.calls = append(l.calls, "disconnect")
	return nil
}

// recordingPersister counts writes.
type recordingPersister struct {
	frames []*camera.RawFrame
	err    error
}

func (p *recordingPersister) Persist(frame *camera.RawFrame) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.frames = append(p.frames, frame)
	return "image.test", nil
}

// recordingIndicator records LED transitions.
type recordingIndicator struct {
	states []bool
}

func (i *recordingIndicator) On() error  { i.states = append(i.states, true); return nil }
func (i *recordingIndicator) Off() error { i.states = append(i.states, false); return nil }

func testFrame(w, h int) *camera.RawFrame {
	return &camera.RawFrame{Width: w, Height: h, Data: bytes.Repeat([]byte{42}, w*h)}
}

type fixture struct {
	cam       *recordingCamera
	loader    *recordingLoader
	loaders   int
	persister *recordingPersister
	stdout    bytes.Buffer
	ctrl      *Controller
}

func newFixture() *fixture {
	f := &fixture{
		cam:       &recordingCamera{frame: testFrame(8, 6)},
		loader:    &recordingLoader{},
		persister: &recordingPersister{},
	}
	f.ctrl = NewController(Deps{
		Camera: f.cam,
		NewLoader: func() camera.Loader {
			f.loaders++
			return f.loader
		},
		Persister: f.persister,
		Stdout:    &f.stdout,
	})
	return f
}

func equalCalls(got, want []string) bool {
	return strings.Join(got, ",") == strings.Join(want, ",")
}

// ---------- help ----------

func TestRun_HelpPrintsUsageWithoutDeviceContact(t *testing.T) {
	f := newFixture()
	if err := f.ctrl.Run(context.Background(), Request{Action: ActionHelp}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "Usage: ssag") {
		t.Errorf("usage not printed, stdout = %q", f.stdout.String())
	}
	// Only the unconditional teardown reaches the camera.
	if !equalCalls(f.cam.calls, []string{"disconnect"}) {
		t.Errorf("camera calls = %v, want [disconnect]", f.cam.calls)
	}
	if f.loaders != 0 {
		t.Error("help must not create a loader session")
	}
	if len(f.persister.frames) != 0 {
		t.Error("help must not write a file")
	}
}

// ---------- boot ----------

func TestRun_BootLoadsFirmware(t *testing.T) {
	f := newFixture()
	if err := f.ctrl.Run(context.Background(), Request{Action: ActionBoot}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !equalCalls(f.loader.calls, []string{"connect", "load", "disconnect"}) {
		t.Errorf("loader calls = %v", f.loader.calls)
	}
	if !equalCalls(f.cam.calls, []string{"disconnect"}) {
		t.Errorf("camera calls = %v, want [disconnect]", f.cam.calls)
	}
	if len(f.persister.frames) != 0 {
		t.Error("boot must not write a file")
	}
}

func TestRun_BootAlreadyLoaded(t *testing.T) {
	f := newFixture()
	f.loader.connectErr = camera.ErrNotFound

	err := f.ctrl.Run(context.Background(), Request{Action: ActionBoot})
	if !errors.Is(err, ErrBootDeviceNotFound) {
		t.Fatalf("error = %v, want ErrBootDeviceNotFound", err)
	}
	if !strings.Contains(err.Error(), "device not found or the device already has firmware loaded") {
		t.Errorf("error text = %q", err.Error())
	}
	for _, c := range f.loader.calls {
		if c == "load" {
			t.Error("firmware load must not be attempted when connect fails")
		}
	}
	if len(f.persister.frames) != 0 {
		t.Error("boot must not write a file")
	}
	if !equalCalls(f.cam.calls, []string{"disconnect"}) {
		t.Errorf("camera calls = %v, want [disconnect]", f.cam.calls)
	}
}

// ---------- capture ----------

func TestRun_CaptureSequence(t *testing.T) {
	f := newFixture()
	req := Request{Action: ActionCapture, Gain: 7, Duration: 2500 * time.Millisecond}
	if err := f.ctrl.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"connect", "gain", "expose", "disconnect"}
	if !equalCalls(f.cam.calls, want) {
		t.Errorf("camera calls = %v, want %v", f.cam.calls, want)
	}
	if f.cam.gain != 7 {
		t.Errorf("gain = %d, want 7", f.cam.gain)
	}
	if len(f.persister.frames) != 1 {
		t.Fatalf("persisted %d frames, want exactly 1", len(f.persister.frames))
	}
	if f.persister.frames[0] != f.cam.frame {
		t.Error("persisted frame is not the exposed frame")
	}
}

func TestRun_CaptureDurationReachesExposure(t *testing.T) {
	f := newFixture()
	req := Request{Action: ActionCapture, Duration: 250 * time.Millisecond}
	if err := f.ctrl.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if f.cam.duration != 250*time.Millisecond {
		t.Errorf("exposure = %v, want the requested 250ms", f.cam.duration)
	}
}

func TestRun_CaptureDefaultDuration(t *testing.T) {
	f := newFixture()
	if err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture}); err != nil {
		t.Fatal(err)
	}
	if f.cam.duration != time.Second {
		t.Errorf("exposure = %v, want 1s default", f.cam.duration)
	}
}

func TestRun_CaptureWithoutGainKeepsCameraDefault(t *testing.T) {
	f := newFixture()
	if err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture}); err != nil {
		t.Fatal(err)
	}
	for _, c := range f.cam.calls {
		if c == "gain" {
			t.Error("SetGain must not be called without a requested gain")
		}
	}
}

func TestRun_CaptureConnectFails(t *testing.T) {
	f := newFixture()
	f.cam.connectErr = camera.ErrNotFound

	err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture, Gain: 3})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("error = %v, want ErrDeviceNotFound", err)
	}
	if !equalCalls(f.cam.calls, []string{"connect", "disconnect"}) {
		t.Errorf("camera calls = %v, want [connect disconnect]", f.cam.calls)
	}
	if len(f.persister.frames) != 0 {
		t.Error("no file may be written when connect fails")
	}
}

func TestRun_CaptureExposureFails(t *testing.T) {
	f := newFixture()
	f.cam.exposeErr = errors.New("usb timeout")

	err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture})
	if !errors.Is(err, ErrExposureFailed) {
		t.Fatalf("error = %v, want ErrExposureFailed", err)
	}
	if len(f.persister.frames) != 0 {
		t.Error("no file may be written when exposure fails")
	}
	if f.cam.calls[len(f.cam.calls)-1] != "disconnect" {
		t.Errorf("last camera call = %q, want disconnect", f.cam.calls[len(f.cam.calls)-1])
	}
}

func TestRun_CaptureNilFrame(t *testing.T) {
	f := newFixture()
	f.cam.frame = nil
	err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture})
	if !errors.Is(err, ErrExposureFailed) {
		t.Fatalf("error = %v, want ErrExposureFailed", err)
	}
}

func TestRun_CaptureShortFrameRejected(t *testing.T) {
	f := newFixture()
	f.cam.frame = &camera.RawFrame{Width: 10, Height: 10, Data: make([]byte, 50)}
	err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture})
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("error = %v, want ErrShortFrame", err)
	}
	if len(f.persister.frames) != 0 {
		t.Error("a short frame must not be persisted")
	}
}

func TestRun_CapturePersistFailureReported(t *testing.T) {
	f := newFixture()
	f.persister.err = errors.New("disk full")
	err := f.ctrl.Run(context.Background(), Request{Action: ActionCapture})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("error = %v, want persistence failure", err)
	}
}

func TestRun_IndicatorLitDuringExposure(t *testing.T) {
	f := newFixture()
	ind := &recordingIndicator{}
	f.ctrl = NewController(Deps{
		Camera:    f.cam,
		NewLoader: func() camera.Loader { return f.loader },
		Persister: f.persister,
		Indicator: ind,
		Stdout:    &f.stdout,
	})
	f.cam.exposeErr = errors.New("usb timeout")

	_ = f.ctrl.Run(context.Background(), Request{Action: ActionCapture})
	if len(ind.states) != 2 || !ind.states[0] || ind.states[1] {
		t.Errorf("indicator states = %v, want [on off] even on failure", ind.states)
	}
}

// ---------- end-to-end with real persisters ----------

func TestRun_CaptureWritesRawFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.8bit")
	cam := &recordingCamera{frame: testFrame(40, 30)}
	ctrl := NewController(Deps{
		Camera:    cam,
		NewLoader: func() camera.Loader { return &recordingLoader{} },
		Persister: &persist.Raw{Path: path},
		Stdout:    &bytes.Buffer{},
	})

	if err := ctrl.Run(context.Background(), Request{Action: ActionCapture}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 40*30 {
		t.Errorf("raw file has %d bytes, want %d", len(data), 40*30)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected exactly one output file, got %d", len(entries))
	}
}

func TestAction_String(t *testing.T) {
	cases := map[Action]string{
		ActionHelp:    "help",
		ActionBoot:    "boot",
		ActionCapture: "capture",
		Action(9):     "Action(9)",
	}
	for a, want := range cases {
		if got := a.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(a), got, want)
		}
	}
}
