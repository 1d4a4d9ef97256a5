package camera

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMock_ExposeProducesCompleteFrame(t *testing.T) {
	m := NewMock(64, 48)
	if err := m.Connect(); err != nil {
		t.Fatal(err)
	}
	frame, err := m.Expose(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("frame = %dx%d, want 64x48", frame.Width, frame.Height)
	}
	if err := frame.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestMock_GainBrightensSky(t *testing.T) {
	m := NewMock(64, 64)
	_ = m.Connect()

	dark, _ := m.Expose(context.Background(), time.Millisecond)
	if err := m.SetGain(15); err != nil {
		t.Fatal(err)
	}
	bright, _ := m.Expose(context.Background(), time.Millisecond)

	if bright.Data[0] <= dark.Data[0] {
		t.Errorf("sky at gain 15 (%d) should be brighter than at gain 1 (%d)", bright.Data[0], dark.Data[0])
	}
}

func TestMock_ExposeWithoutConnect(t *testing.T) {
	m := NewMock(8, 8)
	if _, err := m.Expose(context.Background(), time.Millisecond); !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestMock_ExposeCanceled(t *testing.T) {
	m := NewMock(8, 8)
	_ = m.Connect()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Expose(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestMockLoader(t *testing.T) {
	absent := NewMockLoader(false)
	if err := absent.Connect(); !errors.Is(err, ErrNotFound) {
		t.Errorf("absent loader Connect error = %v, want ErrNotFound", err)
	}

	present := NewMockLoader(true)
	if err := present.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := present.LoadFirmware(context.Background()); err != nil {
		t.Fatalf("LoadFirmware: %v", err)
	}
	if !present.Loaded {
		t.Error("Loaded should be true after LoadFirmware")
	}
	if err := present.Disconnect(); err != nil {
		t.Errorf("Disconnect: %v", err)
	}
}
