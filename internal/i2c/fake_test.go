package i2c

import (
	"errors"
	"testing"
)

func TestFakeBusByteReadWrite(t *testing.T) {
	f := NewFakeBus()

	if err := f.WriteByte(0x21, 0xA5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, err := f.ReadByte(0x21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0xA5 {
		t.Errorf("expected 0xA5, got 0x%02x", v)
	}

	// Other addresses unaffected
	v, _ = f.ReadByte(0x20)
	if v != 0x00 {
		t.Errorf("expected 0x00 at untouched address, got 0x%02x", v)
	}
}

func TestFakeBusWriteLog(t *testing.T) {
	f := NewFakeBus()
	f.WriteByte(0x21, 0x01)
	f.WriteByte(0x21, 0x03)
	f.WriteByte(0x20, 0xFF)

	log := f.WriteLog(0x21)
	if len(log) != 2 || log[0] != 0x01 || log[1] != 0x03 {
		t.Errorf("unexpected write log: %v", log)
	}
}

func TestFakeBusInjectedFailures(t *testing.T) {
	f := NewFakeBus()
	f.FailWrites = 2

	if err := f.WriteByte(0x21, 0x01); err == nil {
		t.Error("expected first injected failure")
	}
	if err := f.WriteByte(0x21, 0x01); err == nil {
		t.Error("expected second injected failure")
	}
	if err := f.WriteByte(0x21, 0x01); err != nil {
		t.Errorf("expected write to succeed after injections: %v", err)
	}

	// Failed writes must not touch state or the log
	if got := len(f.WriteLog(0x21)); got != 1 {
		t.Errorf("expected 1 logged write, got %d", got)
	}
}

func TestFakeBusPermanentError(t *testing.T) {
	f := NewFakeBus()
	f.WriteErr = errors.New("simulated error")

	if err := f.WriteByte(0x21, 0x01); err == nil {
		t.Error("expected error to be returned")
	}
}

func TestFakeBusWordRegisters(t *testing.T) {
	f := NewFakeBus()
	f.SetWord(0x48, 0x00, 0x1234)

	v, err := f.ReadWordReg(0x48, 0x00)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x1234 {
		t.Errorf("expected 0x1234, got 0x%04x", v)
	}

	if err := f.WriteWordReg(0x48, 0x01, 0xC383); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ = f.ReadWordReg(0x48, 0x01)
	if v != 0xC383 {
		t.Errorf("expected 0xC383, got 0x%04x", v)
	}
}

func TestFakeBusClose(t *testing.T) {
	f := NewFakeBus()
	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
