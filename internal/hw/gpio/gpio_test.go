package gpio

import "testing"

func TestNewDriver_Mock(t *testing.T) {
	drv, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true): %v", err)
	}
	if _, ok := drv.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", drv)
	}
	if err := drv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMockDriver_WriteThenGet(t *testing.T) {
	m := &MockDriver{}
	if err := m.WritePin(18, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if got := m.Get(18); got != High {
		t.Errorf("Get(18) = %v, want High", got)
	}
	if err := m.WritePin(18, Low); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if got := m.Get(18); got != Low {
		t.Errorf("Get(18) = %v, want Low", got)
	}
	if m.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", m.Writes())
	}
}

func TestMockDriver_UnsetInputReadsHigh(t *testing.T) {
	m := &MockDriver{}
	lvl, err := m.ReadPin(23)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if lvl != High {
		t.Errorf("idle pin = %v, want High (pull-up)", lvl)
	}
}

func TestMockDriver_SetSimulatesPress(t *testing.T) {
	m := &MockDriver{}
	m.Set(23, Low)
	lvl, _ := m.ReadPin(23)
	if lvl != Low {
		t.Errorf("pressed pin = %v, want Low", lvl)
	}
	if m.Writes() != 0 {
		t.Errorf("Set must not count as a write, got %d", m.Writes())
	}
}

func TestMockDriver_ImplementsDriver(t *testing.T) {
	var _ Driver = &MockDriver{}
}
