package httpc

import (
	"testing"
	"time"
)

func TestNewClient_Timeout(t *testing.T) {
	if c := NewClient(5 * time.Second); c.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", c.Timeout)
	}
	if c := NewClient(0); c.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", c.Timeout)
	}
}

func TestNewClient_SeparateTransports(t *testing.T) {
	a, b := NewClient(time.Second), NewClient(time.Second)
	if a.Transport == b.Transport {
		t.Error("Expected each client to own its transport")
	}
}
