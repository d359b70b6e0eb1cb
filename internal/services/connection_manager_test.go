package services

import (
	"testing"
	"time"

	"vitalstream/internal/models"
)

func newTestConn(connID, patientID string) *models.SubscriberConnection {
	return &models.SubscriberConnection{
		ConnID:    connID,
		PatientID: patientID,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.ServerMessage, 10),
		StopChan:  make(chan bool, 1),
	}
}

func TestConnectionManagerAddRemove(t *testing.T) {
	cm := NewConnectionManager()

	conn := newTestConn("c1", "p1")
	cm.Add(conn)

	if cm.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", cm.Count())
	}
	if got, ok := cm.Get("c1"); !ok || got != conn {
		t.Error("Expected to retrieve added connection")
	}

	cm.Remove("c1")
	if cm.Count() != 0 {
		t.Errorf("Expected 0 connections, got %d", cm.Count())
	}
	if _, ok := cm.Get("c1"); ok {
		t.Error("Expected connection to be gone")
	}

	// Removing twice must be harmless.
	cm.Remove("c1")
}

func TestConnectionManagerPatientIndex(t *testing.T) {
	cm := NewConnectionManager()
	cm.Add(newTestConn("c1", "p1"))
	cm.Add(newTestConn("c2", "p1"))
	cm.Add(newTestConn("c3", "p2"))

	if got := len(cm.ForPatient("p1")); got != 2 {
		t.Errorf("Expected 2 subscribers on p1, got %d", got)
	}
	if got := len(cm.ForPatient("p2")); got != 1 {
		t.Errorf("Expected 1 subscriber on p2, got %d", got)
	}
	if got := len(cm.ForPatient("p3")); got != 0 {
		t.Errorf("Expected 0 subscribers on p3, got %d", got)
	}

	cm.Remove("c1")
	cm.Remove("c2")
	if got := len(cm.ForPatient("p1")); got != 0 {
		t.Errorf("Expected empty channel after removals, got %d", got)
	}
}

// A goroutine parked on StopChan must wake when the manager removes the
// connection, so an externally torn-down subscriber can close its socket.
func TestRemoveSignalsStopChan(t *testing.T) {
	cm := NewConnectionManager()
	conn := newTestConn("c1", "p1")
	cm.Add(conn)

	stopped := make(chan struct{})
	go func() {
		<-conn.StopChan
		close(stopped)
	}()

	cm.Remove("c1")

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("StopChan never signaled after Remove")
	}
}

func TestRemovedConnectionRefusesSends(t *testing.T) {
	cm := NewConnectionManager()
	conn := newTestConn("c1", "p1")
	cm.Add(conn)
	cm.Remove("c1")

	if conn.SafeSend(models.ServerMessage{Type: "pong"}) {
		t.Error("Expected SafeSend to fail on a removed connection")
	}
	if conn.TrySend(models.ServerMessage{Type: "vitals_update"}) {
		t.Error("Expected TrySend to fail on a removed connection")
	}
}
