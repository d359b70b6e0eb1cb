package services

import (
	"log"
	"sync"

	"vitalstream/internal/models"
)

// ConnectionManager manages all active subscriber WebSocket connections,
// indexed by connection ID and by patient channel.
type ConnectionManager struct {
	connections map[string]*models.SubscriberConnection
	byPatient   map[string]map[string]*models.SubscriberConnection
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*models.SubscriberConnection),
		byPatient:   make(map[string]map[string]*models.SubscriberConnection),
	}
}

// Add adds a new subscriber connection
func (cm *ConnectionManager) Add(conn *models.SubscriberConnection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connections[conn.ConnID] = conn
	if cm.byPatient[conn.PatientID] == nil {
		cm.byPatient[conn.PatientID] = make(map[string]*models.SubscriberConnection)
	}
	cm.byPatient[conn.PatientID][conn.ConnID] = conn
	log.Printf("✅ Subscriber added: %s on patient %s (Total: %d)", conn.ConnID, conn.PatientID, len(cm.connections))
}

// Remove removes a connection and tears down its channels
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	conn, exists := cm.connections[connID]
	if !exists {
		return
	}
	conn.MarkClosed()
	close(conn.WriteChan)
	close(conn.StopChan)
	delete(cm.connections, connID)
	if peers := cm.byPatient[conn.PatientID]; peers != nil {
		delete(peers, connID)
		if len(peers) == 0 {
			delete(cm.byPatient, conn.PatientID)
		}
	}
	log.Printf("❌ Subscriber removed: %s (Total: %d)", connID, len(cm.connections))
}

// Get retrieves a connection by ID
func (cm *ConnectionManager) Get(connID string) (*models.SubscriberConnection, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	conn, exists := cm.connections[connID]
	return conn, exists
}

// ForPatient returns all live connections joined to a patient's channel
func (cm *ConnectionManager) ForPatient(patientID string) []*models.SubscriberConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	peers := cm.byPatient[patientID]
	conns := make([]*models.SubscriberConnection, 0, len(peers))
	for _, conn := range peers {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of active connections
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}
