package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"vitalstream/internal/logging"
	"vitalstream/internal/models"
	"vitalstream/internal/services"
	"vitalstream/internal/store"
)

const (
	readDeadline = 90 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocketHandler handles per-patient dashboard subscriptions.
type WebSocketHandler struct {
	connManager *services.ConnectionManager
	patients    store.PatientStore
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(connManager *services.ConnectionManager, patients store.PatientStore) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		patients:    patients,
	}
}

// Upgrade runs before the protocol switch: it rejects non-WebSocket requests
// and refuses to upgrade for a patient that does not exist, so a bad ID is a
// clean 404 instead of an accepted-then-dropped connection.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error": "WebSocket upgrade required",
		})
	}

	patientID := c.Params("id")
	patient, err := h.patients.GetPatient(c.UserContext(), patientID)
	if err != nil {
		if errors.Is(err, store.ErrPatientNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Patient not found",
			})
		}
		log.Printf("❌ [WS] Patient lookup failed for %s: %v", patientID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to validate patient",
		})
	}

	c.Locals("patient_id", patient.ID)
	c.Locals("client_ip", c.IP())
	return c.Next()
}

// Handle handles a new subscriber connection.
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	patientID, _ := c.Locals("patient_id").(string)
	clientIP, _ := c.Locals("client_ip").(string)

	connLog := logging.WithConnection(connID, patientID)
	connLog.Info("subscriber connected", "client_ip", clientIP)

	done := make(chan struct{})

	subConn := &models.SubscriberConnection{
		ConnID:    connID,
		PatientID: patientID,
		ClientIP:  clientIP,
		Conn:      c,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.ServerMessage, 100),
		StopChan:  make(chan bool, 1),
	}

	h.connManager.Add(subConn)
	defer func() {
		close(done)
		h.connManager.Remove(connID)
		connLog.Info("subscriber disconnected")
	}()

	c.SetReadDeadline(time.Now().Add(readDeadline))
	c.SetPongHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	go h.pingLoop(subConn, done)
	go h.writeLoop(subConn)

	// First frame, always: lets the dashboard distinguish "connected and
	// waiting for data" from "connection failed".
	subConn.WriteChan <- models.ServerMessage{
		Type:    "connection_established",
		Message: "Subscribed to patient " + patientID,
	}

	h.readLoop(subConn)
}

// pingLoop sends periodic pings so idle dashboards are not reaped by
// intermediaries between aggregation cycles.
func (h *WebSocketHandler) pingLoop(subConn *models.SubscriberConnection, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			subConn.Mutex.Lock()
			if err := subConn.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("⚠️ Ping failed for %s: %v", subConn.ConnID, err)
				subConn.Mutex.Unlock()
				return
			}
			subConn.Mutex.Unlock()
		}
	}
}

// readLoop handles inbound frames. Subscribers are read-only consumers; the
// only meaningful inbound message is the heartbeat ping.
func (h *WebSocketHandler) readLoop(subConn *models.SubscriberConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in readLoop: %v", r)
		}
	}()

	for {
		_, msg, err := subConn.Conn.ReadMessage()
		if err != nil {
			log.Printf("🔌 [WS] Subscriber %s disconnected: %v", subConn.ConnID, err)
			break
		}

		subConn.Conn.SetReadDeadline(time.Now().Add(readDeadline))

		var clientMsg models.ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			log.Printf("⚠️  Invalid message format from %s: %v", subConn.ConnID, err)
			continue
		}

		switch clientMsg.Type {
		case "ping":
			subConn.WriteChan <- models.ServerMessage{Type: "pong"}
		default:
			log.Printf("⚠️  Unknown message type from %s: %s", subConn.ConnID, clientMsg.Type)
		}
	}
}

// writeLoop drains the connection's write channel. All frames for one
// subscriber go through here, keeping writes serialized on the socket. A
// StopChan signal means the manager tore the connection down from outside
// this handler; closing the socket unblocks the read loop.
func (h *WebSocketHandler) writeLoop(subConn *models.SubscriberConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in writeLoop: %v", r)
		}
	}()

	for {
		select {
		case msg, ok := <-subConn.WriteChan:
			if !ok {
				return
			}
			subConn.Mutex.Lock()
			err := subConn.Conn.WriteJSON(msg)
			subConn.Mutex.Unlock()
			if err != nil {
				log.Printf("❌ WebSocket write error for %s: %v", subConn.ConnID, err)
				return
			}
		case <-subConn.StopChan:
			subConn.Conn.Close()
			return
		}
	}
}
