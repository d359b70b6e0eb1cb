package services

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"vitalstream/internal/models"
)

// BroadcastService fans a vitals update out to every live subscriber of a
// patient's channel. Delivery is fire-and-forget: no acknowledgment, no
// retry, no backlog for late joiners, and a slow subscriber can never stall
// the ingestion path.
//
// When Redis is configured, envelopes are also replicated to other instances
// over pub/sub so subscribers can be attached anywhere behind a load
// balancer. An instance ID guard prevents redelivery loops.
type BroadcastService struct {
	connManager *ConnectionManager
	redis       *RedisService
	metrics     *Metrics
	instanceID  string
	pubsub      *redis.PubSub
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// bridgeEnvelope is the wire form of a fanout message crossing instances.
type bridgeEnvelope struct {
	InstanceID string               `json:"instance_id"`
	PatientID  string               `json:"patient_id"`
	Message    models.ServerMessage `json:"message"`
}

// NewBroadcastService creates a broadcast service. redisService may be nil;
// fanout is then instance-local only.
func NewBroadcastService(connManager *ConnectionManager, redisService *RedisService, metrics *Metrics, instanceID string) *BroadcastService {
	ctx, cancel := context.WithCancel(context.Background())
	return &BroadcastService{
		connManager: connManager,
		redis:       redisService,
		metrics:     metrics,
		instanceID:  instanceID,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// PublishVitals delivers a sample-tick update to all subscribers of the
// patient's channel, at most once per subscriber.
func (s *BroadcastService) PublishVitals(patientID string, update *models.VitalsUpdate) {
	msg := models.ServerMessage{
		Type: "vitals_update",
		Data: update,
	}
	s.deliverLocal(patientID, msg)

	if s.redis == nil {
		return
	}
	envelope := bridgeEnvelope{
		InstanceID: s.instanceID,
		PatientID:  patientID,
		Message:    msg,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Warn("failed to marshal fanout envelope", "patient_id", patientID, "error", err)
		return
	}
	if err := s.redis.Publish(s.ctx, patientChannel(patientID), data); err != nil {
		// Bridge failure is best-effort; local subscribers were served.
		slog.Warn("fanout bridge publish failed", "patient_id", patientID, "error", err)
	}
}

// deliverLocal pushes the message to in-process subscribers. Full write
// buffers drop the message for that subscriber only.
func (s *BroadcastService) deliverLocal(patientID string, msg models.ServerMessage) {
	for _, conn := range s.connManager.ForPatient(patientID) {
		if conn.TrySend(msg) {
			if s.metrics != nil {
				s.metrics.FanoutMessages.WithLabelValues("delivered").Inc()
			}
		} else {
			if s.metrics != nil {
				s.metrics.FanoutMessages.WithLabelValues("dropped").Inc()
			}
			slog.Debug("dropped fanout message for slow subscriber",
				"conn_id", conn.ConnID, "patient_id", patientID)
		}
	}
}

// Start begins listening for bridged envelopes from other instances.
// No-op without Redis.
func (s *BroadcastService) Start() error {
	if s.redis == nil {
		log.Println("📡 Fanout bridge disabled (no Redis configured)")
		return nil
	}

	s.pubsub = s.redis.PSubscribe(s.ctx, "patient:*:vitals")
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.processBridgeMessages()

	log.Printf("📡 Fanout bridge started (instance: %s)", s.instanceID)
	return nil
}

func (s *BroadcastService) processBridgeMessages() {
	defer s.wg.Done()
	ch := s.pubsub.Channel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				slog.Warn("failed to unmarshal bridged fanout message", "error", err)
				continue
			}
			if envelope.InstanceID == s.instanceID {
				continue
			}
			s.deliverLocal(envelope.PatientID, envelope.Message)
		}
	}
}

// Stop shuts the bridge down.
func (s *BroadcastService) Stop() error {
	s.cancel()
	if s.pubsub != nil {
		err := s.pubsub.Close()
		s.wg.Wait()
		return err
	}
	return nil
}

func patientChannel(patientID string) string {
	return "patient:" + patientID + ":vitals"
}
