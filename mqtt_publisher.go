package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MQTTPublisher republishes the Prometheus registry's current values (per-
// stream health, comparator similarity, alert state) to an MQTT broker, the
// same "walk the gatherer, regroup by category, publish one topic per
// category" pattern as the rest of the stack.
type MQTTPublisher struct {
	client mqtt.Client
	config *MQTTConfig
}

// MetricPayload is one metric message for MQTT.
type MetricPayload struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
	Labels    map[string]string  `json:"labels,omitempty"`
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "radio_watchdog_" + hex.EncodeToString(b)
}

func loadTLSConfig(tlsConfig MQTTTLSConfig) (*tls.Config, error) {
	if !tlsConfig.Enabled {
		return nil, nil
	}

	config := &tls.Config{}

	if tlsConfig.CACert != "" {
		caCert, err := os.ReadFile(tlsConfig.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = pool
	}

	if tlsConfig.ClientCert != "" && tlsConfig.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.ClientCert, tlsConfig.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

func NewMQTTPublisher(config *MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if config.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: connected to broker %s", config.Broker)

	return &MQTTPublisher{client: client, config: config}, nil
}

// StartPublisher publishes the Prometheus registry on PublishInterval until
// ctx is done.
func (mp *MQTTPublisher) StartPublisher(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(mp.config.PublishInterval) * time.Second)
	defer ticker.Stop()

	mp.publishAll()

	for {
		select {
		case <-ctx.Done():
			mp.client.Disconnect(250)
			return
		case <-ticker.C:
			mp.publishAll()
		}
	}
}

// publishAll gathers every registered Prometheus metric, regroups it by
// watchdog_<category>_... name prefix, and publishes one topic per
// category/label-set.
func (mp *MQTTPublisher) publishAll() {
	timestamp := time.Now().Unix()

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Printf("MQTT: failed to gather metrics: %v", err)
		return
	}

	// category -> subkey (label-derived) -> metric name -> value
	grouped := make(map[string]map[string]map[string]float64)

	for _, mf := range metricFamilies {
		name := mf.GetName()
		if len(name) < len("watchdog_") || name[:9] != "watchdog_" {
			continue
		}
		category, metricName := splitWatchdogMetricName(name)

		for _, m := range mf.GetMetric() {
			value := extractMetricValue(m)
			if value == nil {
				continue
			}
			subKey := labelSubKey(m)

			if grouped[category] == nil {
				grouped[category] = make(map[string]map[string]float64)
			}
			if grouped[category][subKey] == nil {
				grouped[category][subKey] = make(map[string]float64)
			}
			grouped[category][subKey][metricName] = *value
		}
	}

	for category, bySubKey := range grouped {
		for subKey, metrics := range bySubKey {
			payload := MetricPayload{Timestamp: timestamp, Metrics: metrics}
			topic := fmt.Sprintf("%s/%s", mp.config.TopicPrefix, category)
			if subKey != "" {
				topic = fmt.Sprintf("%s/%s", topic, subKey)
			}
			mp.publish(topic, payload)
		}
	}
}

// splitWatchdogMetricName turns "watchdog_source_health" into
// ("source", "health").
func splitWatchdogMetricName(name string) (category, metric string) {
	rest := name[len("watchdog_"):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '_' {
			return rest[:i], rest[i+1:]
		}
	}
	return rest, "value"
}

func labelSubKey(m *dto.Metric) string {
	for _, label := range m.GetLabel() {
		if label.GetName() == "stream" || label.GetName() == "alert_id" {
			return label.GetValue()
		}
	}
	if len(m.GetLabel()) >= 2 {
		return fmt.Sprintf("%s_%s", m.GetLabel()[0].GetValue(), m.GetLabel()[1].GetValue())
	}
	return ""
}

func extractMetricValue(m *dto.Metric) *float64 {
	if g := m.GetGauge(); g != nil {
		v := g.GetValue()
		return &v
	}
	if c := m.GetCounter(); c != nil {
		v := c.GetValue()
		return &v
	}
	return nil
}

func (mp *MQTTPublisher) publish(topic string, payload MetricPayload) {
	if len(payload.Metrics) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT: failed to marshal payload for topic %s: %v", topic, err)
		return
	}

	token := mp.client.Publish(topic, mp.config.QoS, mp.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		log.Printf("MQTT: failed to publish to topic %s: %v", topic, token.Error())
	}
}
