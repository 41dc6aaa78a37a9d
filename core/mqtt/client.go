package mqtt

// Publisher sends payloads to MQTT topics.
type Publisher interface {
	// Publish sends payload to topic and blocks until the broker accepted
	// the message or all attempts failed.
	Publish(topic string, qos byte, retained bool, payload []byte) error
}
