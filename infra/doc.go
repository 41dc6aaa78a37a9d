// Package infra holds the adapters behind the core packages: the MQTT
// client, the Home Assistant publisher, snapshot sources, history stores
// and metrics exporters. Core packages never import infra.
package infra
