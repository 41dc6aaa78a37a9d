// Package entity expands vehicle snapshots into leaf sensor descriptors.
//
// A descriptor names one individually reportable value: the service it
// belongs to, the base attribute key and, for composite attributes, the
// timer and sub-field that select the leaf. Descriptors are never parsed
// back from their flattened key.
package entity

import (
	"strings"

	"github.com/kilianp07/cdsensor/core/vehicle"
)

// Descriptor identifies one leaf sensor of a vehicle.
type Descriptor struct {
	Service  vehicle.Service `json:"service"`
	Field    string          `json:"field"`
	Timer    vehicle.TimerID `json:"timer,omitempty"`
	SubField string          `json:"sub_field,omitempty"`
}

// Key returns the flattened display key field[_timer][_sub].
func (d Descriptor) Key() string {
	parts := []string{d.Field}
	if d.Timer != "" {
		parts = append(parts, strings.ToLower(string(d.Timer)))
	}
	if d.SubField != "" {
		parts = append(parts, d.SubField)
	}
	return strings.Join(parts, "_")
}

// UniqueID returns the stable id of the descriptor for the given VIN.
// Status sensors carry no service segment.
func (d Descriptor) UniqueID(vin string) string {
	parts := []string{vin}
	if d.Service != vehicle.ServiceStatus {
		parts = append(parts, d.Service.Lower())
	}
	parts = append(parts, d.Field)
	if d.Timer != "" {
		parts = append(parts, strings.ToLower(string(d.Timer)))
	}
	if d.SubField != "" {
		parts = append(parts, d.SubField)
	}
	return strings.Join(parts, "-")
}

// Name returns the display name of the descriptor for the given vehicle
// name.
func (d Descriptor) Name(vehicleName string) string {
	if d.Service == vehicle.ServiceStatus {
		return vehicleName + " " + d.Key()
	}
	return vehicleName + " " + d.Service.Lower() + "_" + d.Key()
}

// ObjectID returns a topic-safe id for the descriptor, unique per vehicle.
func (d Descriptor) ObjectID() string {
	if d.Service == vehicle.ServiceStatus {
		return d.Key()
	}
	return d.Service.Lower() + "_" + d.Key()
}

// Composite reports whether the descriptor selects a sub-field.
func (d Descriptor) Composite() bool { return d.SubField != "" }
