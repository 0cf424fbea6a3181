// Package vehicle implements the vehicle integrator: the per-tick state
// transition that turns direction bits and a steer ratio into a pose, plus the
// input, reset and placement plumbing around it.
package vehicle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cxd309/drive-engine/internal/kinematics"
)

// Vehicle is the JSON-serialisable description of a vehicle type.
// The longitudinal physics are selected by the "kinematics" model
// discriminator; adding a model only requires implementing
// kinematics.MotionModel and registering it in UnmarshalJSON below.
type Vehicle struct {
	Name     string                          `json:"name"`
	Scale    float64                         `json:"scale"`   // multiplier for every distance, speed and acceleration
	TickMS   float64                         `json:"tick_ms"` // fixed timestep, milliseconds
	Geometry Geometry                        `json:"geometry"`
	Motion   kinematics.ConstantAcceleration `json:"-"` // set by UnmarshalJSON
}

// kinematicsDisc is the minimum JSON structure needed to read the model discriminator.
type kinematicsDisc struct {
	Model string `json:"model"`
}

// vehicleJSON is the raw JSON shape of a Vehicle, before the kinematics model is resolved.
type vehicleJSON struct {
	Name     string          `json:"name"`
	Scale    *float64        `json:"scale"`
	TickMS   *float64        `json:"tick_ms"`
	Geometry *Geometry       `json:"geometry"`
	Kinem    json.RawMessage `json:"kinematics"`
}

// DefaultVehicle returns the reference car description.
func DefaultVehicle() Vehicle {
	b := DefaultBase()
	return Vehicle{
		Name:     "reference",
		Scale:    DefaultScale,
		TickMS:   float64(DefaultTickInterval) / float64(time.Millisecond),
		Geometry: b.Geometry,
		Motion:   b.Motion,
	}
}

// UnmarshalJSON implements json.Unmarshaler for Vehicle.
// Omitted scale, tick, geometry fields or kinematics fall back to the reference car.
// When present, "kinematics" must carry a "model" discriminator key that
// selects the concrete implementation; the rest of the object is forwarded to
// that implementation's own unmarshaler.
//
// Supported models:
//   - "constant": fixed a_drive / a_reverse / a_friction rates.
func (v *Vehicle) UnmarshalJSON(data []byte) error {
	geom := DefaultGeometry()
	aux := vehicleJSON{Geometry: &geom}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = DefaultVehicle()
	if aux.Name != "" {
		v.Name = aux.Name
	}
	if aux.Scale != nil {
		v.Scale = *aux.Scale
	}
	if aux.TickMS != nil {
		v.TickMS = *aux.TickMS
	}
	v.Geometry = geom

	if len(aux.Kinem) == 0 {
		return nil
	}

	var disc kinematicsDisc
	if err := json.Unmarshal(aux.Kinem, &disc); err != nil {
		return fmt.Errorf("vehicle %q: reading kinematics model discriminator: %w", v.Name, err)
	}

	switch disc.Model {
	case kinematics.ConstantModelName:
		k := v.Motion
		if err := json.Unmarshal(aux.Kinem, &k); err != nil {
			return fmt.Errorf("vehicle %q: parsing constant kinematics: %w", v.Name, err)
		}
		v.Motion = k
	default:
		return fmt.Errorf("vehicle %q: unknown kinematics model %q", v.Name, disc.Model)
	}
	return nil
}

// MarshalJSON writes the vehicle back out with its kinematics discriminator.
func (v Vehicle) MarshalJSON() ([]byte, error) {
	type kinem struct {
		Model string `json:"model"`
		kinematics.ConstantAcceleration
	}
	return json.Marshal(struct {
		Name     string   `json:"name"`
		Scale    float64  `json:"scale"`
		TickMS   float64  `json:"tick_ms"`
		Geometry Geometry `json:"geometry"`
		Kinem    kinem    `json:"kinematics"`
	}{v.Name, v.Scale, v.TickMS, v.Geometry, kinem{kinematics.ConstantModelName, v.Motion}})
}

// Config validates the description and derives the integrator's Config.
func (v Vehicle) Config() (Config, error) {
	tick := time.Duration(v.TickMS * float64(time.Millisecond))
	cfg, err := NewConfig(v.Scale, tick, Base{Motion: v.Motion, Geometry: v.Geometry})
	if err != nil {
		return Config{}, fmt.Errorf("vehicle %q: %w", v.Name, err)
	}
	return cfg, nil
}
